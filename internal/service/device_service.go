package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// ErrDeviceNotFound indicates the requested device does not exist.
var ErrDeviceNotFound = errors.New("device not found")

const (
	defaultTCPPort  = 4370
	defaultBaudRate = 9600
)

// DeviceService manages the terminal registry the scheduler polls.
type DeviceService interface {
	Create(ctx context.Context, req dto.DeviceCreateRequest) (dto.DeviceResponse, error)
	Get(ctx context.Context, id uint) (dto.DeviceResponse, error)
	List(ctx context.Context) ([]dto.DeviceResponse, error)
}

type deviceService struct {
	repo      repository.DeviceRepository
	audit     AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewDeviceService builds the device registry service.
func NewDeviceService(repo repository.DeviceRepository, audit AuditService, validate *validator.Validate, logger zerolog.Logger) DeviceService {
	return &deviceService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "device_service").Logger(),
	}
}

func (s *deviceService) Create(ctx context.Context, req dto.DeviceCreateRequest) (dto.DeviceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DeviceResponse{}, err
	}

	device := models.Device{
		Name:          req.Name,
		Transport:     req.Transport,
		Host:          req.Host,
		Port:          req.Port,
		SerialPort:    req.SerialPort,
		SerialAddress: req.SerialAddress,
		BaudRate:      req.BaudRate,
		Active:        true,
	}
	if req.Active != nil {
		device.Active = *req.Active
	}
	if device.Transport == models.TransportTCP && device.Port == 0 {
		device.Port = defaultTCPPort
	}
	if device.Transport == models.TransportSerial && device.BaudRate == 0 {
		device.BaudRate = defaultBaudRate
	}

	if err := s.repo.Create(ctx, &device); err != nil {
		return dto.DeviceResponse{}, err
	}

	s.logger.Info().
		Uint("device_id", device.ID).
		Str("transport", device.Transport).
		Msg("device registered")
	s.audit.Record(ctx, "device.create", "api", fmt.Sprintf("device:%d", device.ID), map[string]interface{}{
		"name":      device.Name,
		"transport": device.Transport,
	})

	return dto.NewDeviceResponse(device), nil
}

func (s *deviceService) Get(ctx context.Context, id uint) (dto.DeviceResponse, error) {
	device, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeviceResponse{}, ErrDeviceNotFound
		}

		return dto.DeviceResponse{}, err
	}

	return dto.NewDeviceResponse(device), nil
}

func (s *deviceService) List(ctx context.Context) ([]dto.DeviceResponse, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewDeviceResponseSlice(devices), nil
}
