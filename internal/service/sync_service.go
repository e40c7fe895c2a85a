package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/observability"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/internal/terminal"
	"github.com/yousiff139-lang/LAS/internal/wire"
)

var (
	// ErrSyncBusy indicates another collection run holds the device.
	ErrSyncBusy = errors.New("sync already running for device")
	// ErrTransportUnsupported indicates the device cannot be polled.
	ErrTransportUnsupported = errors.New("transport cannot be polled")
)

// SyncReport describes one collection run against one device. Fetch and
// protocol failures land in Err with Success false; the run itself is not
// an error to the caller.
type SyncReport struct {
	DeviceID  uint
	Transport string
	Fetched   int
	Processed int
	Dropped   int
	Cleared   bool
	Success   bool
	Duration  time.Duration
	Summary   BatchSummary
	Err       error
}

// DeviceSyncService pulls attendance logs from registered terminals and
// feeds them through the matching engine. A keyed per-device mutex
// excludes a manual trigger from overlapping a scheduled cycle on the
// same device.
type DeviceSyncService interface {
	TriggerSync(ctx context.Context, deviceID uint) (SyncReport, error)
	SyncActiveDevices(ctx context.Context) []SyncReport
	SerialPorts() ([]string, error)
}

// deviceSession is the slice of a protocol client one collection run uses.
type deviceSession interface {
	FetchLogs(ctx context.Context) ([]wire.LogRecord, error)
	ClearLogs(ctx context.Context) error
	Close()
}

type sessionDialer func(ctx context.Context, device models.Device) (deviceSession, error)

type deviceSyncService struct {
	devices    repository.DeviceRepository
	matcher    MatchingService
	audit      AuditService
	dial       sessionDialer
	clearAfter bool
	loc        *time.Location
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	mu   sync.Mutex
	busy map[uint]struct{}
}

// NewDeviceSyncService builds the log collection service. clearAfter
// controls whether device memory is wiped after a fully successful fetch.
func NewDeviceSyncService(
	devices repository.DeviceRepository,
	matcher MatchingService,
	audit AuditService,
	clearAfter bool,
	loc *time.Location,
	logger zerolog.Logger,
) DeviceSyncService {
	if loc == nil {
		loc = time.Local
	}

	s := &deviceSyncService{
		devices:    devices,
		matcher:    matcher,
		audit:      audit,
		clearAfter: clearAfter,
		loc:        loc,
		logger:     logger.With().Str("component", "sync_service").Logger(),
		tracer:     otel.Tracer("github.com/yousiff139-lang/LAS/internal/service/sync"),
		now:        time.Now,
		busy:       make(map[uint]struct{}),
	}
	s.dial = s.dialDevice
	return s
}

func (s *deviceSyncService) TriggerSync(ctx context.Context, deviceID uint) (SyncReport, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SyncReport{}, ErrDeviceNotFound
		}
		return SyncReport{}, err
	}

	switch device.Transport {
	case models.TransportTCP, models.TransportSerial:
	default:
		return SyncReport{}, fmt.Errorf("%w: %s", ErrTransportUnsupported, device.Transport)
	}

	if !s.acquire(device.ID) {
		return SyncReport{}, ErrSyncBusy
	}
	defer s.release(device.ID)

	return s.collect(ctx, device), nil
}

// SyncActiveDevices runs one scheduled cycle: every active TCP device,
// sequentially. Serial devices share a bus with unrelated equipment and
// are only polled on explicit request.
func (s *deviceSyncService) SyncActiveDevices(ctx context.Context) []SyncReport {
	devices, err := s.devices.FindActiveByTransport(ctx, models.TransportTCP)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load devices for sync cycle")
		return nil
	}

	reports := make([]SyncReport, 0, len(devices))
	for _, device := range devices {
		if ctx.Err() != nil {
			break
		}
		if !s.acquire(device.ID) {
			s.logger.Debug().Uint("device_id", device.ID).Msg("skipping device held by another run")
			continue
		}
		report := s.collect(ctx, device)
		s.release(device.ID)
		reports = append(reports, report)
	}

	return reports
}

func (s *deviceSyncService) SerialPorts() ([]string, error) {
	return terminal.ListSerialPorts()
}

// collect performs one run: connect, fetch, feed the engine, optionally
// clear, stamp the device. The session is closed even on partial failure,
// and records fetched before a failure are still processed.
func (s *deviceSyncService) collect(ctx context.Context, device models.Device) SyncReport {
	started := s.now()
	report := SyncReport{DeviceID: device.ID, Transport: device.Transport}

	ctx, span := s.tracer.Start(ctx, "sync.collect", trace.WithAttributes(
		attribute.Int("device_id", int(device.ID)),
		attribute.String("transport", device.Transport),
	))
	defer span.End()

	log := s.logger.With().Uint("device_id", device.ID).Str("transport", device.Transport).Logger()

	session, err := s.dial(ctx, device)
	if err != nil {
		report.Err = err
		report.Duration = s.now().Sub(started)
		span.RecordError(err)
		observability.DeviceSyncs().WithLabelValues(device.Transport, "error").Inc()
		log.Error().Err(err).Msg("failed to open device session")
		return report
	}
	defer session.Close()

	records, fetchErr := session.FetchLogs(ctx)
	report.Fetched = len(records)

	if len(records) > 0 {
		deviceID := device.ID
		events := make([]models.ScanEvent, 0, len(records))
		for _, record := range records {
			events = append(events, models.ScanEvent{
				BiometricUserID: record.UserID,
				Timestamp:       record.Timestamp,
				DeviceID:        &deviceID,
				Modality:        wire.ModalityFromStatus(record.Status),
				Origin:          models.OriginDevice,
			})
		}

		report.Summary = s.matcher.ProcessBatch(ctx, events)
		report.Processed = report.Summary.Outcomes[DecisionRecorded]
		report.Dropped = report.Summary.Total - report.Summary.Failures - report.Processed
	}

	if fetchErr != nil {
		report.Err = fetchErr
		span.RecordError(fetchErr)
		log.Warn().Err(fetchErr).Int("fetched", report.Fetched).Msg("log fetch ended early")
	} else {
		report.Success = true
		if s.clearAfter && report.Fetched > 0 {
			if err := session.ClearLogs(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to clear device logs")
			} else {
				report.Cleared = true
			}
		}
		if err := s.devices.UpdateLastSync(ctx, device.ID, s.now().In(s.loc)); err != nil {
			log.Warn().Err(err).Msg("failed to stamp device last sync")
		}
	}

	report.Duration = s.now().Sub(started)

	result := "ok"
	if report.Err != nil {
		result = "partial"
	}
	observability.DeviceSyncs().WithLabelValues(device.Transport, result).Inc()
	observability.DeviceSyncDuration().WithLabelValues(device.Transport).Observe(report.Duration.Seconds())

	log.Info().
		Int("fetched", report.Fetched).
		Int("processed", report.Processed).
		Int("dropped", report.Dropped).
		Bool("cleared", report.Cleared).
		Dur("duration", report.Duration).
		Msg("device sync finished")

	if s.audit != nil {
		s.audit.Record(ctx, "device.sync", "system", fmt.Sprintf("device:%d", device.ID), map[string]interface{}{
			"transport": device.Transport,
			"fetched":   report.Fetched,
			"processed": report.Processed,
			"dropped":   report.Dropped,
			"cleared":   report.Cleared,
			"success":   report.Success,
		})
	}

	return report
}

func (s *deviceSyncService) dialDevice(ctx context.Context, device models.Device) (deviceSession, error) {
	switch device.Transport {
	case models.TransportTCP:
		client := terminal.NewTCPClient(device.Host, device.Port, s.loc, s.logger)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return tcpSession{client: client}, nil
	case models.TransportSerial:
		client := terminal.NewSerialClient(device.SerialPort, device.SerialAddress, device.BaudRate, s.loc, s.logger)
		if err := client.Open(); err != nil {
			return nil, err
		}
		return serialSession{client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTransportUnsupported, device.Transport)
	}
}

func (s *deviceSyncService) acquire(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.busy[id]; held {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *deviceSyncService) release(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}

type tcpSession struct {
	client *terminal.TCPClient
}

func (s tcpSession) FetchLogs(ctx context.Context) ([]wire.LogRecord, error) {
	return s.client.FetchLogs(ctx)
}

func (s tcpSession) ClearLogs(ctx context.Context) error {
	return s.client.ClearLogs(ctx)
}

func (s tcpSession) Close() {
	s.client.Disconnect()
}

type serialSession struct {
	client *terminal.SerialClient
}

func (s serialSession) FetchLogs(ctx context.Context) ([]wire.LogRecord, error) {
	return s.client.FetchLogs(ctx)
}

func (s serialSession) ClearLogs(ctx context.Context) error {
	return s.client.ClearLogs(ctx)
}

func (s serialSession) Close() {
	s.client.Close()
}
