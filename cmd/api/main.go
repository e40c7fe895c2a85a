package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/database"
	"github.com/yousiff139-lang/LAS/internal/handler"
	"github.com/yousiff139-lang/LAS/internal/importer"
	"github.com/yousiff139-lang/LAS/internal/middleware"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/internal/router"
	"github.com/yousiff139-lang/LAS/internal/scheduler"
	"github.com/yousiff139-lang/LAS/internal/service"
	cloud "github.com/yousiff139-lang/LAS/pkg/cloudinary"
	"github.com/yousiff139-lang/LAS/pkg/faceclient"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.ConnectPostgres(cfg.DatabaseURL, cfg.Location)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.ScheduleWindow{},
		&models.Device{},
		&models.RawLog{},
		&models.AttendanceRecord{},
		&models.AuditEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var archive *cloud.Service
	if cfg.CloudinaryCloudName != "" {
		archive, err = cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
	}

	var faceClient *faceclient.Client
	if cfg.FaceServiceURL != "" {
		faceClient, err = faceclient.New(faceclient.Config{
			BaseURL:   cfg.FaceServiceURL,
			Threshold: cfg.FaceMatchThreshold,
			Timeout:   cfg.FaceServiceTimeout,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("failed to create face service client: %v", err)
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	scheduleRepo := service.NewCachedScheduleRepository(repository.NewScheduleRepository(db), redisClient, cfg.WindowCacheTTL, logger)
	deviceRepo := repository.NewDeviceRepository(db)
	rawLogRepo := repository.NewRawLogRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo, natsConn, logger)
	feedService := service.NewLiveFeedService(redisClient, "las", natsConn, logger)
	matchingService := service.NewMatchingService(rawLogRepo, studentRepo, scheduleRepo, attendanceRepo, deviceRepo, auditService, feedService, cfg.Location, logger)
	scanService := service.NewScanService(matchingService, validate, cfg.Location, logger)
	importService := service.NewImportService(importer.New(cfg.Location), matchingService, archive, auditService, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, matchingService, validate, cfg.Location, logger)
	studentService := service.NewStudentService(studentRepo, auditService, validate, logger)
	scheduleService := service.NewScheduleService(repository.NewScheduleRepository(db), auditService, validate, cfg.Location, logger)
	deviceService := service.NewDeviceService(deviceRepo, auditService, validate, logger)
	syncService := service.NewDeviceSyncService(deviceRepo, matchingService, auditService, cfg.SyncClearLogs, cfg.Location, logger)

	var faceService service.FaceService
	if faceClient != nil {
		faceService = service.NewFaceService(studentRepo, rawLogRepo, matchingService, faceClient, archive, auditService, cfg.Location, logger)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedService.Start(runCtx)

	syncScheduler := scheduler.New(syncService, cfg.SyncInterval, cfg.SyncWarmup, logger)
	if err := syncScheduler.Start(runCtx); err != nil {
		log.Fatalf("failed to start sync scheduler: %v", err)
	}
	defer syncScheduler.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ScanHandler:       handler.NewScanHandler(scanService, faceService, logger),
		ImportHandler:     handler.NewImportHandler(importService, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, feedService, logger),
		DeviceHandler:     handler.NewDeviceHandler(deviceService, syncService, logger),
		StudentHandler:    handler.NewStudentHandler(studentService, faceService, validate, logger),
		ScheduleHandler:   handler.NewScheduleHandler(scheduleService, logger),
		ReadyCheck:        handler.ReadyCheck(cfg, db, faceClient),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("addr", cfg.HTTPAddress()).
		Str("timezone", cfg.Timezone).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("attendance service started")

	waitForShutdown(app, syncScheduler, cancel)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout)
	if cfg.AppEnv == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func waitForShutdown(app *fiber.App, syncScheduler *scheduler.Scheduler, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	cancel()
	syncScheduler.Stop()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
