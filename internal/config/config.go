package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the attendance service.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	// Timezone is the IANA zone scan timestamps and window matching are
	// interpreted in. Devices report wall-clock time without an offset.
	Timezone string
	Location *time.Location

	SyncInterval time.Duration
	SyncWarmup   time.Duration

	// SyncClearLogs wipes a terminal's log memory after a fully successful
	// fetch. Off by default: the terminal keeps its own copy until an
	// operator opts in.
	SyncClearLogs bool

	WindowCacheTTL time.Duration

	FaceServiceURL     string
	FaceMatchThreshold float64
	FaceServiceTimeout time.Duration

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "LAS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "Local")
	v.SetDefault("sync.interval", "5m")
	v.SetDefault("sync.warmup", "15s")
	v.SetDefault("sync.clear_logs", false)
	v.SetDefault("window.cache_ttl", "60s")
	v.SetDefault("face.threshold", 0.6)
	v.SetDefault("face.timeout", "10s")
	v.SetDefault("cloudinary.folder", "las/evidence")

	syncInterval, err := parseDuration(v, "sync.interval")
	if err != nil {
		return Config{}, err
	}

	syncWarmup, err := parseDuration(v, "sync.warmup")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "window.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	faceTimeout, err := parseDuration(v, "face.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		Timezone:               v.GetString("timezone"),
		SyncInterval:           syncInterval,
		SyncWarmup:             syncWarmup,
		SyncClearLogs:          v.GetBool("sync.clear_logs"),
		WindowCacheTTL:         cacheTTL,
		FaceServiceURL:         strings.TrimSuffix(v.GetString("face.service_url"), "/"),
		FaceMatchThreshold:     v.GetFloat64("face.threshold"),
		FaceServiceTimeout:     faceTimeout,
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.FaceMatchThreshold <= 0 || cfg.FaceMatchThreshold > 1 {
		cfg.FaceMatchThreshold = 0.6
	}

	if cfg.SyncInterval < time.Second {
		return Config{}, fmt.Errorf("sync interval %s is below one second", cfg.SyncInterval)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}
