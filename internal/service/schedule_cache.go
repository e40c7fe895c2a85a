package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

type cachedScheduleRepository struct {
	inner  repository.ScheduleRepository
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedScheduleRepository wraps a schedule repository with a short-TTL
// redis cache over the per-minute window lookup. Every scan hits ActiveAt,
// and a burst of scans at a class boundary lands on the same minute; the
// cache absorbs that without any invalidation protocol. Staleness is
// bounded by the TTL.
func NewCachedScheduleRepository(inner repository.ScheduleRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) repository.ScheduleRepository {
	if cache == nil || ttl <= 0 {
		return inner
	}

	return &cachedScheduleRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "schedule_cache").Logger(),
	}
}

func (r *cachedScheduleRepository) GetByID(ctx context.Context, id uint) (models.ScheduleWindow, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *cachedScheduleRepository) ActiveAt(ctx context.Context, at time.Time, source string) ([]models.ScheduleWindow, error) {
	key := fmt.Sprintf("windows:%s:%s:%d", source, models.DateOnly(at).Format("2006-01-02"), models.MinuteOfDay(at))

	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var windows []models.ScheduleWindow
		if unmarshalErr := json.Unmarshal([]byte(cached), &windows); unmarshalErr == nil {
			return windows, nil
		}
	} else if err != redis.Nil {
		r.logger.Warn().Err(err).Msg("failed to read window cache")
	}

	windows, err := r.inner.ActiveAt(ctx, at, source)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(windows); err == nil {
		if err := r.cache.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to store window cache")
		}
	}

	return windows, nil
}

func (r *cachedScheduleRepository) List(ctx context.Context) ([]models.ScheduleWindow, error) {
	return r.inner.List(ctx)
}

func (r *cachedScheduleRepository) Create(ctx context.Context, window *models.ScheduleWindow) error {
	return r.inner.Create(ctx, window)
}
