package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

func TestCachedScheduleRepositoryAbsorbsRepeatLookups(t *testing.T) {
	db := openServiceDB(t, &models.ScheduleWindow{})
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	cached := NewCachedScheduleRepository(repository.NewScheduleRepository(db), client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	window := models.ScheduleWindow{
		Source:      models.WindowSourceSubject,
		Title:       "Algorithms",
		Stage:       "stage-1",
		DayOfWeek:   intPointer(1),
		StartMinute: 540,
		EndMinute:   600,
		Status:      models.WindowActive,
	}
	require.NoError(t, db.Create(&window).Error)

	at := time.Date(2024, time.March, 11, 9, 15, 0, 0, time.UTC)

	first, err := cached.ActiveAt(ctx, at, models.WindowSourceSubject)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The row is gone but the cached copy keeps serving until the TTL runs out.
	require.NoError(t, db.Delete(&models.ScheduleWindow{}, window.ID).Error)

	second, err := cached.ActiveAt(ctx, at, models.WindowSourceSubject)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "Algorithms", second[0].Title)

	mini.FastForward(2 * time.Minute)

	third, err := cached.ActiveAt(ctx, at, models.WindowSourceSubject)
	require.NoError(t, err)
	require.Empty(t, third)
}

func TestCachedScheduleRepositoryKeysPerMinuteAndSource(t *testing.T) {
	db := openServiceDB(t, &models.ScheduleWindow{})
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	cached := NewCachedScheduleRepository(repository.NewScheduleRepository(db), client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ScheduleWindow{
		Source:      models.WindowSourceSubject,
		Title:       "Algorithms",
		DayOfWeek:   intPointer(1),
		StartMinute: 540,
		EndMinute:   600,
		Status:      models.WindowActive,
	}).Error)

	at := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

	subjects, err := cached.ActiveAt(ctx, at, models.WindowSourceSubject)
	require.NoError(t, err)
	require.Len(t, subjects, 1)

	lectures, err := cached.ActiveAt(ctx, at, models.WindowSourceLecture)
	require.NoError(t, err)
	require.Empty(t, lectures)

	require.True(t, mini.Exists("windows:subject:2024-03-11:540"))
	require.True(t, mini.Exists("windows:lecture:2024-03-11:540"))
}

func TestCachedScheduleRepositoryDisabledWithoutCache(t *testing.T) {
	db := openServiceDB(t, &models.ScheduleWindow{})
	inner := repository.NewScheduleRepository(db)

	require.Equal(t, inner, NewCachedScheduleRepository(inner, nil, time.Minute, zerolog.Nop()))
	require.Equal(t, inner, NewCachedScheduleRepository(inner, redis.NewClient(&redis.Options{}), 0, zerolog.Nop()))
}
