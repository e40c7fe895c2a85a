package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

func TestScheduleServiceCreateEnforcesRecurrenceRule(t *testing.T) {
	db := openServiceDB(t, &models.ScheduleWindow{}, &models.AuditEvent{})
	svc := newScheduleService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.WindowCreateRequest{
		Title:       "Algorithms",
		StartMinute: 540,
		EndMinute:   600,
	})
	require.ErrorIs(t, err, ErrWindowRecurrence)

	date := "2024-03-11"
	_, err = svc.Create(ctx, dto.WindowCreateRequest{
		Title:        "Algorithms",
		DayOfWeek:    intPointer(1),
		SpecificDate: &date,
		StartMinute:  540,
		EndMinute:    600,
	})
	require.ErrorIs(t, err, ErrWindowRecurrence)

	weekly, err := svc.Create(ctx, dto.WindowCreateRequest{
		Title:       "Algorithms",
		Stage:       "stage-1",
		DayOfWeek:   intPointer(1),
		StartMinute: 540,
		EndMinute:   600,
	})
	require.NoError(t, err)
	require.Equal(t, models.WindowSourceSubject, weekly.Source)
	require.Equal(t, models.WindowActive, weekly.Status)
	require.NotNil(t, weekly.DayOfWeek)
	require.Nil(t, weekly.SpecificDate)

	oneOff, err := svc.Create(ctx, dto.WindowCreateRequest{
		Source:       models.WindowSourceLecture,
		Title:        "Guest Lecture",
		SpecificDate: &date,
		StartMinute:  660,
		EndMinute:    720,
	})
	require.NoError(t, err)
	require.NotNil(t, oneOff.SpecificDate)
	require.Equal(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), *oneOff.SpecificDate)
}

func TestScheduleServiceListReturnsAllWindows(t *testing.T) {
	db := openServiceDB(t, &models.ScheduleWindow{}, &models.AuditEvent{})
	svc := newScheduleService(db)
	ctx := context.Background()

	for _, title := range []string{"Algorithms", "Databases"} {
		_, err := svc.Create(ctx, dto.WindowCreateRequest{
			Title:       title,
			DayOfWeek:   intPointer(2),
			StartMinute: 540,
			EndMinute:   600,
		})
		require.NoError(t, err)
	}

	windows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 2)
}

func newScheduleService(db *gorm.DB) ScheduleService {
	audit := NewAuditService(repository.NewAuditRepository(db), nil, zerolog.Nop())
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewScheduleService(repository.NewScheduleRepository(db), audit, validate, time.UTC, zerolog.Nop())
}
