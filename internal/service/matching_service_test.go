package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

func TestMatchingServiceRecordsPresenceOnce(t *testing.T) {
	db := openServiceDB(t, &models.Student{}, &models.ScheduleWindow{}, &models.AttendanceRecord{}, &models.RawLog{}, &models.AuditEvent{}, &models.Device{})

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)

	device := models.Device{Name: "Gate A", Transport: models.TransportTCP, Host: "10.0.0.9", Port: 4370, Active: true}
	require.NoError(t, db.Create(&device).Error)

	window := models.ScheduleWindow{
		Source:      models.WindowSourceSubject,
		Title:       "Databases",
		Stage:       "stage-1",
		DayOfWeek:   intPointer(1),
		StartMinute: 540,
		EndMinute:   600,
		Status:      models.WindowActive,
	}
	require.NoError(t, db.Create(&window).Error)

	feed := &feedRecorder{}
	svc := newMatchingService(db, feed)
	ctx := context.Background()

	// Monday inside the 09:00-10:00 window.
	scannedAt := time.Date(2024, 3, 11, 9, 15, 0, 0, time.UTC)
	decision, err := svc.ProcessScan(ctx, models.ScanEvent{
		BiometricUserID: "1042",
		Timestamp:       scannedAt,
		DeviceID:        &device.ID,
		Modality:        models.ModalityFingerprint,
		Origin:          models.OriginPush,
	})
	require.NoError(t, err)
	require.Equal(t, DecisionRecorded, decision.Outcome)
	require.NotNil(t, decision.Student)
	require.Equal(t, student.ID, decision.Student.ID)
	require.NotNil(t, decision.Window)
	require.Equal(t, window.ID, decision.Window.ID)
	require.NotNil(t, decision.Record)
	require.Equal(t, models.AttendancePresent, decision.Record.Status)
	require.Equal(t, models.SourceFingerprint, decision.Record.Source)
	require.NotNil(t, decision.Record.RawLogID)
	require.Equal(t, decision.RawLogID, *decision.Record.RawLogID)

	var raw models.RawLog
	require.NoError(t, db.First(&raw, decision.RawLogID).Error)
	require.True(t, raw.Processed)
	require.Nil(t, raw.DropReason)

	// A committed scan stamps the originating device.
	require.NoError(t, db.First(&device, device.ID).Error)
	require.NotNil(t, device.LastSyncTime)
	require.WithinDuration(t, scannedAt, *device.LastSyncTime, time.Second)

	// A second scan in the same window is absorbed without a second row.
	second, err := svc.ProcessScan(ctx, models.ScanEvent{
		BiometricUserID: "1042",
		Timestamp:       scannedAt.Add(25 * time.Minute),
		Origin:          models.OriginPush,
	})
	require.NoError(t, err)
	require.Equal(t, DecisionDuplicate, second.Outcome)
	require.Nil(t, second.Record)

	var count int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, db.First(&raw, second.RawLogID).Error)
	require.True(t, raw.Processed)
	require.NotNil(t, raw.DropReason)
	require.Equal(t, DecisionDuplicate, *raw.DropReason)

	require.Len(t, feed.scans, 2)
	require.Equal(t, DecisionRecorded, feed.scans[0].Outcome)
	require.Equal(t, DecisionDuplicate, feed.scans[1].Outcome)
}

func TestMatchingServiceDropReasons(t *testing.T) {
	db := openServiceDB(t, &models.Student{}, &models.ScheduleWindow{}, &models.AttendanceRecord{}, &models.RawLog{}, &models.AuditEvent{})

	students := []models.Student{
		{FullName: "Sara Kareem", BiometricUserID: "2001", Status: models.StudentActive, Stage: "stage-1"},
		{FullName: "Omar Walid", BiometricUserID: "2002", Status: models.StudentSuspended, Stage: "stage-1"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

	svc := newMatchingService(db, nil)
	ctx := context.Background()
	at := time.Date(2024, 3, 11, 9, 15, 0, 0, time.UTC)

	cases := []struct {
		name      string
		event     models.ScanEvent
		outcome   string
		processed bool
	}{
		{
			name:      "unknown identity stays queued for review",
			event:     models.ScanEvent{BiometricUserID: "9999", Timestamp: at, Origin: models.OriginDevice},
			outcome:   DecisionUnknownIdentity,
			processed: false,
		},
		{
			name:      "suspended student is dropped",
			event:     models.ScanEvent{BiometricUserID: "2002", Timestamp: at, Origin: models.OriginDevice},
			outcome:   DecisionInactiveIdentity,
			processed: false,
		},
		{
			name:      "no window covers the instant",
			event:     models.ScanEvent{BiometricUserID: "2001", Timestamp: at, Origin: models.OriginDevice},
			outcome:   DecisionNoActiveWindow,
			processed: false,
		},
		{
			name:      "face scans are logged but not matched",
			event:     models.ScanEvent{BiometricUserID: "2001", Timestamp: at, Modality: models.ModalityFace, Origin: models.OriginPush},
			outcome:   DecisionModalitySkipped,
			processed: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := svc.ProcessScan(ctx, tc.event)
			require.NoError(t, err)
			require.Equal(t, tc.outcome, decision.Outcome)
			require.Nil(t, decision.Record)

			var raw models.RawLog
			require.NoError(t, db.First(&raw, decision.RawLogID).Error)
			require.Equal(t, tc.processed, raw.Processed)
			require.NotNil(t, raw.DropReason)
			require.Equal(t, tc.outcome, *raw.DropReason)
		})
	}

	logs, err := svc.UnprocessedLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
}

func TestMatchingServiceStageFilterAndLectureFallback(t *testing.T) {
	db := openServiceDB(t, &models.Student{}, &models.ScheduleWindow{}, &models.AttendanceRecord{}, &models.RawLog{}, &models.AuditEvent{})

	students := []models.Student{
		{FullName: "Noor Sami", BiometricUserID: "3001", Status: models.StudentActive, Stage: "stage-1"},
		{FullName: "Zain Adel", BiometricUserID: "3002", Status: models.StudentActive, Stage: "stage-2"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

	windows := []models.ScheduleWindow{
		{Source: models.WindowSourceSubject, Title: "Compilers", Stage: "stage-2", DayOfWeek: intPointer(1), StartMinute: 540, EndMinute: 600, Status: models.WindowActive},
		{Source: models.WindowSourceLecture, Title: "General Lecture", DayOfWeek: intPointer(1), StartMinute: 540, EndMinute: 600, Status: models.WindowActive},
	}
	for i := range windows {
		require.NoError(t, db.Create(&windows[i]).Error)
	}

	svc := newMatchingService(db, nil)
	ctx := context.Background()
	at := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

	// stage-1 falls through the stage-2 subject window to the open lecture.
	decision, err := svc.ProcessScan(ctx, models.ScanEvent{BiometricUserID: "3001", Timestamp: at, Origin: models.OriginDevice})
	require.NoError(t, err)
	require.Equal(t, DecisionRecorded, decision.Outcome)
	require.Equal(t, "General Lecture", decision.Window.Title)

	// stage-2 is admitted by the subject window even though both are active.
	decision, err = svc.ProcessScan(ctx, models.ScanEvent{BiometricUserID: "3002", Timestamp: at, Origin: models.OriginDevice})
	require.NoError(t, err)
	require.Equal(t, DecisionRecorded, decision.Outcome)
	require.Equal(t, "Compilers", decision.Window.Title)
}

func TestMatchingServiceProcessBatch(t *testing.T) {
	db := openServiceDB(t, &models.Student{}, &models.ScheduleWindow{}, &models.AttendanceRecord{}, &models.RawLog{}, &models.AuditEvent{})

	student := models.Student{FullName: "Hana Tarek", BiometricUserID: "4001", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)

	window := models.ScheduleWindow{
		Source:      models.WindowSourceSubject,
		Title:       "Networks",
		Stage:       "stage-1",
		DayOfWeek:   intPointer(1),
		StartMinute: 540,
		EndMinute:   600,
		Status:      models.WindowActive,
	}
	require.NoError(t, db.Create(&window).Error)

	svc := newMatchingService(db, nil)
	at := time.Date(2024, 3, 11, 9, 10, 0, 0, time.UTC)

	summary := svc.ProcessBatch(context.Background(), []models.ScanEvent{
		{BiometricUserID: "4001", Timestamp: at, Origin: models.OriginImport},
		{BiometricUserID: "4001", Timestamp: at.Add(5 * time.Minute), Origin: models.OriginImport},
		{BiometricUserID: "7777", Timestamp: at, Origin: models.OriginImport},
		{BiometricUserID: "4001", Origin: models.OriginImport},
	})

	require.Equal(t, 4, summary.Total)
	require.Equal(t, 1, summary.Failures)
	require.Equal(t, 1, summary.Outcomes[DecisionRecorded])
	require.Equal(t, 1, summary.Outcomes[DecisionDuplicate])
	require.Equal(t, 1, summary.Outcomes[DecisionUnknownIdentity])
}

func TestMatchingServiceAutoMarkAbsent(t *testing.T) {
	db := openServiceDB(t, &models.Student{}, &models.ScheduleWindow{}, &models.AttendanceRecord{}, &models.RawLog{}, &models.AuditEvent{})

	students := []models.Student{
		{FullName: "Ali Hassan", BiometricUserID: "5001", Status: models.StudentActive, Stage: "stage-1"},
		{FullName: "Sara Kareem", BiometricUserID: "5002", Status: models.StudentActive, Stage: "stage-1"},
		{FullName: "Omar Walid", BiometricUserID: "5003", Status: models.StudentActive, Stage: "stage-2"},
		{FullName: "Zain Adel", BiometricUserID: "5004", Status: models.StudentInactive, Stage: "stage-1"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

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

	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	present := models.AttendanceRecord{
		StudentID:     students[0].ID,
		WindowID:      window.ID,
		Date:          day,
		ScanTimestamp: day.Add(9*time.Hour + 5*time.Minute),
		Status:        models.AttendancePresent,
		Source:        models.SourceFingerprint,
	}
	require.NoError(t, db.Create(&present).Error)

	feed := &feedRecorder{}
	svc := newMatchingService(db, feed)
	ctx := context.Background()

	report, err := svc.AutoMarkAbsent(ctx, window.ID, day)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalStudents)
	require.Equal(t, 1, report.AlreadyMarked)
	require.Equal(t, 1, report.MarkedAbsent)

	var absents []models.AttendanceRecord
	require.NoError(t, db.Where("status = ?", models.AttendanceAbsent).Find(&absents).Error)
	require.Len(t, absents, 1)
	require.Equal(t, students[1].ID, absents[0].StudentID)
	require.Equal(t, models.SourceSystemAuto, absents[0].Source)
	require.Nil(t, absents[0].RawLogID)
	require.WithinDuration(t, day.Add(9*time.Hour), absents[0].ScanTimestamp, time.Second)

	// The sweep is idempotent.
	again, err := svc.AutoMarkAbsent(ctx, window.ID, day)
	require.NoError(t, err)
	require.Equal(t, 0, again.MarkedAbsent)
	require.Equal(t, 2, again.AlreadyMarked)

	require.Len(t, feed.sweeps, 2)

	var audits int64
	require.NoError(t, db.Model(&models.AuditEvent{}).Where("action = ?", "attendance.sweep").Count(&audits).Error)
	require.EqualValues(t, 2, audits)
}

type feedRecorder struct {
	scans  []ScanDecision
	sweeps []AbsenceReport
}

func (f *feedRecorder) BroadcastScan(_ context.Context, decision ScanDecision, _ models.RawLog) {
	f.scans = append(f.scans, decision)
}

func (f *feedRecorder) BroadcastSweep(_ context.Context, report AbsenceReport) {
	f.sweeps = append(f.sweeps, report)
}

func newMatchingService(db *gorm.DB, feed FeedBroadcaster) MatchingService {
	audit := NewAuditService(repository.NewAuditRepository(db), nil, zerolog.Nop())
	return NewMatchingService(
		repository.NewRawLogRepository(db),
		repository.NewStudentRepository(db),
		repository.NewScheduleRepository(db),
		repository.NewAttendanceRepository(db),
		repository.NewDeviceRepository(db),
		audit,
		feed,
		time.UTC,
		zerolog.Nop(),
	)
}

func openServiceDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	return db
}

func intPointer(v int) *int {
	return &v
}
