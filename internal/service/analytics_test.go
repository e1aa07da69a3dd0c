package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrackr/backend/internal/dateutil"
	"github.com/medtrackr/backend/pkg/model"
)

// addBoundedMedication inserts a daily medication active only inside [start, end]
func addBoundedMedication(t *testing.T, s *testServices, name, start, end string) int64 {
	t.Helper()
	id, err := s.catalog.AddMedication(context.Background(),
		&model.Medication{Name: name, Dosage: "100mg", StartDate: start, EndDate: &end},
		&model.ScheduleRule{TimeSlot: "08:00", Frequency: model.FrequencyDaily},
	)
	require.NoError(t, err)
	return id
}

func logStatusAt(t *testing.T, s *testServices, medID int64, name string, scheduled time.Time, status model.LogStatus) {
	t.Helper()
	entry := &model.MedicationLogEntry{
		MedicationID:   medID,
		MedicationName: name,
		Dosage:         "100mg",
		ScheduledTime:  scheduled,
		Status:         status,
	}
	require.NoError(t, s.logs.LogEvent(context.Background(), entry))
}

func TestStatsForRangeCountsExpectedAndLogged(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id := addBoundedMedication(t, s, "Aspirin", "2025-01-01", "2025-01-04")
	logStatusAt(t, s, id, "Aspirin", time.Date(2025, 1, 1, 8, 0, 0, 0, time.Local), model.StatusTaken)
	logStatusAt(t, s, id, "Aspirin", time.Date(2025, 1, 2, 8, 0, 0, 0, time.Local), model.StatusSkipped)

	stats, err := s.analytics.StatsForRange(ctx, "2025-01-01", "2025-01-04")
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Taken)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Missed, "unlogged past occurrences count as missed")
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 25, stats.AdherenceRate)
}

func TestStatsForRangeEmptyCatalog(t *testing.T) {
	s := newTestServices(t)

	stats, err := s.analytics.StatsForRange(context.Background(), "2025-01-01", "2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.AdherenceRate, "zero expected doses must not divide by zero")
}

func TestStatsForRangeRespectsMedicationBounds(t *testing.T) {
	s := newTestServices(t)

	addBoundedMedication(t, s, "Aspirin", "2025-01-03", "2025-01-04")

	stats, err := s.analytics.StatsForRange(context.Background(), "2025-01-01", "2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total, "only dates inside the medication window count")
}

func TestStatsForRangeFirstEntryWins(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id := addBoundedMedication(t, s, "Aspirin", "2025-01-01", "2025-01-01")
	scheduled := time.Date(2025, 1, 1, 8, 0, 0, 0, time.Local)

	first := &model.MedicationLogEntry{
		MedicationID:   id,
		MedicationName: "Aspirin",
		Dosage:         "100mg",
		ScheduledTime:  scheduled,
		Status:         model.StatusMissed,
		CreatedAt:      time.Date(2025, 1, 1, 9, 0, 0, 0, time.Local),
	}
	require.NoError(t, s.logs.LogEvent(ctx, first))

	second := &model.MedicationLogEntry{
		MedicationID:   id,
		MedicationName: "Aspirin",
		Dosage:         "100mg",
		ScheduledTime:  scheduled,
		Status:         model.StatusTaken,
		CreatedAt:      time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local),
	}
	require.NoError(t, s.logs.LogEvent(ctx, second))

	stats, err := s.analytics.StatsForRange(ctx, "2025-01-01", "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Missed, "the earliest entry per (medication, date) wins")
	assert.Equal(t, 0, stats.Taken)
}

func TestStatsForRangeTodaySplitsOnSlotElapsed(t *testing.T) {
	s := newTestServices(t)

	addDailyMedication(t, s, "Morning", "08:00")
	addDailyMedication(t, s, "Evening", "20:00")

	// Freeze the clock at noon: the morning slot has elapsed, the evening
	// slot has not.
	today := dateutil.Today()
	noon, err := dateutil.CombineDateTime(today, "12:00")
	require.NoError(t, err)
	s.analytics.now = func() time.Time { return noon }

	stats, err := s.analytics.StatsForRange(context.Background(), today, today)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Missed)
	assert.Equal(t, 1, stats.Pending)
}

func TestEngineAndAnalyticsAgreeOnExpectedCount(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	addDailyMedication(t, s, "Aspirin", "08:00")
	addDailyMedication(t, s, "Metformin", "12:00")
	yesterday := daysAgo(1)

	occurrences, err := s.occurrence.OccurrencesForDate(ctx, yesterday)
	require.NoError(t, err)

	stats, err := s.analytics.StatsForRange(ctx, yesterday, yesterday)
	require.NoError(t, err)

	assert.Equal(t, len(occurrences), stats.Total,
		"home view and analytics must plan the same expected set")
	assert.Equal(t, 2, stats.Missed, "swept missed rows count as missed in analytics too")
}

func TestStatsForRangeExcludesDeletedMedications(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id := addBoundedMedication(t, s, "Aspirin", "2025-01-01", "2025-01-07")
	logStatusAt(t, s, id, "Aspirin", time.Date(2025, 1, 1, 8, 0, 0, 0, time.Local), model.StatusTaken)

	require.NoError(t, s.catalog.DeleteMedication(ctx, id))

	// Both reconciliation paths plan from the active catalog, so a deleted
	// medication contributes no expected doses to either.
	stats, err := s.analytics.StatsForRange(ctx, "2025-01-01", "2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Taken)
}

func TestStreakData(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	// Active since two days ago; the day before the start has no expected
	// doses and therefore cannot be a perfect day.
	id, err := s.catalog.AddMedication(ctx,
		&model.Medication{Name: "Aspirin", Dosage: "100mg", StartDate: daysAgo(2)},
		&model.ScheduleRule{TimeSlot: "08:00", Frequency: model.FrequencyDaily},
	)
	require.NoError(t, err)

	for _, date := range []string{daysAgo(1), daysAgo(0)} {
		at, err := dateutil.CombineDateTime(date, "08:00")
		require.NoError(t, err)
		logStatusAt(t, s, id, "Aspirin", at, model.StatusTaken)
	}

	data, err := s.analytics.StreakData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, data.CurrentStreak)
	assert.Equal(t, 2, data.LongestStreak)
}

func TestStreakImperfectTodayDoesNotBreakRun(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id, err := s.catalog.AddMedication(ctx,
		&model.Medication{Name: "Aspirin", Dosage: "100mg", StartDate: daysAgo(1)},
		&model.ScheduleRule{TimeSlot: "08:00", Frequency: model.FrequencyDaily},
	)
	require.NoError(t, err)

	at, err := dateutil.CombineDateTime(daysAgo(1), "08:00")
	require.NoError(t, err)
	logStatusAt(t, s, id, "Aspirin", at, model.StatusTaken)

	// Today's dose is still untaken; the day is not over.
	data, err := s.analytics.StreakData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, data.CurrentStreak)
	assert.Equal(t, 1, data.LongestStreak)
}

func TestStreakMissedDayBreaksRun(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id, err := s.catalog.AddMedication(ctx,
		&model.Medication{Name: "Aspirin", Dosage: "100mg", StartDate: daysAgo(3)},
		&model.ScheduleRule{TimeSlot: "08:00", Frequency: model.FrequencyDaily},
	)
	require.NoError(t, err)

	// Taken three days ago and yesterday; missed two days ago.
	for _, date := range []string{daysAgo(3), daysAgo(1)} {
		at, err := dateutil.CombineDateTime(date, "08:00")
		require.NoError(t, err)
		logStatusAt(t, s, id, "Aspirin", at, model.StatusTaken)
	}
	at, err := dateutil.CombineDateTime(daysAgo(2), "08:00")
	require.NoError(t, err)
	logStatusAt(t, s, id, "Aspirin", at, model.StatusMissed)

	today, err := dateutil.CombineDateTime(daysAgo(0), "08:00")
	require.NoError(t, err)
	logStatusAt(t, s, id, "Aspirin", today, model.StatusTaken)

	data, err := s.analytics.StreakData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, data.CurrentStreak, "yesterday and today")
	assert.Equal(t, 2, data.LongestStreak)
}
