package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/storage"
	"github.com/medtrackr/backend/pkg/model"
)

func newHealthLogRepo(t *testing.T) *HealthLogRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health_logs.db")
	store := storage.NewHealthLogStore(path, storage.DefaultOptions(), zap.NewNop())
	t.Cleanup(func() { store.Close() })
	return NewHealthLogRepository(store, zap.NewNop())
}

func testLogEntry(medID int64, scheduled time.Time, status model.LogStatus) *model.MedicationLogEntry {
	return &model.MedicationLogEntry{
		UserID:         model.LocalUserID,
		MedicationID:   medID,
		MedicationName: "Aspirin",
		Dosage:         "100mg",
		ScheduledTime:  scheduled,
		Status:         status,
	}
}

func TestInsertAndQueryLogsForDate(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	id, err := repo.InsertLog(ctx, testLogEntry(1, scheduled, model.StatusTaken))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// A log on a different date must not leak into the query.
	_, err = repo.InsertLog(ctx, testLogEntry(1, scheduled.AddDate(0, 0, 1), model.StatusTaken))
	require.NoError(t, err)

	entries, err := repo.LogsForDate(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusTaken, entries[0].Status)
	assert.Equal(t, "Aspirin", entries[0].MedicationName)
	assert.Equal(t, scheduled, entries[0].ScheduledTime)
}

func TestLatestStatusByMedicationTieBreak(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)

	first := testLogEntry(1, scheduled, model.StatusMissed)
	first.CreatedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	_, err := repo.InsertLog(ctx, first)
	require.NoError(t, err)

	second := testLogEntry(1, scheduled, model.StatusTaken)
	second.CreatedAt = time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)
	_, err = repo.InsertLog(ctx, second)
	require.NoError(t, err)

	latest, err := repo.LatestStatusByMedication(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	require.Contains(t, latest, int64(1))
	assert.Equal(t, model.StatusTaken, latest[1].Status, "row with highest created_at must win")
}

func TestLatestStatusByMedicationIdBreaksCreationTies(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	createdAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	first := testLogEntry(1, scheduled, model.StatusSkipped)
	first.CreatedAt = createdAt
	_, err := repo.InsertLog(ctx, first)
	require.NoError(t, err)

	second := testLogEntry(1, scheduled, model.StatusTaken)
	second.CreatedAt = createdAt
	_, err = repo.InsertLog(ctx, second)
	require.NoError(t, err)

	latest, err := repo.LatestStatusByMedication(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTaken, latest[1].Status, "higher id must win on equal created_at")
}

func TestUpdateLogStatus(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	_, err := repo.InsertLog(ctx, testLogEntry(1, scheduled, model.StatusTaken))
	require.NoError(t, err)

	// Same status is a no-op.
	changed, err := repo.UpdateLogStatus(ctx, 1, scheduled, model.StatusTaken, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.UpdateLogStatus(ctx, 1, scheduled, model.StatusSkipped, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	// In place: still exactly one row, with the new status.
	entries, err := repo.LogsForDate(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusSkipped, entries[0].Status)
	assert.NotNil(t, entries[0].ActualTime)
}

func TestUpdateLogStatusMissingRow(t *testing.T) {
	repo := newHealthLogRepo(t)

	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	_, err := repo.UpdateLogStatus(context.Background(), 1, scheduled, model.StatusTaken, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLogsForRangeInclusive(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	for day := 9; day <= 12; day++ {
		scheduled := time.Date(2025, 3, day, 8, 0, 0, 0, time.Local)
		_, err := repo.InsertLog(ctx, testLogEntry(int64(day), scheduled, model.StatusTaken))
		require.NoError(t, err)
	}

	entries, err := repo.LogsForRange(ctx, model.LocalUserID, "2025-03-10", "2025-03-11")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(10), entries[0].MedicationID)
	assert.Equal(t, int64(11), entries[1].MedicationID)
}

func TestSideEffectLifecycle(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	reported := time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)
	entry := &model.SideEffectEntry{
		UserID:       model.LocalUserID,
		Symptom:      "headache",
		Severity:     model.SeverityMild,
		StartTime:    reported,
		ReportedTime: reported,
	}
	id, err := repo.InsertSideEffect(ctx, entry)
	require.NoError(t, err)

	count, err := repo.SideEffectCountForDate(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	effects, err := repo.SideEffectsForRange(ctx, model.LocalUserID, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, "headache", effects[0].Symptom)
	assert.Equal(t, model.SeverityMild, effects[0].Severity)

	require.NoError(t, repo.DeleteSideEffect(ctx, id))

	// Deleting again is a no-op, not an error.
	require.NoError(t, repo.DeleteSideEffect(ctx, id))

	count, err = repo.SideEffectCountForDate(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDailySummaryUpsert(t *testing.T) {
	repo := newHealthLogRepo(t)
	ctx := context.Background()

	_, err := repo.GetDailySummary(ctx, model.LocalUserID, "2025-03-10")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	summary := &model.DailyHealthSummary{
		UserID:           model.LocalUserID,
		SummaryDate:      "2025-03-10",
		TotalMedications: 3,
		MedicationsTaken: 2,
	}
	require.NoError(t, repo.UpsertDailySummary(ctx, summary))

	summary.MedicationsTaken = 3
	require.NoError(t, repo.UpsertDailySummary(ctx, summary))

	got, err := repo.GetDailySummary(ctx, model.LocalUserID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalMedications)
	assert.Equal(t, 3, got.MedicationsTaken, "second upsert must overwrite, not duplicate")
}
