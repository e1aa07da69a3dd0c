package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/storage"
	"github.com/medtrackr/backend/pkg/model"
)

const logColumns = `id, user_id, medication_id, medication_name, dosage,
		scheduled_time, actual_time, status, notes, location, created_at`

const sideEffectColumns = `id, user_id, medication_id, medication_name, symptom,
		severity, description, duration, start_time, end_time, reported_time,
		action_taken, contacted_doctor`

// HealthLogRepository manages adherence logs, side-effect reports and daily
// summaries in the health-log store
type HealthLogRepository struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewHealthLogRepository creates a new HealthLogRepository
func NewHealthLogRepository(store *storage.Store, logger *zap.Logger) *HealthLogRepository {
	return &HealthLogRepository{
		store:  store,
		logger: logger,
	}
}

// InsertLog appends a medication log entry and returns its id
func (r *HealthLogRepository) InsertLog(ctx context.Context, entry *model.MedicationLogEntry) (int64, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return 0, err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO medication_logs (
			user_id, medication_id, medication_name, dosage, scheduled_time,
			actual_time, status, notes, location, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.MedicationID, entry.MedicationName, entry.Dosage,
		formatTime(entry.ScheduledTime), formatTimePtr(entry.ActualTime),
		string(entry.Status), entry.Notes, entry.Location, formatTime(entry.CreatedAt),
	)
	if err != nil {
		r.logger.Error("failed to insert medication log",
			zap.Error(err),
			zap.Int64("medication_id", entry.MedicationID),
			zap.String("status", string(entry.Status)),
		)
		return 0, storage.TranslateBusy(err, "insert medication log")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read log id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// UpdateLogStatus updates the matching log row in place (by medication id and
// scheduled time) instead of appending. Returns false without touching the row
// when the status already equals newStatus. A missing row is a NotFound error.
func (r *HealthLogRepository) UpdateLogStatus(ctx context.Context, medicationID int64, scheduledTime time.Time, newStatus model.LogStatus, note *string) (bool, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return false, err
	}

	var (
		id      int64
		current string
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, status FROM medication_logs
		WHERE medication_id = ? AND scheduled_time = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		medicationID, formatTime(scheduledTime),
	).Scan(&id, &current)
	if err == sql.ErrNoRows {
		return false, apperrors.NewNotFound(fmt.Sprintf("no log for medication %d at %s", medicationID, formatTime(scheduledTime)))
	}
	if err != nil {
		r.logger.Error("failed to find log for status update", zap.Error(err), zap.Int64("medication_id", medicationID))
		return false, fmt.Errorf("failed to find log: %w", err)
	}

	if model.LogStatus(current) == newStatus {
		return false, nil
	}

	_, err = db.ExecContext(ctx, `
		UPDATE medication_logs SET status = ?, actual_time = ?, notes = COALESCE(?, notes)
		WHERE id = ?`,
		string(newStatus), formatTime(time.Now()), note, id,
	)
	if err != nil {
		r.logger.Error("failed to update log status",
			zap.Error(err),
			zap.Int64("log_id", id),
			zap.String("new_status", string(newStatus)),
		)
		return false, storage.TranslateBusy(err, "update log status")
	}
	return true, nil
}

// LogsForDate retrieves all log entries whose scheduled time falls on the
// given calendar date, newest first.
func (r *HealthLogRepository) LogsForDate(ctx context.Context, userID, date string) ([]model.MedicationLogEntry, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + logColumns + `
		FROM medication_logs
		WHERE user_id = ? AND substr(scheduled_time, 1, 10) = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, userID, date)
	if err != nil {
		r.logger.Error("failed to query logs for date", zap.Error(err), zap.String("date", date))
		return nil, fmt.Errorf("failed to query logs for date: %w", err)
	}
	defer rows.Close()

	return r.collectLogs(rows)
}

// LogsForRange retrieves log entries with scheduled dates in [start, end]
func (r *HealthLogRepository) LogsForRange(ctx context.Context, userID, start, end string) ([]model.MedicationLogEntry, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + logColumns + `
		FROM medication_logs
		WHERE user_id = ?
		  AND substr(scheduled_time, 1, 10) >= ?
		  AND substr(scheduled_time, 1, 10) <= ?
		ORDER BY scheduled_time ASC, created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		r.logger.Error("failed to query logs for range",
			zap.Error(err),
			zap.String("start", start),
			zap.String("end", end),
		)
		return nil, fmt.Errorf("failed to query logs for range: %w", err)
	}
	defer rows.Close()

	return r.collectLogs(rows)
}

// LatestStatusByMedication returns the authoritative log entry per medication
// for one date in a single query. When a medication has several rows for the
// date, the highest created_at wins (id breaks ties) — that is the documented
// tie-break rule, not incidental insertion order. The engine uses this map for
// O(1) status lookups instead of one query per medication.
func (r *HealthLogRepository) LatestStatusByMedication(ctx context.Context, userID, date string) (map[int64]model.MedicationLogEntry, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + logColumns + `
		FROM medication_logs
		WHERE user_id = ? AND substr(scheduled_time, 1, 10) = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, userID, date)
	if err != nil {
		r.logger.Error("failed to query latest statuses", zap.Error(err), zap.String("date", date))
		return nil, fmt.Errorf("failed to query latest statuses: %w", err)
	}
	defer rows.Close()

	entries, err := r.collectLogs(rows)
	if err != nil {
		return nil, err
	}

	// Ascending scan order means later rows overwrite earlier ones.
	latest := make(map[int64]model.MedicationLogEntry, len(entries))
	for _, e := range entries {
		latest[e.MedicationID] = e
	}
	return latest, nil
}

// InsertSideEffect appends a side-effect report and returns its id
func (r *HealthLogRepository) InsertSideEffect(ctx context.Context, entry *model.SideEffectEntry) (int64, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO side_effect_logs (
			user_id, medication_id, medication_name, symptom, severity,
			description, duration, start_time, end_time, reported_time,
			action_taken, contacted_doctor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.MedicationID, entry.MedicationName, entry.Symptom,
		string(entry.Severity), entry.Description, entry.Duration,
		formatTime(entry.StartTime), formatTimePtr(entry.EndTime),
		formatTime(entry.ReportedTime), entry.ActionTaken,
		boolToInt(entry.ContactedDoctor),
	)
	if err != nil {
		r.logger.Error("failed to insert side effect", zap.Error(err), zap.String("symptom", entry.Symptom))
		return 0, storage.TranslateBusy(err, "insert side effect")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read side effect id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// DeleteSideEffect removes a side-effect report. Deleting a row that does not
// exist is a no-op: delete-if-exists semantics, uniformly.
func (r *HealthLogRepository) DeleteSideEffect(ctx context.Context, id int64) error {
	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM side_effect_logs WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("failed to delete side effect", zap.Error(err), zap.Int64("side_effect_id", id))
		return storage.TranslateBusy(err, "delete side effect")
	}
	return nil
}

// SideEffectsForRange retrieves side-effect reports with report dates in
// [start, end], newest first.
func (r *HealthLogRepository) SideEffectsForRange(ctx context.Context, userID, start, end string) ([]model.SideEffectEntry, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sideEffectColumns + `
		FROM side_effect_logs
		WHERE user_id = ?
		  AND substr(reported_time, 1, 10) >= ?
		  AND substr(reported_time, 1, 10) <= ?
		ORDER BY reported_time DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		r.logger.Error("failed to query side effects", zap.Error(err))
		return nil, fmt.Errorf("failed to query side effects: %w", err)
	}
	defer rows.Close()

	var entries []model.SideEffectEntry
	for rows.Next() {
		var (
			e                           model.SideEffectEntry
			medID                       sql.NullInt64
			medName, duration, action   sql.NullString
			severity, startT, reportedT string
			endT                        sql.NullString
			contacted                   int
		)
		err := rows.Scan(
			&e.ID, &e.UserID, &medID, &medName, &e.Symptom, &severity,
			&e.Description, &duration, &startT, &endT, &reportedT,
			&action, &contacted,
		)
		if err != nil {
			r.logger.Error("failed to scan side effect", zap.Error(err))
			continue
		}
		e.MedicationID = nullInt(medID)
		e.MedicationName = nullStr(medName)
		e.Severity = model.Severity(severity)
		e.Duration = nullStr(duration)
		e.StartTime, _ = parseTime(startT)
		e.EndTime = parseTimePtr(endT)
		e.ReportedTime, _ = parseTime(reportedT)
		e.ActionTaken = nullStr(action)
		e.ContactedDoctor = contacted == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating side effects", zap.Error(err))
		return nil, fmt.Errorf("error iterating side effects: %w", err)
	}
	return entries, nil
}

// SideEffectCountForDate counts side-effect reports reported on one date
func (r *HealthLogRepository) SideEffectCountForDate(ctx context.Context, userID, date string) (int, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM side_effect_logs
		WHERE user_id = ? AND substr(reported_time, 1, 10) = ?`,
		userID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count side effects: %w", err)
	}
	return count, nil
}

// UpsertDailySummary writes the cached per-day aggregate row
func (r *HealthLogRepository) UpsertDailySummary(ctx context.Context, s *model.DailyHealthSummary) error {
	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO daily_health_summaries (
			user_id, summary_date, total_medications, medications_taken,
			medications_skipped, medications_missed, side_effects_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, summary_date) DO UPDATE SET
			total_medications = excluded.total_medications,
			medications_taken = excluded.medications_taken,
			medications_skipped = excluded.medications_skipped,
			medications_missed = excluded.medications_missed,
			side_effects_count = excluded.side_effects_count,
			updated_at = excluded.updated_at`,
		s.UserID, s.SummaryDate, s.TotalMedications, s.MedicationsTaken,
		s.MedicationsSkipped, s.MedicationsMissed, s.SideEffectsCount,
		formatTime(time.Now()),
	)
	if err != nil {
		r.logger.Error("failed to upsert daily summary", zap.Error(err), zap.String("date", s.SummaryDate))
		return storage.TranslateBusy(err, "upsert daily summary")
	}
	return nil
}

// GetDailySummary retrieves the cached summary for one date, or NotFound
func (r *HealthLogRepository) GetDailySummary(ctx context.Context, userID, date string) (*model.DailyHealthSummary, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	var (
		s       model.DailyHealthSummary
		updated string
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, user_id, summary_date, total_medications, medications_taken,
			medications_skipped, medications_missed, side_effects_count, updated_at
		FROM daily_health_summaries
		WHERE user_id = ? AND summary_date = ?`,
		userID, date,
	).Scan(
		&s.ID, &s.UserID, &s.SummaryDate, &s.TotalMedications, &s.MedicationsTaken,
		&s.MedicationsSkipped, &s.MedicationsMissed, &s.SideEffectsCount, &updated,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(fmt.Sprintf("no summary for %s", date))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}
	s.UpdatedAt, _ = parseTime(updated)
	return &s, nil
}

func (r *HealthLogRepository) collectLogs(rows *sql.Rows) ([]model.MedicationLogEntry, error) {
	var entries []model.MedicationLogEntry
	for rows.Next() {
		var (
			e                    model.MedicationLogEntry
			scheduled, createdAt string
			actual               sql.NullString
			notes, location      sql.NullString
			status               string
		)
		err := rows.Scan(
			&e.ID, &e.UserID, &e.MedicationID, &e.MedicationName, &e.Dosage,
			&scheduled, &actual, &status, &notes, &location, &createdAt,
		)
		if err != nil {
			r.logger.Error("failed to scan medication log", zap.Error(err))
			continue
		}
		e.ScheduledTime, _ = parseTime(scheduled)
		e.ActualTime = parseTimePtr(actual)
		e.Status = model.LogStatus(status)
		e.Notes = nullStr(notes)
		e.Location = nullStr(location)
		e.CreatedAt, _ = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medication logs", zap.Error(err))
		return nil, fmt.Errorf("error iterating medication logs: %w", err)
	}
	return entries, nil
}
