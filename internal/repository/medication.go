package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/storage"
	"github.com/medtrackr/backend/pkg/model"
)

const medicationColumns = `id, user_id, name, dosage, strength, form, color, shape,
		manufacturer, prescriber, start_date, end_date, instructions, side_effects,
		is_active, created_at, updated_at`

const scheduleColumns = `id, medication_id, time_slot, frequency, days_of_week,
		is_active, reminder_enabled, created_at, updated_at`

// medicationUpdatable whitelists the columns a sparse update may touch
var medicationUpdatable = map[string]bool{
	"name": true, "dosage": true, "strength": true, "form": true,
	"color": true, "shape": true, "manufacturer": true, "prescriber": true,
	"start_date": true, "end_date": true, "instructions": true,
	"side_effects": true, "is_active": true,
}

// scheduleUpdatable whitelists the columns a sparse schedule update may touch
var scheduleUpdatable = map[string]bool{
	"time_slot": true, "frequency": true, "days_of_week": true,
	"is_active": true, "reminder_enabled": true,
}

// MedicationRepository manages medication definitions and their schedule rows
// in the medication-definition store
type MedicationRepository struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(store *storage.Store, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		store:  store,
		logger: logger,
	}
}

// Create inserts a medication definition and, when rule is non-nil, its
// schedule row in one transaction under the store lock. Returns the new
// medication id.
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication, rule *model.ScheduleRule) (int64, error) {
	now := time.Now()
	med.CreatedAt = now
	med.UpdatedAt = now

	var medID int64
	err := r.store.WithLock(ctx, storage.LockMedications, func() error {
		return r.store.WithTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO medications (
					user_id, name, dosage, strength, form, color, shape,
					manufacturer, prescriber, start_date, end_date,
					instructions, side_effects, is_active, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				med.UserID, med.Name, med.Dosage, med.Strength, string(med.Form),
				med.Color, med.Shape, med.Manufacturer, med.Prescriber,
				med.StartDate, med.EndDate, med.Instructions, med.SideEffects,
				boolToInt(med.IsActive), formatTime(now), formatTime(now),
			)
			if err != nil {
				return storage.TranslateBusy(err, "insert medication")
			}
			medID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("read medication id: %w", err)
			}

			if rule != nil {
				rule.MedicationID = medID
				rule.CreatedAt = now
				rule.UpdatedAt = now
				res, err = tx.ExecContext(ctx, `
					INSERT INTO medication_schedules (
						medication_id, time_slot, frequency, days_of_week,
						is_active, reminder_enabled, created_at, updated_at
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					medID, rule.TimeSlot, string(rule.Frequency), rule.DaysOfWeek,
					boolToInt(rule.IsActive), boolToInt(rule.ReminderEnabled),
					formatTime(now), formatTime(now),
				)
				if err != nil {
					return storage.TranslateBusy(err, "insert medication schedule")
				}
				rule.ID, err = res.LastInsertId()
				if err != nil {
					return fmt.Errorf("read schedule id: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("user_id", med.UserID),
			zap.String("name", med.Name),
		)
		return 0, err
	}

	med.ID = medID
	return medID, nil
}

// FindByID retrieves a medication by id, active or not
func (r *MedicationRepository) FindByID(ctx context.Context, id int64) (*model.Medication, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = ?`
	med, err := scanMedication(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound(fmt.Sprintf("medication %d not found", id))
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.Int64("medication_id", id))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}
	return med, nil
}

// ListActive retrieves active medications for a user, alphabetical by name
func (r *MedicationRepository) ListActive(ctx context.Context, userID string) ([]model.Medication, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + medicationColumns + `
		FROM medications
		WHERE user_id = ? AND is_active = 1
		ORDER BY name COLLATE NOCASE ASC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, *med)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}
	return medications, nil
}

// IsActive reports whether the medication exists and is active
func (r *MedicationRepository) IsActive(ctx context.Context, id int64) (bool, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return false, err
	}
	var active int
	err = db.QueryRowContext(ctx, `SELECT is_active FROM medications WHERE id = ?`, id).Scan(&active)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check medication status: %w", err)
	}
	return active == 1, nil
}

// UpdateSparse writes only the supplied fields; everything else keeps its
// prior value. Unknown field names are rejected as a validation error.
func (r *MedicationRepository) UpdateSparse(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		if !medicationUpdatable[col] {
			return apperrors.NewValidation(fmt.Sprintf("field %q is not updatable", col))
		}
		if b, ok := val.(bool); ok {
			val = boolToInt(b)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id)

	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	query := "UPDATE medications SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update medication", zap.Error(err), zap.Int64("medication_id", id))
		return storage.TranslateBusy(err, "update medication")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("medication %d not found", id))
	}
	return nil
}

// UpdateScheduleSparse writes only the supplied schedule fields
func (r *MedicationRepository) UpdateScheduleSparse(ctx context.Context, scheduleID int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		if !scheduleUpdatable[col] {
			return apperrors.NewValidation(fmt.Sprintf("field %q is not updatable", col))
		}
		if b, ok := val.(bool); ok {
			val = boolToInt(b)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, formatTime(time.Now()), scheduleID)

	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	query := "UPDATE medication_schedules SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update schedule", zap.Error(err), zap.Int64("schedule_id", scheduleID))
		return storage.TranslateBusy(err, "update schedule")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("schedule %d not found", scheduleID))
	}
	return nil
}

// SoftDelete marks a medication and all of its schedule rows inactive in one
// transaction. Either both tables update or neither does. The row is never
// physically removed so historical logs keep a resolvable reference.
func (r *MedicationRepository) SoftDelete(ctx context.Context, id int64) error {
	err := r.store.WithLock(ctx, storage.LockMedications, func() error {
		return r.store.WithTx(ctx, func(tx *sql.Tx) error {
			now := formatTime(time.Now())

			res, err := tx.ExecContext(ctx,
				`UPDATE medications SET is_active = 0, updated_at = ? WHERE id = ?`, now, id)
			if err != nil {
				return storage.TranslateBusy(err, "soft-delete medication")
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("soft-delete medication: %w", err)
			}
			if affected == 0 {
				return apperrors.NewNotFound(fmt.Sprintf("medication %d not found", id))
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE medication_schedules SET is_active = 0, updated_at = ? WHERE medication_id = ?`, now, id)
			if err != nil {
				return storage.TranslateBusy(err, "soft-delete medication schedules")
			}
			return nil
		})
	})
	if err != nil {
		r.logger.Error("failed to soft-delete medication", zap.Error(err), zap.Int64("medication_id", id))
		return err
	}
	return nil
}

// SchedulesFor retrieves the active schedule rows for a medication
func (r *MedicationRepository) SchedulesFor(ctx context.Context, medicationID int64) ([]model.ScheduleRule, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + scheduleColumns + `
		FROM medication_schedules
		WHERE medication_id = ? AND is_active = 1
		ORDER BY time_slot ASC`

	rows, err := db.QueryContext(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to list schedules", zap.Error(err), zap.Int64("medication_id", medicationID))
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.ScheduleRule
	for rows.Next() {
		rule, err := scanSchedule(rows)
		if err != nil {
			r.logger.Error("failed to scan schedule", zap.Error(err))
			continue
		}
		schedules = append(schedules, *rule)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating schedules", zap.Error(err))
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

// ListActiveWithSchedules joins active medications with their active schedule
// rows. This is the single catalog query both the reconciliation engine and
// the analytics aggregator plan expected occurrences from.
func (r *MedicationRepository) ListActiveWithSchedules(ctx context.Context, userID string) ([]model.ScheduledMedication, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT
			m.id, m.user_id, m.name, m.dosage, m.strength, m.form, m.color, m.shape,
			m.manufacturer, m.prescriber, m.start_date, m.end_date, m.instructions,
			m.side_effects, m.is_active, m.created_at, m.updated_at,
			s.id, s.medication_id, s.time_slot, s.frequency, s.days_of_week,
			s.is_active, s.reminder_enabled, s.created_at, s.updated_at
		FROM medications m
		JOIN medication_schedules s ON s.medication_id = m.id
		WHERE m.user_id = ? AND m.is_active = 1 AND s.is_active = 1
		ORDER BY s.time_slot ASC, m.name COLLATE NOCASE ASC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list scheduled medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list scheduled medications: %w", err)
	}
	defer rows.Close()

	var result []model.ScheduledMedication
	for rows.Next() {
		var (
			med  model.Medication
			rule model.ScheduleRule

			medForm, medCreated, medUpdated        string
			color, shape, manufacturer, prescriber sql.NullString
			endDate, instructions, sideEffects     sql.NullString
			medActive                              int
			days                                   sql.NullString
			ruleActive, reminderEnabled            int
			ruleCreated, ruleUpdated               string
		)
		err := rows.Scan(
			&med.ID, &med.UserID, &med.Name, &med.Dosage, &med.Strength, &medForm,
			&color, &shape, &manufacturer, &prescriber, &med.StartDate, &endDate,
			&instructions, &sideEffects, &medActive, &medCreated, &medUpdated,
			&rule.ID, &rule.MedicationID, &rule.TimeSlot, (*string)(&rule.Frequency),
			&days, &ruleActive, &reminderEnabled, &ruleCreated, &ruleUpdated,
		)
		if err != nil {
			r.logger.Error("failed to scan scheduled medication", zap.Error(err))
			continue
		}

		med.Form = model.MedicationForm(medForm)
		med.Color = nullStr(color)
		med.Shape = nullStr(shape)
		med.Manufacturer = nullStr(manufacturer)
		med.Prescriber = nullStr(prescriber)
		med.EndDate = nullStr(endDate)
		med.Instructions = nullStr(instructions)
		med.SideEffects = nullStr(sideEffects)
		med.IsActive = medActive == 1
		med.CreatedAt, _ = parseTime(medCreated)
		med.UpdatedAt, _ = parseTime(medUpdated)

		rule.DaysOfWeek = nullStr(days)
		rule.IsActive = ruleActive == 1
		rule.ReminderEnabled = reminderEnabled == 1
		rule.CreatedAt, _ = parseTime(ruleCreated)
		rule.UpdatedAt, _ = parseTime(ruleUpdated)

		result = append(result, model.ScheduledMedication{Medication: med, Schedule: rule})
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating scheduled medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating scheduled medications: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (*model.Medication, error) {
	var (
		med                                    model.Medication
		form, createdAt, updatedAt             string
		color, shape, manufacturer, prescriber sql.NullString
		endDate, instructions, sideEffects     sql.NullString
		isActive                               int
	)
	err := row.Scan(
		&med.ID, &med.UserID, &med.Name, &med.Dosage, &med.Strength, &form,
		&color, &shape, &manufacturer, &prescriber, &med.StartDate, &endDate,
		&instructions, &sideEffects, &isActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	med.Form = model.MedicationForm(form)
	med.Color = nullStr(color)
	med.Shape = nullStr(shape)
	med.Manufacturer = nullStr(manufacturer)
	med.Prescriber = nullStr(prescriber)
	med.EndDate = nullStr(endDate)
	med.Instructions = nullStr(instructions)
	med.SideEffects = nullStr(sideEffects)
	med.IsActive = isActive == 1
	med.CreatedAt, _ = parseTime(createdAt)
	med.UpdatedAt, _ = parseTime(updatedAt)
	return &med, nil
}

func scanSchedule(row rowScanner) (*model.ScheduleRule, error) {
	var (
		rule                      model.ScheduleRule
		days                      sql.NullString
		isActive, reminderEnabled int
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&rule.ID, &rule.MedicationID, &rule.TimeSlot, (*string)(&rule.Frequency),
		&days, &isActive, &reminderEnabled, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.DaysOfWeek = nullStr(days)
	rule.IsActive = isActive == 1
	rule.ReminderEnabled = reminderEnabled == 1
	rule.CreatedAt, _ = parseTime(createdAt)
	rule.UpdatedAt, _ = parseTime(updatedAt)
	return &rule, nil
}
