package storage

import (
	"go.uber.org/zap"
)

// Lock resource names for compound writes
const (
	LockMedications = "medications"
	LockHealthLogs  = "health_logs"
	LockUserData    = "user_data"
)

var userDataSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		date_of_birth TEXT,
		blood_type TEXT,
		allergies TEXT,
		emergency_contact TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		setting_key TEXT NOT NULL,
		setting_value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, setting_key)
	)`,
}

var medicationSchema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		dosage TEXT NOT NULL,
		strength TEXT NOT NULL DEFAULT '',
		form TEXT NOT NULL DEFAULT '',
		color TEXT,
		shape TEXT,
		manufacturer TEXT,
		prescriber TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		instructions TEXT,
		side_effects TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medication_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		medication_id INTEGER NOT NULL,
		time_slot TEXT NOT NULL,
		frequency TEXT NOT NULL,
		days_of_week TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		reminder_enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_medication ON medication_schedules(medication_id)`,
}

var healthLogSchema = []string{
	`CREATE TABLE IF NOT EXISTS medication_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		medication_id INTEGER NOT NULL,
		medication_name TEXT NOT NULL,
		dosage TEXT NOT NULL DEFAULT '',
		scheduled_time TEXT NOT NULL,
		actual_time TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		location TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_user_date ON medication_logs(user_id, scheduled_time)`,
	`CREATE TABLE IF NOT EXISTS side_effect_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		medication_id INTEGER,
		medication_name TEXT,
		symptom TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT,
		reported_time TEXT NOT NULL,
		action_taken TEXT,
		contacted_doctor INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS daily_health_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		summary_date TEXT NOT NULL,
		total_medications INTEGER NOT NULL DEFAULT 0,
		medications_taken INTEGER NOT NULL DEFAULT 0,
		medications_skipped INTEGER NOT NULL DEFAULT 0,
		medications_missed INTEGER NOT NULL DEFAULT 0,
		side_effects_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, summary_date)
	)`,
}

// NewUserDataStore builds the user/profile store
func NewUserDataStore(path string, opts Options, logger *zap.Logger) *Store {
	return New("user-data", path, userDataSchema, opts, logger)
}

// NewMedicationStore builds the medication-definition store
func NewMedicationStore(path string, opts Options, logger *zap.Logger) *Store {
	return New("medication-data", path, medicationSchema, opts, logger)
}

// NewHealthLogStore builds the health/adherence-log store
func NewHealthLogStore(path string, opts Options, logger *zap.Logger) *Store {
	return New("health-logs", path, healthLogSchema, opts, logger)
}
