package model

import "time"

// LocalUserID is the fixed identifier for the single on-device user. All
// persisted rows belong to it; remote identity is handled elsewhere.
const LocalUserID = "local-user"

// MedicationForm represents the pharmaceutical form of a medication
type MedicationForm string

const (
	FormTablet    MedicationForm = "tablet"
	FormCapsule   MedicationForm = "capsule"
	FormLiquid    MedicationForm = "liquid"
	FormInjection MedicationForm = "injection"
	FormCream     MedicationForm = "cream"
	FormInhaler   MedicationForm = "inhaler"
)

// Frequency represents how often a scheduled medication recurs
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyDateRange Frequency = "date_range"
	FrequencyAsNeeded  Frequency = "as_needed"
)

// LogStatus represents the outcome recorded for a medication occurrence
type LogStatus string

const (
	StatusPending     LogStatus = "pending"
	StatusTaken       LogStatus = "taken"
	StatusSkipped     LogStatus = "skipped"
	StatusMissed      LogStatus = "missed"
	StatusRescheduled LogStatus = "rescheduled"
)

// Severity represents the severity of a reported side effect
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Medication represents a medication definition. Medications are never
// hard-deleted: "delete" flips IsActive so historical log entries keep a
// resolvable reference.
type Medication struct {
	ID           int64          `json:"id"`
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Dosage       string         `json:"dosage"`
	Strength     string         `json:"strength,omitempty"`
	Form         MedicationForm `json:"form,omitempty"`
	Color        *string        `json:"color,omitempty"`
	Shape        *string        `json:"shape,omitempty"`
	Manufacturer *string        `json:"manufacturer,omitempty"`
	Prescriber   *string        `json:"prescriber,omitempty"`
	StartDate    string         `json:"start_date"`
	EndDate      *string        `json:"end_date,omitempty"`
	Instructions *string        `json:"instructions,omitempty"`
	SideEffects  *string        `json:"side_effects,omitempty"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ScheduleRule represents one reminder schedule row for a medication.
// DaysOfWeek holds the raw JSON array exactly as persisted; it may contain
// lowercase weekday names or 0-6 integers (0=Sunday) and is only meaningful
// for weekly and date_range frequencies.
type ScheduleRule struct {
	ID              int64     `json:"id"`
	MedicationID    int64     `json:"medication_id"`
	TimeSlot        string    `json:"time_slot"` // HH:MM, local time
	Frequency       Frequency `json:"frequency"`
	DaysOfWeek      *string   `json:"days_of_week,omitempty"`
	IsActive        bool      `json:"is_active"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ScheduledMedication joins a medication definition with one of its schedule
// rows; the unit the occurrence planner works on.
type ScheduledMedication struct {
	Medication Medication   `json:"medication"`
	Schedule   ScheduleRule `json:"schedule"`
}

// MedicationLogEntry represents a persisted adherence event. MedicationID is a
// weak reference: the medication may since have been soft-deleted, which is why
// name and dosage are denormalized at write time.
type MedicationLogEntry struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	MedicationID   int64      `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	ActualTime     *time.Time `json:"actual_time,omitempty"`
	Status         LogStatus  `json:"status"`
	Notes          *string    `json:"notes,omitempty"`
	Location       *string    `json:"location,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SideEffectEntry represents a user-reported side effect
type SideEffectEntry struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	MedicationID    *int64     `json:"medication_id,omitempty"`
	MedicationName  *string    `json:"medication_name,omitempty"`
	Symptom         string     `json:"symptom"`
	Severity        Severity   `json:"severity"`
	Description     string     `json:"description,omitempty"`
	Duration        *string    `json:"duration,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ReportedTime    time.Time  `json:"reported_time"`
	ActionTaken     *string    `json:"action_taken,omitempty"`
	ContactedDoctor bool       `json:"contacted_doctor"`
}

// DailyHealthSummary is a cached per-day aggregate. It is always recomputed
// from medication_logs and side_effect_logs and must never be treated as an
// independent source of truth.
type DailyHealthSummary struct {
	ID                 int64     `json:"id"`
	UserID             string    `json:"user_id"`
	SummaryDate        string    `json:"summary_date"` // YYYY-MM-DD
	TotalMedications   int       `json:"total_medications"`
	MedicationsTaken   int       `json:"medications_taken"`
	MedicationsSkipped int       `json:"medications_skipped"`
	MedicationsMissed  int       `json:"medications_missed"`
	SideEffectsCount   int       `json:"side_effects_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Occurrence is the derived, in-memory unit produced by the reconciliation
// engine for a single (medication, date) pair. Never persisted; recomputed on
// every query.
type Occurrence struct {
	MedicationID        int64      `json:"medication_id"`
	MedicationName      string     `json:"medication_name"`
	Dosage              string     `json:"dosage"`
	TimeSlot            string     `json:"time_slot"`
	Date                string     `json:"date"`
	Status              LogStatus  `json:"status"`
	ActualTime          *time.Time `json:"actual_time,omitempty"`
	CanInteract         bool       `json:"can_interact"`
	IsDeletedMedication bool       `json:"is_deleted_medication"`
}

// AdherenceStats aggregates expected-vs-actual dose counts over a date range
type AdherenceStats struct {
	TotalDoses          int `json:"total_doses"`
	TakenDoses          int `json:"taken_doses"`
	SkippedDoses        int `json:"skipped_doses"`
	MissedDoses         int `json:"missed_doses"`
	AdherencePercentage int `json:"adherence_percentage"`
}

// RangeStats is the analytics aggregator's view over a date range, including
// the pending bucket for occurrences that are not yet due.
type RangeStats struct {
	Total         int `json:"total"`
	Taken         int `json:"taken"`
	Skipped       int `json:"skipped"`
	Missed        int `json:"missed"`
	Pending       int `json:"pending"`
	AdherenceRate int `json:"adherence_rate"`
}

// StreakData reports perfect-day streaks over the trailing window
type StreakData struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// UserProfile represents the local user's profile row in the user-data store
type UserProfile struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	DisplayName      string    `json:"display_name"`
	Email            *string   `json:"email,omitempty"`
	DateOfBirth      *string   `json:"date_of_birth,omitempty"`
	BloodType        *string   `json:"blood_type,omitempty"`
	Allergies        *string   `json:"allergies,omitempty"`
	EmergencyContact *string   `json:"emergency_contact,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
