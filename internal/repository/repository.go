// Package repository provides parameterized CRUD over the three embedded
// stores. No user data is ever interpolated into SQL text. Errors are never
// swallowed here: they are retried at the storage layer (connection opening
// only), converted to a typed application error, or wrapped and returned.
package repository

import (
	"database/sql"
	"time"
)

// timestampLayout is the ISO-8601 form used for persisted instants. Local
// time, no zone suffix: the first ten characters are the calendar date, which
// the per-date queries rely on.
const timestampLayout = "2006-01-02T15:04:05"

func formatTime(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.Local)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
