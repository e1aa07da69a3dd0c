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

// UserRepository manages profile and settings rows in the user-data store
type UserRepository struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(store *storage.Store, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		store:  store,
		logger: logger,
	}
}

// GetProfile retrieves the profile row for a user
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	var (
		p                    model.UserProfile
		email, dob, blood    sql.NullString
		allergies, emergency sql.NullString
		createdAt, updatedAt string
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, user_id, display_name, email, date_of_birth, blood_type,
			allergies, emergency_contact, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.DisplayName, &email, &dob, &blood,
		&allergies, &emergency, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(fmt.Sprintf("profile for %s not found", userID))
	}
	if err != nil {
		r.logger.Error("failed to get profile", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Email = nullStr(email)
	p.DateOfBirth = nullStr(dob)
	p.BloodType = nullStr(blood)
	p.Allergies = nullStr(allergies)
	p.EmergencyContact = nullStr(emergency)
	p.CreatedAt, _ = parseTime(createdAt)
	p.UpdatedAt, _ = parseTime(updatedAt)
	return &p, nil
}

// EnsureProfile returns the profile for a user, creating an empty row first if
// none exists.
func (r *UserRepository) EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	db, err := r.store.DB(ctx)
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	_, err = db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, display_name, created_at, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, now, now,
	)
	if err != nil {
		r.logger.Error("failed to create profile", zap.Error(err), zap.String("user_id", userID))
		return nil, storage.TranslateBusy(err, "create profile")
	}
	return r.GetProfile(ctx, userID)
}

// UpdateProfile writes the mutable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE user_profiles
		SET display_name = ?, email = ?, date_of_birth = ?, blood_type = ?,
			allergies = ?, emergency_contact = ?, updated_at = ?
		WHERE user_id = ?`,
		p.DisplayName, p.Email, p.DateOfBirth, p.BloodType,
		p.Allergies, p.EmergencyContact, formatTime(time.Now()), p.UserID,
	)
	if err != nil {
		r.logger.Error("failed to update profile", zap.Error(err), zap.String("user_id", p.UserID))
		return storage.TranslateBusy(err, "update profile")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("profile for %s not found", p.UserID))
	}
	return nil
}

// GetSetting reads one settings value; NotFound if the key was never set
func (r *UserRepository) GetSetting(ctx context.Context, userID, key string) (string, error) {
	db, err := r.store.DB(ctx)
	if err != nil {
		return "", err
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT setting_value FROM user_settings WHERE user_id = ? AND setting_key = ?`,
		userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", apperrors.NewNotFound(fmt.Sprintf("setting %q not found", key))
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts one settings value
func (r *UserRepository) SetSetting(ctx context.Context, userID, key, value string) error {
	db, err := r.store.DB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, setting_key, setting_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at`,
		userID, key, value, formatTime(time.Now()),
	)
	if err != nil {
		r.logger.Error("failed to set setting", zap.Error(err), zap.String("key", key))
		return storage.TranslateBusy(err, "set setting")
	}
	return nil
}
