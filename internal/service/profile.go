package service

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/repository"
	"github.com/medtrackr/backend/pkg/model"
)

// ProfileService handles the local user's profile and settings
type ProfileService struct {
	repo   *repository.UserRepository
	logger *zap.Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(repo *repository.UserRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		repo:   repo,
		logger: logger,
	}
}

// GetProfile returns the local profile, creating an empty row on first run
func (s *ProfileService) GetProfile(ctx context.Context) (*model.UserProfile, error) {
	return s.repo.EnsureProfile(ctx, model.LocalUserID)
}

// UpdateProfile writes the mutable profile fields
func (s *ProfileService) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	if p.DisplayName == "" {
		return apperrors.NewValidation("display name is required")
	}
	p.UserID = model.LocalUserID

	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		s.logger.Error("failed to update profile", zap.Error(err))
		return err
	}
	s.logger.Info("profile updated", zap.String("display_name", p.DisplayName))
	return nil
}

// GetSetting reads one settings value, or fallback when it was never set
func (s *ProfileService) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	value, err := s.repo.GetSetting(ctx, model.LocalUserID, key)
	if apperrors.IsNotFound(err) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting upserts one settings value
func (s *ProfileService) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return apperrors.NewValidation("setting key is required")
	}
	return s.repo.SetSetting(ctx, model.LocalUserID, key, value)
}
