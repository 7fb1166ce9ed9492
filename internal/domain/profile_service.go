package domain

import (
	"context"
	"log/slog"
)

// ProfileService owns user profiles.
type ProfileService struct {
	repo   ProfileRepository
	logger *slog.Logger
	locks  *keyedMutex
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo ProfileRepository, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{repo: repo, logger: logger, locks: newKeyedMutex()}
}

// GetProfile returns the stored profile, persisting the defaults the first time it is read.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.load(ctx, userID)
}

// UpdateProfile shallow-merges patch into the stored profile, validates the result and persists it.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (UserProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.load(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	merged := current.Merge(patch)
	if err := ValidateProfile(merged); err != nil {
		return UserProfile{}, err
	}
	if err := s.repo.PutProfile(ctx, userID, merged); err != nil {
		return UserProfile{}, err
	}
	return merged, nil
}

func (s *ProfileService) load(ctx context.Context, userID string) (UserProfile, error) {
	stored, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	if stored != nil {
		return *stored, nil
	}

	profile := DefaultProfile()
	if err := s.repo.PutProfile(ctx, userID, profile); err != nil {
		return UserProfile{}, err
	}
	s.logger.Debug("materialized default profile", "user_id", userID)
	return profile, nil
}
