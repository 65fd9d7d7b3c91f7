package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
)

// Profile returns the authenticated owner's profile, read through the
// profile cache.
func (s *Service) Profile(ctx context.Context) (domain.UserProfile, error) {
	ownerID, err := owner(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}

	if cached, ok, err := s.profiles.Get(ctx, ownerID); err != nil {
		s.logger.Warn("profile cache read failed", zap.String("owner", ownerID), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	user, err := s.repo.GetUserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserProfile{}, ErrUnauthenticated
		}
		return domain.UserProfile{}, err
	}
	profile := user.Profile()
	s.CacheProfile(ctx, profile)
	return profile, nil
}

// CacheProfile primes the profile cache. Errors are logged only.
func (s *Service) CacheProfile(ctx context.Context, profile domain.UserProfile) {
	if err := s.profiles.Set(ctx, &profile, s.profileTTL); err != nil {
		s.logger.Warn("profile cache write failed", zap.String("owner", profile.ID), zap.Error(err))
	}
}
