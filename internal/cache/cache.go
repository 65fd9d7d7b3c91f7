package cache

import (
	"context"
	"time"

	"lojafacil/backend/internal/domain"
)

// ProfileCache holds owner profiles keyed by user id. A miss is reported as
// (nil, false, nil).
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, bool, error)
	Set(ctx context.Context, profile *domain.UserProfile, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

type NoopProfileCache struct{}

func (NoopProfileCache) Get(_ context.Context, _ string) (*domain.UserProfile, bool, error) {
	return nil, false, nil
}

func (NoopProfileCache) Set(_ context.Context, _ *domain.UserProfile, _ time.Duration) error {
	return nil
}

func (NoopProfileCache) Delete(_ context.Context, _ string) error {
	return nil
}

func profileKey(userID string) string {
	return "lojafacil:profile:" + userID
}
