package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lojafacil/backend/internal/cache"
	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/media"
	"lojafacil/backend/internal/store"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	uploader   media.Uploader
	profiles   cache.ProfileCache
	profileTTL time.Duration
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Service)

func WithUploader(u media.Uploader) Option {
	return func(s *Service) {
		if u != nil {
			s.uploader = u
		}
	}
}

func WithProfileCache(c cache.ProfileCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.profiles = c
		}
		if ttl > 0 {
			s.profileTTL = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock replaces the wall clock used for report windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		uploader:   media.NoopUploader{},
		profiles:   cache.NoopProfileCache{},
		profileTTL: 5 * time.Minute,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("lojafacil/service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")
	return s
}

// owner resolves the authenticated owner id every operation is scoped by.
func owner(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return "", ErrUnauthenticated
	}
	return actor.UserID, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
