package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lojafacil/backend/internal/cache"
	"lojafacil/backend/internal/config"
	"lojafacil/backend/internal/httpapi"
	"lojafacil/backend/internal/media"
	"lojafacil/backend/internal/service"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/store/memory"
	pgstore "lojafacil/backend/internal/store/postgres"
)

// Application owns the long-lived dependencies of the server process.
type Application struct {
	cfg     config.Config
	logger  *zap.Logger
	repo    store.Repository
	service *service.Service
	api     *httpapi.API
	sched   *cron.Cron
	closers []func() error
}

func New(cfg config.Config, logger *zap.Logger) *Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{cfg: cfg, logger: logger}
}

// Init connects backing stores and builds the service graph. A configured
// DATABASE_URL that cannot be reached is fatal; an unreachable redis falls
// back to no caching.
func (a *Application) Init(ctx context.Context) error {
	repo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	a.repo = repo

	opts := []service.Option{
		service.WithLogger(a.logger),
		service.WithProfileCache(a.openProfileCache(ctx), a.cfg.ProfileCacheTTL()),
	}
	if a.cfg.MediaUploadURL != "" {
		uploader := media.NewHTTPUploader(a.cfg.MediaUploadURL, a.cfg.MediaUploadPreset, time.Duration(a.cfg.MediaTimeoutSeconds)*time.Second)
		opts = append(opts, service.WithUploader(uploader))
		a.logger.Info("media: http uploader", zap.String("url", a.cfg.MediaUploadURL))
	} else {
		a.logger.Info("media: disabled")
	}
	a.service = service.New(repo, opts...)

	auth, err := httpapi.NewAuthManager(a.cfg.AuthSecret, a.cfg.AccessTokenTTL(), repo)
	if err != nil {
		return err
	}
	a.api = httpapi.New(a.service, auth, a.cfg.AllowedOrigin, a.cfg.Location(), a.logger)

	return a.initJobs()
}

func (a *Application) openRepository(ctx context.Context) (store.Repository, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Info("repository: in-memory")
		return memory.NewSeeded(), nil
	}

	pg, err := pgstore.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	a.logger.Info("repository: postgres")
	return pg, nil
}

func (a *Application) openProfileCache(ctx context.Context) cache.ProfileCache {
	if a.cfg.RedisAddr == "" {
		a.logger.Info("cache: noop")
		return cache.NoopProfileCache{}
	}

	redisCache := cache.NewRedisProfileCache(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		a.logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopProfileCache{}
	}
	a.closers = append(a.closers, redisCache.Close)
	a.logger.Info("cache: redis", zap.String("addr", a.cfg.RedisAddr))
	return redisCache
}

func (a *Application) initJobs() error {
	a.sched = cron.New(cron.WithLocation(a.cfg.Location()))
	if a.cfg.StockAuditSchedule == "" {
		a.logger.Info("stock audit disabled")
		return nil
	}

	_, err := a.sched.AddFunc(a.cfg.StockAuditSchedule, a.runStockAudit)
	if err != nil {
		return fmt.Errorf("schedule stock audit %q: %w", a.cfg.StockAuditSchedule, err)
	}
	a.sched.Start()
	return nil
}

func (a *Application) runStockAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	drifted, err := a.service.AuditStockDrift(ctx)
	if err != nil {
		a.logger.Named("audit").Error("stock audit failed", zap.Error(err))
		return
	}
	a.logger.Named("audit").Info("stock audit finished", zap.Int("drifted", drifted))
}

func (a *Application) Handler() http.Handler {
	return a.api.Handler()
}

func (a *Application) Service() *service.Service {
	return a.service
}

// Close stops scheduled jobs, waiting for a running audit, then releases
// backing stores in reverse order of acquisition.
func (a *Application) Close() error {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
