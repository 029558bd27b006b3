// Package bootstrap wires process-level dependencies for the commands.
package bootstrap

import (
	"context"
	"fmt"

	"bookclub/internal/cache"
	"bookclub/internal/config"
	"bookclub/internal/database"
	"bookclub/internal/jobs"
	"bookclub/internal/middleware"
	"bookclub/internal/models"
	"bookclub/internal/observability"
	"bookclub/internal/repository"
	"bookclub/internal/seed"
	"bookclub/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo clubs.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis. Redis is optional and
// the returned client is nil when it is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemo {
		if err := seedIfEmpty(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

func seedIfEmpty(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.IsProduction() {
		return nil
	}
	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}
	sum, err := seed.Seed(ctx, db, seed.Options{NumUsers: 12, PostsPerUser: 2, RepliesPerThread: 4})
	if err != nil {
		return err
	}
	middleware.Logger.Info("seeded empty database", "users", sum.Users, "groups", sum.Groups)
	return nil
}

// InitTracing configures OpenTelemetry from cfg and returns its shutdown.
func InitTracing(cfg *config.Config, version string) (func(context.Context) error, error) {
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    "bookclub-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
}

// StartJobs schedules counter reconciliation. An empty schedule disables it
// and returns a nil scheduler.
func StartJobs(cfg *config.Config, db *gorm.DB, publisher service.Publisher) (*jobs.Scheduler, error) {
	if cfg.CounterReconcileSpec == "" {
		return nil, nil
	}
	reconciler := jobs.NewCounterReconciler(repository.NewCounterRepository(db), publisher)
	scheduler, err := jobs.NewScheduler(cfg.CounterReconcileSpec, reconciler)
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	middleware.Logger.Info("counter reconciliation scheduled", "spec", cfg.CounterReconcileSpec)
	return scheduler, nil
}
