package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/api"
	"github.com/charlesng35/longevity/internal/app"
	"github.com/charlesng35/longevity/internal/app/maintenance"
	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/internal/cache"
	"github.com/charlesng35/longevity/internal/database"
	"github.com/charlesng35/longevity/internal/generator"
	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/internal/services"
	"github.com/charlesng35/longevity/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB              *gorm.DB
	Redis           *cache.RedisStore
	Store           cache.Store
	Hub             *realtime.Hub
	Notifications   *services.NotificationService
	Recommendations *services.RecommendationService
	Cleaner         *maintenance.Cleaner
	RateStore       middleware.RateStore
	Router          *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background(), log); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if !cfg.Database.UsesMemoryStore() {
		stack.DB, err = initialiseDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	switch {
	case stack.Redis != nil:
		stack.Store = stack.Redis
	case stack.DB != nil:
		stack.Store = cache.NewDatabaseStore(stack.DB)
	default:
		stack.Store = cache.NewMemoryStore()
	}

	repo, err := buildRepository(stack, cfg.Cache.TierTTL())
	if err != nil {
		return nil, err
	}

	generators, err := buildGenerators(cfg.AI, log)
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub(cfg.Server.CORS.AllowedOrigins...)

	var notifier recommendations.Notifier
	if stack.DB != nil {
		stack.Notifications, err = services.NewNotificationService(stack.DB, stack.Hub)
		if err != nil {
			return nil, fmt.Errorf("initialise notification service: %w", err)
		}
		recNotifier, err := services.NewRecommendationNotifier(stack.Notifications)
		if err != nil {
			return nil, fmt.Errorf("initialise recommendation notifier: %w", err)
		}
		notifier = recNotifier
	}

	stack.Recommendations, err = services.NewRecommendationService(services.RecommendationServiceConfig{
		Repository:     repo,
		Generators:     generators,
		Notifier:       notifier,
		Broadcaster:    stack.Hub,
		Observer:       recommendations.PrometheusObserver{},
		MaxControllers: cfg.Recommendations.MaxControllers,
		RetryAttempts:  cfg.AI.Retry.Attempts,
		RetryBaseDelay: cfg.AI.Retry.BaseDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise recommendation service: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Cleaner = buildCleaner(cfg.Maintenance, stack)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.RateStore = middleware.NewStoreRateStore(stack.Store)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:          cfg,
		DB:              stack.DB,
		Cache:           stack.Store,
		JWT:             jwtSvc,
		Recommendations: stack.Recommendations,
		Notifications:   stack.Notifications,
		Hub:             stack.Hub,
		RateStore:       stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildRepository picks the durable store and layers the shared cache copy on top of it.
func buildRepository(stack *runtimeStack, ttl time.Duration) (recommendations.Repository, error) {
	if stack.DB == nil {
		return recommendations.NewMemoryRepository(), nil
	}

	inner, err := recommendations.NewGormRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise recommendation repository: %w", err)
	}
	if stack.Redis == nil {
		return inner, nil
	}
	return recommendations.NewTieredRepository(inner, stack.Redis, ttl)
}

func buildGenerators(cfg app.AIConfig, log *zap.Logger) (recommendations.GeneratorFactory, error) {
	if !cfg.UsesOpenAI() {
		if strings.EqualFold(strings.TrimSpace(cfg.Provider), app.ProviderOpenAI) {
			log.Warn("ai.api_key is empty; serving static recommendations")
		}
		return generator.NewStatic().For, nil
	}

	client, err := generator.NewOpenAI(cfg.GeneratorConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise recommendation generator: %w", err)
	}
	log.Info("recommendation generator ready", zap.String("provider", app.ProviderOpenAI))
	return client.For, nil
}

func buildCleaner(cfg app.MaintenanceConfig, stack *runtimeStack) *maintenance.Cleaner {
	opts := []maintenance.Option{
		maintenance.WithNotificationRetentionDays(cfg.NotificationRetentionDays),
		maintenance.WithCacheSchedule(cfg.CacheCleanupSchedule),
		maintenance.WithNotificationSchedule(cfg.NotificationCleanupSchedule),
	}

	var entries maintenance.ExpiredEntryPurger
	if dbStore, ok := stack.Store.(*cache.DatabaseStore); ok {
		entries = dbStore
	}
	var notifications maintenance.NotificationPurger
	if stack.Notifications != nil {
		notifications = stack.Notifications
	}
	return maintenance.NewCleaner(entries, notifications, opts...)
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Recommendations != nil {
		s.Recommendations.Close()
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		stats, err := s.Cleaner.RunOnce(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance cleanup: %w", err))
		} else {
			log.Info("maintenance shutdown cleanup",
				zap.Int64("expired_entries", stats.ExpiredEntries),
				zap.Int64("notifications", stats.Notifications),
			)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.DB != nil {
		errs = multierr.Append(errs, closeDatabase(s.DB))
	}

	return errs
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
