package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/app"
	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/internal/cache"
	"github.com/charlesng35/longevity/internal/database"
	"github.com/charlesng35/longevity/internal/handlers"
	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/internal/services"
)

const healthTimeout = 2 * time.Second

// Dependencies carries the long-lived services the router mounts.
type Dependencies struct {
	Config          *app.Config
	DB              *gorm.DB
	Cache           cache.Store
	JWT             *iauth.JWTService
	Recommendations *services.RecommendationService
	Notifications   *services.NotificationService
	Hub             *realtime.Hub
	RateStore       middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Recommendations == nil:
		return errors.New("recommendation service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger("/health", "/api/health", cfg.Monitoring.Prometheus.Endpoint))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))

	registerHealthRoutes(r, healthChecks(deps))
	registerMonitoringRoutes(r, cfg.Monitoring.Prometheus)
	registerRealtimeRoutes(r, deps.Hub, deps.JWT)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	recHandler, err := handlers.NewRecommendationHandler(deps.Recommendations)
	if err != nil {
		return nil, err
	}
	registerRecommendationRoutes(api, recHandler)

	if deps.Notifications != nil {
		notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
		if err != nil {
			return nil, err
		}
		registerNotificationRoutes(api, notificationHandler)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func healthChecks(deps Dependencies) []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if deps.DB != nil {
		db := deps.DB
		checks = append(checks, handlers.HealthCheck{
			Name: "database",
			Check: func(ctx context.Context) error {
				return database.Ping(ctx, db, healthTimeout)
			},
		})
	}
	if pinger, ok := deps.Cache.(cache.Pinger); ok {
		checks = append(checks, handlers.HealthCheck{Name: "cache", Check: pinger.Ping})
	}
	return checks
}
