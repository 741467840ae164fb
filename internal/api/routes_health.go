package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/longevity/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, checks []handlers.HealthCheck) {
	health := handlers.Health(healthTimeout, checks...)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
