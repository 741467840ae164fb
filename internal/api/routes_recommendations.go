package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/longevity/internal/handlers"
)

func registerRecommendationRoutes(api *gin.RouterGroup, handler *handlers.RecommendationHandler) {
	group := api.Group("/recommendations")
	{
		group.GET("/:kind", handler.Get)
		group.POST("/:kind/reconcile", handler.Reconcile)
		group.POST("/:kind/regenerate", handler.Regenerate)
	}
}
