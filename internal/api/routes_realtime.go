package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/internal/handlers"
	"github.com/charlesng35/longevity/internal/realtime"
)

func registerRealtimeRoutes(r *gin.Engine, hub *realtime.Hub, jwt *iauth.JWTService) {
	if hub == nil {
		return
	}
	handler := handlers.NewRealtimeHandler(hub, jwt, realtime.StreamNotifications, realtime.StreamRecommendations)
	r.GET("/ws", handler.Stream)
	r.GET("/ws/:stream", handler.Stream)
}
