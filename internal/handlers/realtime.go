package handlers

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/response"
)

// RealtimeHandler upgrades authenticated requests into hub sockets.
type RealtimeHandler struct {
	hub     *realtime.Hub
	jwt     *iauth.JWTService
	allowed map[string]struct{}
	// defaults are joined when the client names no stream
	defaults []string
}

// NewRealtimeHandler constructs a realtime handler limited to streams, or to every known
// stream when none are given.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService, streams ...string) *RealtimeHandler {
	allowed := make(map[string]struct{})
	for _, stream := range realtime.ParseStreams(streams...) {
		allowed[stream] = struct{}{}
	}
	if len(allowed) == 0 {
		allowed = realtime.KnownStreams()
	}

	defaults := make([]string, 0, len(allowed))
	for stream := range allowed {
		defaults = append(defaults, stream)
	}
	sort.Strings(defaults)

	return &RealtimeHandler{hub: hub, jwt: jwt, allowed: allowed, defaults: defaults}
}

// Stream validates the caller and hands the connection to the hub.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := h.authenticate(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	streams := gatherStreams(c)
	if len(streams) == 0 {
		streams = h.defaults
	}
	for _, stream := range streams {
		if _, ok := h.allowed[stream]; !ok {
			response.Error(c, errors.NewNotFound("realtime stream %q not found", stream))
			return
		}
	}

	h.hub.Serve(userID, streams, h.allowed, c.Writer, c.Request)
}

// authenticate reads the access token. Browsers cannot set headers on a WebSocket
// handshake, so the query string is checked before the Authorization header.
func (h *RealtimeHandler) authenticate(c *gin.Context) (string, bool) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		return "", false
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		return "", false
	}
	userID := strings.TrimSpace(claims.EffectiveUserID())
	return userID, userID != ""
}

// gatherStreams merges the :stream path segment with the stream and streams query values.
func gatherStreams(c *gin.Context) []string {
	values := append([]string{c.Param("stream")}, c.QueryArray("stream")...)
	return realtime.ParseStreams(append(values, c.Query("streams"))...)
}
