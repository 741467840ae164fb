package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/response"
)

// requestContext is the request context, or Background for contexts built in tests without one.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// currentUser returns the authenticated subject. It writes a 401 and reports
// false when the auth middleware did not set one.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
