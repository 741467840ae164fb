package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/logger"
	"github.com/charlesng35/longevity/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.WithModule("http").Error("handler panicked",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("request_id", c.GetString(response.RequestIDKey)),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
			_ = c.Error(fmt.Errorf("panic: %v", recovered))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the JSON envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound("route %s %s not found", c.Request.Method, c.Request.URL.Path))
}
