package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck probes a single dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health returns a readiness handler that runs every check with a shared timeout.
// Any failing check turns the response into a 503.
func Health(timeout time.Duration, checks ...HealthCheck) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), timeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		healthy := true
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			if err := check.Check(ctx); err != nil {
				healthy = false
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}

		status := http.StatusOK
		label := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			label = "degraded"
		}
		c.JSON(status, gin.H{
			"success":    healthy,
			"status":     label,
			"checks":     results,
			"checked_at": time.Now().UTC(),
		})
	}
}
