package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/response"
	appValidator "github.com/charlesng35/longevity/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate tags. On failure
// a 400 is written, listing each failing field under details.fields, and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload").WithInternal(err))
		return false
	}

	err := appValidator.ValidateStruct(dest)
	if err == nil {
		return true
	}

	failures, ok := err.(appValidator.ValidationErrors)
	if !ok || len(failures) == 0 {
		response.Error(c, appErrors.NewBadRequest("invalid request payload").WithInternal(err))
		return false
	}

	fields := make(map[string]any, len(failures))
	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		msg := describeFailure(failure)
		fields[failure.Field] = msg
		messages = append(messages, msg)
	}
	response.Error(c, appErrors.NewBadRequest("%s", strings.Join(messages, "; ")).
		WithDetails(map[string]any{"fields": fields}))
	return false
}

func describeFailure(failure appValidator.ValidationError) string {
	field := failure.Field
	if field == "" {
		field = "field"
	}
	switch failure.Tag {
	case "required":
		return field + " is required"
	case "maxkeys":
		return fmt.Sprintf("%s must have at most %s entries", field, failure.Param)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, failure.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, failure.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, failure.Param)
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed %s", field, failure.Tag)
}

// intQuery parses a query value and clamps it to [lo, hi]. Missing or malformed values yield fallback.
func intQuery(c *gin.Context, key string, fallback, lo, hi int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
