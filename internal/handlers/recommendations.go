package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/internal/services"
	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/logger"
	"github.com/charlesng35/longevity/pkg/response"
)

var (
	errUnknownKind = errors.New("UNKNOWN_RECOMMENDATIONS_KIND", "Unknown recommendations kind", http.StatusBadRequest)
	errNoSource    = errors.New("RECOMMENDATIONS_NO_SOURCE", "No source data to regenerate from", http.StatusConflict)
)

// RecommendationHandler exposes the recommendation cache over HTTP.
type RecommendationHandler struct {
	service *services.RecommendationService
	log     *zap.Logger
}

// NewRecommendationHandler constructs a RecommendationHandler.
func NewRecommendationHandler(service *services.RecommendationService) (*RecommendationHandler, error) {
	if service == nil {
		return nil, errors.New("CONFIGURATION_ERROR", "recommendation service is required", http.StatusInternalServerError)
	}
	return &RecommendationHandler{
		service: service,
		log:     logger.WithModule("recommendations.http"),
	}, nil
}

type reconcileRequest struct {
	SourceData map[string]any `json:"source_data" validate:"required,maxkeys=256"`
}

type regenerateRequest struct {
	SourceData map[string]any `json:"source_data" validate:"omitempty,maxkeys=256"`
}

// RunResponse is returned by reconcile and regenerate.
type RunResponse struct {
	Outcome   recommendations.Outcome  `json:"outcome"`
	Persisted bool                     `json:"persisted"`
	Snapshot  recommendations.Snapshot `json:"snapshot"`
}

// Get returns the current snapshot for the requested kind.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID, kind, ok := h.target(c)
	if !ok {
		return
	}

	snap, err := h.service.Get(requestContext(c), userID, kind)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// Reconcile compares source_data to the stored fingerprint and regenerates when stale.
func (h *RecommendationHandler) Reconcile(c *gin.Context) {
	userID, kind, ok := h.target(c)
	if !ok {
		return
	}

	var payload reconcileRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	result, snap, err := h.service.Reconcile(requestContext(c), userID, kind, payload.SourceData)
	h.respond(c, result, snap, err)
}

// Regenerate forces a new generation, optionally with new source_data.
func (h *RecommendationHandler) Regenerate(c *gin.Context) {
	userID, kind, ok := h.target(c)
	if !ok {
		return
	}

	var payload regenerateRequest
	if c.Request.ContentLength != 0 {
		if !bindAndValidate(c, &payload) {
			return
		}
	}

	var source any
	if payload.SourceData != nil {
		source = payload.SourceData
	}
	result, snap, err := h.service.Regenerate(requestContext(c), userID, kind, source)
	h.respond(c, result, snap, err)
}

func (h *RecommendationHandler) target(c *gin.Context) (string, recommendations.Kind, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return "", "", false
	}

	kind, err := recommendations.ParseKind(strings.TrimSpace(c.Param("kind")))
	if err != nil {
		response.Error(c, errUnknownKind.WithInternal(err))
		return "", "", false
	}
	return userID, kind, true
}

func (h *RecommendationHandler) respond(c *gin.Context, result recommendations.Result, snap recommendations.Snapshot, err error) {
	if err != nil {
		h.fail(c, err, snap)
		return
	}
	response.Success(c, http.StatusOK, RunResponse{
		Outcome:   result.Outcome,
		Persisted: result.Persisted,
		Snapshot:  snap,
	})
}

// fail keeps the last known snapshot in the payload so clients can keep rendering it.
func (h *RecommendationHandler) fail(c *gin.Context, err error, data any) {
	switch {
	case stdErrors.Is(err, recommendations.ErrGenerationFailed), stdErrors.Is(err, recommendations.ErrMalformedResult):
		h.log.Warn("generation failed", zap.String("user_id", c.GetString(middleware.CtxUserIDKey)), zap.Error(err))
		response.ErrorWithData(c, errors.ErrGenerationFailed.WithInternal(err), data)
	case stdErrors.Is(err, recommendations.ErrUnknownKind):
		response.Error(c, errUnknownKind.WithInternal(err))
	case stdErrors.Is(err, recommendations.ErrNoSource):
		response.ErrorWithData(c, errNoSource, data)
	case stdErrors.Is(err, recommendations.ErrClosed):
		response.ErrorWithData(c, errors.ErrServiceUnavailable.WithInternal(err), data)
	default:
		h.log.Error("recommendations request failed", zap.Error(err))
		response.ErrorWithData(c, err, data)
	}
}
