package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/internal/api"
	"github.com/charlesng35/longevity/internal/handlers/testutil"
	"github.com/charlesng35/longevity/internal/recommendations"
)

type runPayload struct {
	Outcome   recommendations.Outcome  `json:"outcome"`
	Persisted bool                     `json:"persisted"`
	Snapshot  recommendations.Snapshot `json:"snapshot"`
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.Error(t, err)
}

func TestHealthIsPublic(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)

		var body struct {
			Success bool              `json:"success"`
			Status  string            `json:"status"`
			Checks  map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.True(t, body.Success)
		require.Equal(t, "ok", body.Status)
		require.Equal(t, "ok", body.Checks["database"])
		require.Equal(t, "ok", body.Checks["cache"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodGet, "/health", nil, "")
	w := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "longevity_api_latency_seconds")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/recommendations/analytics", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.Request(http.MethodGet, "/api/notifications", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestReconcileFlowRaisesNotification(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("user-42")
	body := map[string]any{"source_data": map[string]any{"steps": 8200, "sleep_hours": 6.5}}

	w := env.Request(http.MethodPost, "/api/recommendations/analytics/reconcile", body, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var run runPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &run)
	require.Equal(t, recommendations.OutcomeGenerated, run.Outcome)
	require.True(t, run.Persisted)
	require.Equal(t, recommendations.StateReady, run.Snapshot.State)
	require.Len(t, run.Snapshot.Items, 2)
	require.Equal(t, 1, env.Generators.Calls())

	// same source is served from the persisted hash
	w = env.Request(http.MethodPost, "/api/recommendations/analytics/reconcile", body, token)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &run)
	require.Equal(t, recommendations.OutcomeCached, run.Outcome)
	require.Equal(t, 1, env.Generators.Calls())

	w = env.Request(http.MethodGet, "/api/notifications/unread-count", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var unread struct {
		Unread int64 `json:"unread"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &unread)
	require.EqualValues(t, 1, unread.Unread)

	// other users see nothing
	w = env.Request(http.MethodGet, "/api/recommendations/analytics", nil, env.Token("user-7"))
	require.Equal(t, http.StatusOK, w.Code)
	var snap recommendations.Snapshot
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &snap)
	require.Empty(t, snap.Items)
}

func TestRegenerateFailureKeepsPreviousItems(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("user-9")
	body := map[string]any{"source_data": map[string]any{"calories": 2100}}

	w := env.Request(http.MethodPost, "/api/recommendations/nutrition/reconcile", body, token)
	require.Equal(t, http.StatusOK, w.Code)

	env.Generators.Fail(errors.New("upstream timeout"))
	w = env.Request(http.MethodPost, "/api/recommendations/nutrition/regenerate", nil, token)
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "RECOMMENDATIONS_GENERATION_FAILED", resp.Error.Code)

	w = env.Request(http.MethodGet, "/api/recommendations/nutrition", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var snap recommendations.Snapshot
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &snap)
	require.Equal(t, recommendations.StateError, snap.State)
	require.Len(t, snap.Items, 2)
}
