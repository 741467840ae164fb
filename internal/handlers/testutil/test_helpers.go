package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/api"
	"github.com/charlesng35/longevity/internal/app"
	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/internal/cache"
	sharedtestutil "github.com/charlesng35/longevity/internal/database/testutil"
	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/internal/services"
	"github.com/charlesng35/longevity/pkg/response"
)

const testJWTSecret = "test-suite-super-secret-key-32-bytes!!"

// Generators is a scriptable GeneratorFactory that records every call.
type Generators struct {
	mu    sync.Mutex
	err   error
	calls int
}

// Fail makes subsequent generations return err; nil restores success.
func (g *Generators) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Calls reports how many generations ran.
func (g *Generators) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Factory satisfies recommendations.GeneratorFactory.
func (g *Generators) Factory(kind recommendations.Kind, _ any) recommendations.Generator {
	return recommendations.GeneratorFunc(func(context.Context) ([]recommendations.Item, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.calls++
		if g.err != nil {
			return nil, g.err
		}
		return []recommendations.Item{
			{"title": "Ложитесь спать до 23:00", "priority": "high", "kind": string(kind)},
			{"title": "Добавьте 2000 шагов в день", "priority": "medium", "kind": string(kind)},
		}, nil
	})
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T               *testing.T
	DB              *gorm.DB
	Router          *gin.Engine
	JWT             *iauth.JWTService
	Generators      *Generators
	Recommendations *services.RecommendationService
	Hub             *realtime.Hub
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         testJWTSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
		RateLimit:  app.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}

	store := cache.NewDatabaseStore(db)
	gormRepo, err := recommendations.NewGormRepository(db)
	require.NoError(t, err)
	repo, err := recommendations.NewTieredRepository(gormRepo, store, time.Hour)
	require.NoError(t, err)

	hub := realtime.NewHub()
	notificationSvc, err := services.NewNotificationService(db, hub)
	require.NoError(t, err)

	notifier, err := services.NewRecommendationNotifier(notificationSvc)
	require.NoError(t, err)

	gens := &Generators{}
	recSvc, err := services.NewRecommendationService(services.RecommendationServiceConfig{
		Repository:  repo,
		Generators:  gens.Factory,
		Notifier:    notifier,
		Broadcaster: hub,
	})
	require.NoError(t, err)
	t.Cleanup(recSvc.Close)

	router, err := api.NewRouter(api.Dependencies{
		Config:          cfg,
		DB:              db,
		Cache:           store,
		JWT:             jwtSvc,
		Recommendations: recSvc,
		Notifications:   notificationSvc,
		Hub:             hub,
		RateStore:       middleware.NewStoreRateStore(store),
	})
	require.NoError(t, err)

	return &Env{
		T:               t,
		DB:              db,
		Router:          router,
		JWT:             jwtSvc,
		Generators:      gens,
		Recommendations: recSvc,
		Hub:             hub,
	}
}

// Token issues an access token for userID.
func (e *Env) Token(userID string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: "authenticated"})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
