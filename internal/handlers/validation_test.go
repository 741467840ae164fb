package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func validationContext(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func TestBindAndValidateReportsFields(t *testing.T) {
	keys := make([]string, 0, 257)
	for i := 0; i < 257; i++ {
		keys = append(keys, fmt.Sprintf(`"k%d": %d`, i, i))
	}
	c, rec := validationContext(t, `{"source_data": {`+strings.Join(keys, ",")+`}}`)

	var payload reconcileRequest
	require.False(t, bindAndValidate(c, &payload))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Message string                    `json:"message"`
			Details map[string]map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "source_data must have at most 256 entries", body.Error.Message)
	require.Contains(t, body.Error.Details["fields"], "source_data")
}

func TestBindAndValidateRejectsMalformedJSON(t *testing.T) {
	c, rec := validationContext(t, `{"source_data":`)

	var payload reconcileRequest
	require.False(t, bindAndValidate(c, &payload))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid JSON payload")
}

func TestBindAndValidateAcceptsPayload(t *testing.T) {
	c, _ := validationContext(t, `{"source_data": {"steps": 9000}}`)

	var payload reconcileRequest
	require.True(t, bindAndValidate(c, &payload))
	require.EqualValues(t, 9000, payload.SourceData["steps"])
}

func TestIntQueryClamps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=5000&offset=-3&bad=x", nil)

	require.Equal(t, 200, intQuery(c, "limit", 25, 1, 200))
	require.Equal(t, 0, intQuery(c, "offset", 10, 0, 100))
	require.Equal(t, 7, intQuery(c, "bad", 7, 0, 100))
	require.Equal(t, 25, intQuery(c, "missing", 25, 1, 200))
}
