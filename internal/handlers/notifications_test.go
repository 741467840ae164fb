package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/internal/database/testutil"
	"github.com/charlesng35/longevity/internal/middleware"
	"github.com/charlesng35/longevity/internal/services"
	"github.com/charlesng35/longevity/pkg/response"
)

func TestNotificationHandlerListAndMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	handler, err := NewNotificationHandler(service)
	require.NoError(t, err)

	const userID = "user-handler"
	_, err = service.Create(testContext(), services.CreateNotificationInput{
		UserID:   userID,
		Type:     "recommendations.generated",
		Title:    "Рекомендации обновлены",
		Message:  "Сгенерировано рекомендаций: 2",
		Severity: "success",
	})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	c.Set(middleware.CtxUserIDKey, userID)
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Equal(t, &response.Meta{Limit: 25, Offset: 0, Count: 1}, payload.Meta)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	var notificationsDTO []services.NotificationDTO
	require.NoError(t, json.Unmarshal(dataBytes, &notificationsDTO))
	require.Len(t, notificationsDTO, 1)

	notificationID := notificationsDTO[0].ID

	readRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(readRecorder)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/notifications/"+notificationID+"/read", nil)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: notificationID}}
	c2.Set(middleware.CtxUserIDKey, userID)
	handler.MarkRead(c2)

	require.Equal(t, http.StatusOK, readRecorder.Code)

	var readPayload response.Response
	require.NoError(t, json.Unmarshal(readRecorder.Body.Bytes(), &readPayload))
	require.True(t, readPayload.Success)

	readData, err := json.Marshal(readPayload.Data)
	require.NoError(t, err)

	var dto services.NotificationDTO
	require.NoError(t, json.Unmarshal(readData, &dto))
	require.True(t, dto.IsRead)

	countRecorder := httptest.NewRecorder()
	c3, _ := gin.CreateTestContext(countRecorder)
	c3.Request = httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil)
	c3.Set(middleware.CtxUserIDKey, userID)
	handler.UnreadCount(c3)

	require.Equal(t, http.StatusOK, countRecorder.Code)
	require.JSONEq(t, `{"success":true,"data":{"unread":0}}`, countRecorder.Body.String())
}

func TestNotificationHandlerRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	handler, err := NewNotificationHandler(service)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/notifications/read-all", nil)
	handler.MarkAllRead(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	_, err = NewNotificationHandler(nil)
	require.Error(t, err)
}

func testContext() context.Context {
	return context.Background()
}
