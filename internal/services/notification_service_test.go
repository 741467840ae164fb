package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/internal/database/testutil"
	"github.com/charlesng35/longevity/internal/models"
	"github.com/charlesng35/longevity/internal/realtime"
	apperrors "github.com/charlesng35/longevity/pkg/errors"
)

type sentMessage struct {
	stream  string
	userID  string
	message realtime.Message
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (b *recordingBroadcaster) BroadcastToUser(stream, userID string, message realtime.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, sentMessage{stream: stream, userID: userID, message: message})
}

func (b *recordingBroadcaster) last() realtime.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[len(b.messages)-1].message
}

func (b *recordingBroadcaster) events(stream string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.messages {
		if m.stream == stream {
			out = append(out, m.message.Event)
		}
	}
	return out
}

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	hub := &recordingBroadcaster{}
	svc, err := NewNotificationService(db, hub)
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   "user-123",
		Type:     "recommendations.generated",
		Title:    "Рекомендации обновлены",
		Message:  "Сгенерировано рекомендаций: 3",
		Severity: "success",
		Metadata: map[string]any{"kind": "analytics"},
	})
	require.NoError(t, err)
	require.Equal(t, "recommendations.generated", dto.Type)
	require.Equal(t, "analytics", dto.Metadata["kind"])

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "user-123", Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.ID, items[0].ID)
	require.False(t, items[0].IsRead)

	require.Equal(t, []string{"notification.created"}, hub.events(realtime.StreamNotifications))
}

func TestNotificationServiceValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateNotificationInput{Type: "x"})
	require.Error(t, err)
	_, err = svc.Create(context.Background(), CreateNotificationInput{UserID: "u"})
	require.Error(t, err)
	_, err = svc.ListForUser(context.Background(), ListNotificationsInput{})
	require.Error(t, err)

	_, err = NewNotificationService(nil, nil)
	require.Error(t, err)
}

func TestNotificationServiceMarkReadAndUnread(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:  "user-1",
		Type:    "recommendations.failed",
		Title:   "Не удалось обновить рекомендации",
		Message: "Попробуйте позже",
	})
	require.NoError(t, err)
	require.Equal(t, "info", dto.Severity)

	count, err := svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	read, err := svc.MarkRead(ctx, "user-1", dto.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	count, err = svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, count)

	unread, err := svc.MarkUnread(ctx, "user-1", dto.ID)
	require.NoError(t, err)
	require.False(t, unread.IsRead)
	require.Nil(t, unread.ReadAt)

	_, err = svc.MarkRead(ctx, "someone-else", dto.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceDeleteAndMarkAll(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateNotificationInput{
		UserID: "user-xyz",
		Type:   "recommendations.generated",
		Title:  "Рекомендации обновлены",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{
		UserID: "user-xyz",
		Type:   "recommendations.failed",
		Title:  "Не удалось обновить рекомендации",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, "user-xyz"))

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "user-xyz"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.True(t, item.IsRead)
	}

	require.NoError(t, svc.Delete(ctx, "user-xyz", first.ID))
	require.ErrorIs(t, svc.Delete(ctx, "user-xyz", first.ID), apperrors.ErrNotFound)

	items, err = svc.ListForUser(ctx, ListNotificationsInput{UserID: "user-xyz"})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestNotificationServicePurgeOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	old, err := svc.Create(ctx, CreateNotificationInput{UserID: "u", Type: "recommendations.generated", Title: "old"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: "u", Type: "recommendations.generated", Title: "new"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-60*24*time.Hour)).Error)

	removed, err := svc.PurgeOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "new", items[0].Title)
}

func TestNotificationServiceUnreadFilterAndBadge(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	hub := &recordingBroadcaster{}
	svc, err := NewNotificationService(db, hub)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateNotificationInput{UserID: "u", Type: "recommendations.generated", Title: "a", Severity: "LOUD"})
	require.NoError(t, err)
	require.Equal(t, "info", first.Severity)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: "u", Type: "recommendations.failed", Title: "b", Severity: "Error"})
	require.NoError(t, err)

	event := hub.last().Data.(NotificationEvent)
	require.EqualValues(t, 2, event.Unread)
	require.Equal(t, "error", event.Notification.Severity)

	_, err = svc.MarkRead(ctx, "u", first.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, hub.last().Data.(NotificationEvent).Unread)

	unread, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "u", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "b", unread[0].Title)

	require.Equal(t, []string{
		EventNotificationCreated,
		EventNotificationCreated,
		EventNotificationRead,
	}, hub.events(realtime.StreamNotifications))
}
