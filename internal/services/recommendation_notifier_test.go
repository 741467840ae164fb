package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/longevity/internal/database/testutil"
	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/internal/recommendations"
)

func TestRecommendationNotifierRecordsOutcomes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	hub := &recordingBroadcaster{}
	notifications, err := NewNotificationService(db, hub)
	require.NoError(t, err)
	notifier, err := NewRecommendationNotifier(notifications)
	require.NoError(t, err)

	ctx := context.Background()
	key := recommendations.Key{UserID: "u1", Kind: recommendations.KindDashboard}
	notifier.Succeeded(ctx, key, 4)
	notifier.Failed(ctx, key, fmt.Errorf("%w: quota exceeded", recommendations.ErrGenerationFailed))
	notifier.Failed(ctx, key, fmt.Errorf("%w: disk full", recommendations.ErrPersistFailed))

	items, err := notifications.ListForUser(ctx, ListNotificationsInput{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	byType := map[string]int{}
	for _, item := range items {
		byType[item.Type]++
		require.Equal(t, "dashboard", item.Metadata["kind"])
		require.Equal(t, "/recommendations/dashboard", item.ActionURL)
		switch item.Type {
		case NotificationRecommendationsGenerated:
			require.Equal(t, "success", item.Severity)
			require.Contains(t, item.Message, "4")
		case NotificationRecommendationsFailed:
			require.Equal(t, "error", item.Severity)
			require.NotEmpty(t, item.Metadata["error"])
		}
	}
	require.Equal(t, 1, byType[NotificationRecommendationsGenerated])
	require.Equal(t, 2, byType[NotificationRecommendationsFailed])
	require.Len(t, hub.events(realtime.StreamNotifications), 3)
}

type failingCreator struct{}

func (failingCreator) Create(context.Context, CreateNotificationInput) (*NotificationDTO, error) {
	return nil, errors.New("db down")
}

func TestRecommendationNotifierSwallowsErrors(t *testing.T) {
	notifier := &RecommendationNotifier{notifications: failingCreator{}, log: zap.NewNop()}
	key := recommendations.Key{UserID: "u1", Kind: recommendations.KindGoals}

	require.NotPanics(t, func() {
		notifier.Succeeded(context.Background(), key, 1)
		notifier.Failed(context.Background(), key, errors.New("boom"))
	})

	_, err := NewRecommendationNotifier(nil)
	require.Error(t, err)
}
