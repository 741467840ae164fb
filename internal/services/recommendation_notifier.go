package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/pkg/logger"
)

// Notification types raised for recommendation runs.
const (
	NotificationRecommendationsGenerated = "recommendations.generated"
	NotificationRecommendationsFailed    = "recommendations.failed"
)

type notificationCreator interface {
	Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error)
}

// RecommendationNotifier turns controller outcomes into in-app notifications.
type RecommendationNotifier struct {
	notifications notificationCreator
	log           *zap.Logger
}

// NewRecommendationNotifier constructs a RecommendationNotifier.
func NewRecommendationNotifier(notifications *NotificationService) (*RecommendationNotifier, error) {
	if notifications == nil {
		return nil, errors.New("recommendation notifier: notification service is required")
	}
	return &RecommendationNotifier{
		notifications: notifications,
		log:           logger.WithModule("recommendations.notifier"),
	}, nil
}

// Succeeded implements recommendations.Notifier.
func (n *RecommendationNotifier) Succeeded(ctx context.Context, key recommendations.Key, count int) {
	n.create(ctx, key, CreateNotificationInput{
		UserID:    key.UserID,
		Type:      NotificationRecommendationsGenerated,
		Title:     "Рекомендации обновлены",
		Message:   fmt.Sprintf("Сгенерировано рекомендаций: %d", count),
		Severity:  "success",
		ActionURL: actionURL(key.Kind),
		Metadata: map[string]any{
			"kind":  string(key.Kind),
			"count": count,
		},
	})
}

// Failed implements recommendations.Notifier.
func (n *RecommendationNotifier) Failed(ctx context.Context, key recommendations.Key, err error) {
	message := "Не удалось сгенерировать рекомендации. Попробуйте позже."
	if errors.Is(err, recommendations.ErrPersistFailed) {
		message = "Рекомендации получены, но не сохранены. Они будут пересчитаны при следующем открытии."
	}

	metadata := map[string]any{"kind": string(key.Kind)}
	if err != nil {
		metadata["error"] = err.Error()
	}

	n.create(ctx, key, CreateNotificationInput{
		UserID:    key.UserID,
		Type:      NotificationRecommendationsFailed,
		Title:     "Не удалось обновить рекомендации",
		Message:   message,
		Severity:  "error",
		ActionURL: actionURL(key.Kind),
		Metadata:  metadata,
	})
}

func (n *RecommendationNotifier) create(ctx context.Context, key recommendations.Key, input CreateNotificationInput) {
	if _, err := n.notifications.Create(ctx, input); err != nil {
		n.log.Warn("failed to record recommendation notification",
			zap.String("user_id", key.UserID),
			zap.String("kind", string(key.Kind)),
			zap.String("type", input.Type),
			zap.Error(err),
		)
	}
}

func actionURL(kind recommendations.Kind) string {
	return "/recommendations/" + string(kind)
}
