package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/models"
	"github.com/charlesng35/longevity/internal/realtime"
	apperrors "github.com/charlesng35/longevity/pkg/errors"
)

// Realtime events published on the notifications stream.
const (
	EventNotificationCreated = "notification.created"
	EventNotificationRead    = "notification.read"
	EventNotificationUnread  = "notification.unread"
	EventNotificationDeleted = "notification.deleted"
	EventNotificationReadAll = "notification.read_all"
)

const (
	defaultNotificationPage = 25
	maxNotificationPage     = 100
)

var severities = map[string]struct{}{
	"info":    {},
	"success": {},
	"warning": {},
	"error":   {},
}

// NotificationDTO is the API shape of a notification.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput describes a notification to record. Severity falls back to info.
type CreateNotificationInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	Severity  string
	ActionURL string
	Metadata  map[string]any
}

// ListNotificationsInput pages through the notifications of a user, newest first.
type ListNotificationsInput struct {
	UserID     string
	Limit      int
	Offset     int
	UnreadOnly bool
}

// NotificationEvent is the realtime payload. Unread lets clients refresh their badge without a request.
type NotificationEvent struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
	Unread         int64            `json:"unread"`
}

// Broadcaster delivers realtime messages to the connections of a user.
type Broadcaster interface {
	BroadcastToUser(stream, userID string, message realtime.Message)
}

// NotificationService stores the in-app inbox shown next to recommendations.
type NotificationService struct {
	db  *gorm.DB
	hub Broadcaster
	now func() time.Time
}

// NewNotificationService constructs a NotificationService. hub may be nil.
func NewNotificationService(db *gorm.DB, hub Broadcaster) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, now: time.Now}, nil
}

// ListForUser returns one page of notifications.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	limit = min(limit, maxNotificationPage)

	query := s.db.WithContext(ensureContext(ctx)).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC").Order("id").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, len(rows))
	for i := range rows {
		items[i] = toNotificationDTO(&rows[i])
	}
	return items, nil
}

// Create records a notification and pushes it to the user's open sockets.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	row := models.Notification{
		UserID:    strings.TrimSpace(input.UserID),
		Type:      strings.TrimSpace(input.Type),
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Severity:  normalizeSeverity(input.Severity),
		ActionURL: strings.TrimSpace(input.ActionURL),
	}
	switch {
	case row.UserID == "":
		return nil, errors.New("notification service: user id is required")
	case row.Type == "":
		return nil, errors.New("notification service: type is required")
	}

	if len(input.Metadata) > 0 {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := toNotificationDTO(&row)
	s.publish(ctx, row.UserID, EventNotificationCreated, NotificationEvent{Notification: &dto})
	return &dto, nil
}

// MarkRead flags a notification of userID as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	return s.setRead(ctx, userID, notificationID, true)
}

// MarkUnread clears the read flag of a notification of userID.
func (s *NotificationService) MarkUnread(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	return s.setRead(ctx, userID, notificationID, false)
}

func (s *NotificationService) setRead(ctx context.Context, userID, notificationID string, read bool) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var dto NotificationDTO
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Notification
		if err := tx.Where("id = ? AND user_id = ?", notificationID, userID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("notification service: load notification: %w", err)
		}
		if row.SetRead(read, s.now()) {
			if err := tx.Model(&row).Select("is_read", "read_at").Updates(&row).Error; err != nil {
				return fmt.Errorf("notification service: update read flag: %w", err)
			}
		}
		dto = toNotificationDTO(&row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := EventNotificationUnread
	if read {
		event = EventNotificationRead
	}
	s.publish(ctx, userID, event, NotificationEvent{Notification: &dto, NotificationID: dto.ID})
	return &dto, nil
}

// Delete removes a notification owned by userID.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.publish(ctx, userID, EventNotificationDeleted, NotificationEvent{NotificationID: notificationID})
	return nil
}

// MarkAllRead flags every unread notification of userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now().UTC()}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.publish(ctx, userID, EventNotificationReadAll, NotificationEvent{})
	return nil
}

// UnreadCount returns the number of unread notifications of userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// PurgeOlderThan deletes notifications created before cutoff and reports how many were removed.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("created_at < ?", cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) publish(ctx context.Context, userID, event string, payload NotificationEvent) {
	if s.hub == nil {
		return
	}
	// the badge count is advisory; a failed count still delivers the event
	if unread, err := s.UnreadCount(ctx, userID); err == nil {
		payload.Unread = unread
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
		Event: event,
		Data:  payload,
	})
}

func normalizeSeverity(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if _, ok := severities[value]; ok {
		return value
	}
	return "info"
}

func toNotificationDTO(row *models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Severity:  normalizeSeverity(row.Severity),
		ActionURL: row.ActionURL,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
	}
	if len(row.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(row.Metadata, &meta); err == nil {
			dto.Metadata = meta
		}
	}
	return dto
}
