package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/longevity/internal/services"
	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/response"
)

const (
	defaultNotificationPage = 25
	maxNotificationPage     = 200
)

// NotificationHandler serves the notification inbox of the authenticated user.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("CONFIGURATION_ERROR", "notification service is required", http.StatusInternalServerError)
	}
	return &NotificationHandler{service: service}, nil
}

// List returns one page of the inbox, newest first. ?unread=true hides read entries.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	input := services.ListNotificationsInput{
		UserID:     userID,
		Limit:      intQuery(c, "limit", defaultNotificationPage, 1, maxNotificationPage),
		Offset:     intQuery(c, "offset", 0, 0, 1<<20),
		UnreadOnly: strings.EqualFold(c.Query("unread"), "true"),
	}
	items, err := h.service.ListForUser(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  input.Limit,
		Offset: input.Offset,
		Count:  len(items),
	})
}

// UnreadCount feeds the inbox badge.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.toggle(c, h.service.MarkRead)
}

// MarkUnread clears the read flag of one notification.
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	h.toggle(c, h.service.MarkUnread)
}

type readToggle func(ctx context.Context, userID, notificationID string) (*services.NotificationDTO, error)

func (h *NotificationHandler) toggle(c *gin.Context, apply readToggle) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	dto, err := apply(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// MarkAllRead clears the badge.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
