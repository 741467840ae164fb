package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one inbox entry. Recommendation runs create them; the client
// shows them as toasts and in the notification list.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(64);not null;index:idx_notifications_user_unread,priority:1" json:"user_id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Severity  string         `gorm:"type:varchar(16);not null;default:'info'" json:"severity"`
	ActionURL string         `gorm:"type:text" json:"action_url,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`

	IsRead bool       `gorm:"not null;default:false;index:idx_notifications_user_unread,priority:2" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// SetRead flips the read flag and reports whether anything changed. ReadAt is
// stamped with at when marking read and cleared otherwise.
func (n *Notification) SetRead(read bool, at time.Time) bool {
	if n.IsRead == read {
		return false
	}
	n.IsRead = read
	n.ReadAt = nil
	if read {
		stamp := at.UTC()
		n.ReadAt = &stamp
	}
	return true
}
