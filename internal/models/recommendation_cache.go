package models

import (
	"time"

	"gorm.io/datatypes"
)

// RecommendationCache stores the last generated recommendation payload for a user and
// recommendation kind together with the fingerprint of the inputs that produced it.
// Exactly one row exists per (user_id, recommendations_type).
type RecommendationCache struct {
	ID                  uint           `gorm:"primaryKey" json:"-"`
	UserID              string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_recommendations_cache_user_kind,priority:1" json:"user_id"`
	RecommendationsType string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_recommendations_cache_user_kind,priority:2" json:"recommendations_type"`
	RecommendationsData datatypes.JSON `gorm:"not null" json:"recommendations_data"`
	SourceHash          string         `gorm:"type:varchar(64);not null" json:"source_hash"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`
}

// TableName pins the table name shared with the managed backend.
func (RecommendationCache) TableName() string {
	return "recommendations_cache"
}
