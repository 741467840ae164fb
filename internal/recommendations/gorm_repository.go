package recommendations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/longevity/internal/database"
	"github.com/charlesng35/longevity/internal/models"
)

// GormRepository persists rows in the recommendations_cache table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a GormRepository.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if db == nil {
		return nil, errors.New("recommendations: db is required")
	}
	return &GormRepository{db: db}, nil
}

// Load implements Repository.
func (r *GormRepository) Load(ctx context.Context, key Key) (*Entry, error) {
	var row models.RecommendationCache
	err := r.db.WithContext(ensureContext(ctx)).
		Where("user_id = ? AND recommendations_type = ?", key.UserID, string(key.Kind)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recommendations: %w", err)
	}

	var items []Item
	if len(row.RecommendationsData) > 0 {
		if err := json.Unmarshal(row.RecommendationsData, &items); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	if items == nil {
		items = []Item{}
	}

	return &Entry{
		UserID:     row.UserID,
		Kind:       Kind(row.RecommendationsType),
		Items:      items,
		SourceHash: row.SourceHash,
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}

// Save implements Repository with a single upsert keyed on (user_id, recommendations_type).
func (r *GormRepository) Save(ctx context.Context, key Key, items []Item, hash string, at time.Time) error {
	if items == nil {
		items = []Item{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	row := models.RecommendationCache{
		UserID:              key.UserID,
		RecommendationsType: string(key.Kind),
		RecommendationsData: datatypes.JSON(payload),
		SourceHash:          hash,
		CreatedAt:           at,
		UpdatedAt:           at,
	}

	err = r.db.WithContext(ensureContext(ctx)).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "recommendations_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"recommendations_data": row.RecommendationsData,
				"source_hash":          hash,
				"updated_at":           at,
			}),
		}).
		Create(&row).Error
	if database.IsUniqueConstraintError(err) {
		// the conflict target did not match the violated index; the row exists, so update it in place
		err = r.db.WithContext(ensureContext(ctx)).
			Model(&models.RecommendationCache{}).
			Where("user_id = ? AND recommendations_type = ?", key.UserID, string(key.Kind)).
			Updates(map[string]interface{}{
				"recommendations_data": row.RecommendationsData,
				"source_hash":          hash,
				"updated_at":           at,
			}).Error
	}
	if err != nil {
		return fmt.Errorf("save recommendations: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
