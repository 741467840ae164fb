package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/internal/models"
)

func TestAutoMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, db.Create(&models.RecommendationCache{
		UserID:              "u1",
		RecommendationsType: "goals",
		RecommendationsData: []byte(`[]`),
		SourceHash:          "empty-data",
	}).Error)

	require.NoError(t, AutoMigrate(db))

	var count int64
	require.NoError(t, db.Model(&models.RecommendationCache{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
