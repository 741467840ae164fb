package recommendations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/internal/database/testutil"
	"github.com/charlesng35/longevity/internal/models"
)

func runRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	key := Key{UserID: "user-1", Kind: KindAnalytics}

	t.Run("miss", func(t *testing.T) {
		entry, err := repo.Load(ctx, Key{UserID: "nobody", Kind: KindGoals})
		require.NoError(t, err)
		require.Nil(t, entry)
	})

	t.Run("round trip", func(t *testing.T) {
		at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		items := []Item{
			{"title": "Больше сна", "priority": "high"},
			{"title": "Прогулки", "priority": "medium"},
		}
		require.NoError(t, repo.Save(ctx, key, items, "hash-1", at))

		entry, err := repo.Load(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, entry)
		require.Equal(t, items, entry.Items)
		require.Equal(t, "hash-1", entry.SourceHash)
		require.Equal(t, key.UserID, entry.UserID)
		require.Equal(t, key.Kind, entry.Kind)
		require.True(t, at.Equal(entry.UpdatedAt), "expected %s, got %s", at, entry.UpdatedAt)
	})

	t.Run("load is idempotent", func(t *testing.T) {
		first, err := repo.Load(ctx, key)
		require.NoError(t, err)
		second, err := repo.Load(ctx, key)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("save replaces payload and hash together", func(t *testing.T) {
		at := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
		items := []Item{{"title": "Меньше сахара"}}
		require.NoError(t, repo.Save(ctx, key, items, "hash-2", at))

		entry, err := repo.Load(ctx, key)
		require.NoError(t, err)
		require.Equal(t, items, entry.Items)
		require.Equal(t, "hash-2", entry.SourceHash)
		require.True(t, at.Equal(entry.UpdatedAt))
	})

	t.Run("kinds are separate rows", func(t *testing.T) {
		other := Key{UserID: key.UserID, Kind: KindDashboard}
		require.NoError(t, repo.Save(ctx, other, []Item{}, "hash-d", time.Now()))

		entry, err := repo.Load(ctx, other)
		require.NoError(t, err)
		require.Empty(t, entry.Items)
		require.Equal(t, "hash-d", entry.SourceHash)

		analytics, err := repo.Load(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "hash-2", analytics.SourceHash)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.Load(canceled, key)
		require.Error(t, err)
	})
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	runRepositoryContract(t, repo)
	require.Equal(t, 2, repo.Len())
}

func TestMemoryRepositoryCopiesItems(t *testing.T) {
	repo := NewMemoryRepository()
	key := Key{UserID: "u", Kind: KindGoals}
	items := []Item{{"title": "a"}}
	require.NoError(t, repo.Save(context.Background(), key, items, "h", time.Now()))
	items[0]["title"] = "mutated"

	entry, err := repo.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "a", entry.Items[0]["title"])
	entry.Items[0]["title"] = "changed"

	again, err := repo.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "a", again.Items[0]["title"])
}

func TestGormRepository(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	repo, err := NewGormRepository(db)
	require.NoError(t, err)

	runRepositoryContract(t, repo)

	var count int64
	require.NoError(t, db.Model(&models.RecommendationCache{}).
		Where("user_id = ? AND recommendations_type = ?", "user-1", "analytics").
		Count(&count).Error)
	require.EqualValues(t, 1, count, "upsert must keep a single row per user and kind")
}

func TestGormRepositoryCorruptPayload(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithFixtures(&models.RecommendationCache{
		UserID:              "u",
		RecommendationsType: "goals",
		RecommendationsData: []byte(`{"not":"a list"}`),
		SourceHash:          "h",
	}))
	repo, err := NewGormRepository(db)
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), Key{UserID: "u", Kind: KindGoals})
	require.Error(t, err)
}

func TestNewGormRepositoryRequiresDB(t *testing.T) {
	_, err := NewGormRepository(nil)
	require.Error(t, err)
}
