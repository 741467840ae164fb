package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db, time.Second))
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "longevity.db")

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	require.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(context.Background(), db))

	migrator := db.Migrator()
	for _, table := range []interface{}{
		&models.RecommendationCache{},
		&models.Notification{},
		&models.CacheEntry{},
	} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
	require.True(t, migrator.HasIndex(&models.RecommendationCache{}, "idx_recommendations_cache_user_kind"))
}

func TestRecommendationCacheUniquePerUserAndKind(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	first := models.RecommendationCache{UserID: "u1", RecommendationsType: "analytics", RecommendationsData: []byte(`[]`), SourceHash: "h1"}
	require.NoError(t, db.Create(&first).Error)

	dup := models.RecommendationCache{UserID: "u1", RecommendationsType: "analytics", RecommendationsData: []byte(`[]`), SourceHash: "h2"}
	err := db.Create(&dup).Error
	require.Error(t, err)
	require.True(t, IsUniqueConstraintError(err))

	other := models.RecommendationCache{UserID: "u1", RecommendationsType: "dashboard", RecommendationsData: []byte(`[]`), SourceHash: "h1"}
	require.NoError(t, db.Create(&other).Error)
}

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, IsUniqueConstraintError(nil))
	require.True(t, IsUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueConstraintError(fmt.Errorf("save: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, IsUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	require.True(t, IsUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.True(t, IsUniqueConstraintError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	require.False(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: but only as text")))
}

func TestPingNilHandle(t *testing.T) {
	require.Error(t, Ping(context.Background(), nil, time.Second))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
