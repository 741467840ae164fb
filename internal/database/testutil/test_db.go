// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/longevity/internal/database"
)

// TestDBOption adjusts a database opened by MustOpenTestDB.
type TestDBOption func(*options)

type options struct {
	migrate  bool
	fixtures []any
}

// WithAutoMigrate creates the application schema.
func WithAutoMigrate() TestDBOption {
	return func(o *options) { o.migrate = true }
}

// WithFixtures inserts records after migration. It implies WithAutoMigrate.
func WithFixtures(records ...any) TestDBOption {
	return func(o *options) {
		o.migrate = true
		o.fixtures = append(o.fixtures, records...)
	}
}

// MustOpenTestDB returns a private shared-cache in-memory database. Each call
// gets a fresh name so parallel tests never observe each other's rows.
func MustOpenTestDB(t testing.TB, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if o.migrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	for _, record := range o.fixtures {
		require.NoError(t, db.Create(record).Error, "insert fixture %T", record)
	}
	return db
}
