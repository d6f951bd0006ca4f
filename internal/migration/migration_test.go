package migration

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMigrateCreatesTablesFromModels(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"users", "charities", "wishes", "payments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("payments", "idx_payments_reference"))

	// a second run is a no-op
	require.NoError(t, Migrate(db))
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))

	admin := config.AdminConfig{Username: "admin", Email: "Admin@Example.com", Password: "super-secret"}
	created, err := seed.EnsureAdmin(db, admin)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = seed.EnsureAdmin(db, admin)
	require.NoError(t, err)
	assert.False(t, created)

	var emails []string
	require.NoError(t, db.Table("users").Pluck("email", &emails).Error)
	assert.Equal(t, []string{"admin@example.com"}, emails)

	created, err = seed.EnsureAdmin(db, config.AdminConfig{})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSeedAdminRejectsShortPassword(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))

	_, err := seed.EnsureAdmin(db, config.AdminConfig{Username: "admin", Password: "short"})
	require.Error(t, err)
}
