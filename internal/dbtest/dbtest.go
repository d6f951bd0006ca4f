// Package dbtest opens throwaway in-memory databases carrying the service
// schema, for repository and service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE charities (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE wishes (
		id BIGINT PRIMARY KEY,
		charity_id BIGINT NOT NULL REFERENCES charities(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit_price BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		target_amount BIGINT NOT NULL,
		current_amount BIGINT NOT NULL DEFAULT 0,
		fulfilled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id BIGINT PRIMARY KEY,
		reference TEXT NOT NULL,
		gateway TEXT NOT NULL,
		wish_id BIGINT NOT NULL REFERENCES wishes(id) ON DELETE RESTRICT,
		quantity BIGINT NOT NULL,
		unit_price BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		donor_email TEXT NOT NULL,
		metadata TEXT,
		paid_at DATETIME NOT NULL,
		applied_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payments_reference ON payments(reference)`,
}

// Open returns a fresh shared-cache in-memory database with the schema
// applied. Connections are capped at one so concurrent tests serialize the
// way a single sqlite writer does.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// SeedCharity inserts an active charity and returns its id.
func SeedCharity(t testing.TB, db *gorm.DB, node *snowflake.Node, name string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO charities (id, name, slug, description, website, logo_url, image_url, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, fmt.Sprintf("%s-%d", name, id), "seeded", "https://example.org", "logo.png", "image.png", true, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed charity: %v", err)
	}
	return id
}

// SeedWish inserts a wish with the given minor-unit prices and returns its id.
func SeedWish(t testing.TB, db *gorm.DB, node *snowflake.Node, charityID snowflake.ID, name string, unitPrice, quantity, target int64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO wishes (id, charity_id, name, description, unit_price, quantity, target_amount, current_amount, fulfilled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, charityID, name, "seeded", unitPrice, quantity, target, false, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed wish: %v", err)
	}
	return id
}

// WishAmounts reads the ledger columns of a wish.
func WishAmounts(t testing.TB, db *gorm.DB, id snowflake.ID) (current int64, fulfilled bool) {
	t.Helper()
	var row struct {
		CurrentAmount int64
		Fulfilled     bool
	}
	if err := db.Raw(`SELECT current_amount, fulfilled FROM wishes WHERE id = ?`, id).Scan(&row).Error; err != nil {
		t.Fatalf("read wish: %v", err)
	}
	return row.CurrentAmount, row.Fulfilled
}

func Count(t testing.TB, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	if err := db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
