// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/softwarepar/backend/internal/database/migrations"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter int64

// New returns a fresh, fully migrated SQLite database that is closed when t ends.
// The pool is capped at one connection so every statement sees the same
// in-memory database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:softwarepar_test_%d?mode=memory&_pragma=foreign_keys(1)", atomic.AddInt64(&counter, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrations.RunMigrations(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
