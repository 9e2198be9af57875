package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"go_domainlink/internal/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// OpenTestDB opens a migrated in-memory SQLite database private to t
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:domainlink_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	conn, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
