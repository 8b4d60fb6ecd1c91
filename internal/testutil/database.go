package testutil

import (
	"testing"

	"attrack/internal/attendance"
	"attrack/internal/cache"
)

// NewTestCache creates a new in-memory SQLite cache with schema applied.
// The cache is automatically closed when the test completes.
func NewTestCache(t *testing.T) attendance.Cache {
	t.Helper()

	sqlDB, err := cache.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Every pooled connection to :memory: is a distinct database.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(cache.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	c := cache.NewSQLiteCacheFromDB(sqlDB)

	t.Cleanup(func() {
		c.Close()
	})

	return c
}
