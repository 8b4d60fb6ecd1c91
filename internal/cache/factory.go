package cache

import (
	"fmt"
	"path/filepath"

	"attrack/internal/attendance"
	"attrack/internal/config"
)

// NewCacheFromConfig creates a Cache implementation based on the database config type.
// The sqlite cache file is scoped per account so switching users never
// reads another account's rows even before the engine wipes ownership.
func NewCacheFromConfig(cfg config.DatabaseConfig, account string) (attendance.Cache, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite cache")
		}
		name := "attendance.db"
		if account != "" {
			name = account + ".db"
		}
		return NewSQLiteCache(filepath.Join(cfg.DataDir, name))
	case "memory":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
