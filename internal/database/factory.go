package database

import (
	"fmt"
	"os"
	"path/filepath"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// HistoryFileName is the SQLite file created under database.data_dir.
const HistoryFileName = "xb.db"

// NewHistoryFromConfig creates a History implementation based on the database config type.
func NewHistoryFromConfig(cfg config.DatabaseConfig) (xb.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, &config.ConfigMissingError{Key: "database.data_dir"}
		}
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return NewSQLiteHistory(filepath.Join(cfg.DataDir, HistoryFileName))
	case "memory":
		return NewSQLiteHistory(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
