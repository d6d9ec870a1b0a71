package stores

import (
	"fmt"

	"gorm.io/driver/sqlite"
)

// SQLiteStore implements TranscriptStore for SQLite databases.
type SQLiteStore struct {
	gormStore
	path string
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{path: config.Connection}
	if err := store.connect(sqlite.Open(store.path)); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return store, nil
}
