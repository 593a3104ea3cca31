package testutil

import (
	"agile-tracker-api/internal/config"
	"agile-tracker-api/internal/database"

	"gorm.io/gorm"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
// The pool holds a single connection so every goroutine sees the same database.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      ":memory:",
		LogLevel: "silent",
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
