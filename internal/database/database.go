package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agile-tracker-api/internal/config"
	"agile-tracker-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the configured database and runs migrations.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	slog.Info("database connected and migrated", "driver", cfg.Driver)
	return db, nil
}

// Open connects to the database without migrating it.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         NewLogger(cfg.LogLevel),
		TranslateError: true,
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		// glebarez/sqlite is a pure Go driver, no CGO required
		db, err := gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.DSN, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// One writer at a time; transactions queue instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the agile tracker schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.BacklogItem{},
		&models.Sprint{},
		&models.SprintItem{},
		&models.Impediment{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// At most one ACTIVE sprint per project, enforced by the store so that two
	// concurrent starts cannot both succeed.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sprints_one_active
		ON sprints (project_id) WHERE status = 'ACTIVE'`).Error; err != nil {
		return fmt.Errorf("create active sprint index: %w", err)
	}
	return nil
}

// NewLogger routes gorm's log output through slog.
func NewLogger(level string) logger.Interface {
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func gormLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Log(context.Background(), slog.LevelInfo, strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}
