package schedule

import (
	"fmt"
	"strings"

	"agile-tracker-api/internal/config"

	"gorm.io/gorm"
)

// FromConfig builds the activity source named by cfg.Source. Remote and
// table sources are wrapped in a cache when CacheTTL is positive.
func FromConfig(cfg config.ScheduleConfig, db *gorm.DB) (Source, error) {
	var src Source
	switch strings.ToLower(cfg.Source) {
	case "", "none":
		return Static{}, nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("schedule source http needs a base_url")
		}
		src = NewHTTPSource(cfg.BaseURL, cfg.Timeout)
	case "table":
		if cfg.Table == "" {
			return nil, fmt.Errorf("schedule source table needs a table name")
		}
		src = &TableSource{DB: db, Table: cfg.Table}
	default:
		return nil, fmt.Errorf("unknown schedule source %q", cfg.Source)
	}

	if cfg.CacheTTL > 0 {
		return NewCached(src, cfg.CacheTTL), nil
	}
	return src, nil
}
