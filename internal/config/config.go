package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"cors_origin"`
	// DevLogin exposes POST /api/login, which signs a token for any username.
	DevLogin bool `yaml:"dev_login"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	// DevPasswordHash is a bcrypt hash; when set, dev login requires the
	// matching password.
	DevPasswordHash string `yaml:"dev_password_hash"`
}

type ScheduleConfig struct {
	Source   string        `yaml:"source"` // http | table | none
	BaseURL  string        `yaml:"base_url"`
	Table    string        `yaml:"table"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8008",
			CORSOrigin: "*",
		},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "agile-tracker.db",
			LogLevel: "warn",
		},
		Auth: AuthConfig{
			Secret:   "development-insecure-secret-change-me",
			Issuer:   "agile-tracker-api",
			Audience: "agile-tracker-clients",
			TokenTTL: 24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			Source:   "none",
			Table:    "wbs_activities",
			Timeout:  5 * time.Second,
			CacheTTL: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (when non-empty and present), fills in
// defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AGILE_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			var fromFile Config
			if err := yaml.Unmarshal(data, &fromFile); err != nil {
				return nil, err
			}
			cfg.merge(fromFile)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// merge copies every non-zero value of other over c.
func (c *Config) merge(other Config) {
	setString(&c.Server.Addr, other.Server.Addr)
	setString(&c.Server.CORSOrigin, other.Server.CORSOrigin)
	c.Server.DevLogin = c.Server.DevLogin || other.Server.DevLogin

	setString(&c.Database.Driver, other.Database.Driver)
	setString(&c.Database.DSN, other.Database.DSN)
	setString(&c.Database.LogLevel, other.Database.LogLevel)

	setString(&c.Auth.Secret, other.Auth.Secret)
	setString(&c.Auth.Issuer, other.Auth.Issuer)
	setString(&c.Auth.Audience, other.Auth.Audience)
	setDuration(&c.Auth.TokenTTL, other.Auth.TokenTTL)
	setString(&c.Auth.DevPasswordHash, other.Auth.DevPasswordHash)

	setString(&c.Schedule.Source, other.Schedule.Source)
	setString(&c.Schedule.BaseURL, other.Schedule.BaseURL)
	setString(&c.Schedule.Table, other.Schedule.Table)
	setDuration(&c.Schedule.Timeout, other.Schedule.Timeout)
	setDuration(&c.Schedule.CacheTTL, other.Schedule.CacheTTL)

	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.Format, other.Log.Format)
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, os.Getenv("AGILE_HTTP_ADDR"))
	setString(&c.Database.Driver, os.Getenv("AGILE_DB_DRIVER"))
	setString(&c.Database.DSN, os.Getenv("AGILE_DB_DSN"))
	setString(&c.Auth.Secret, os.Getenv("JWT_SECRET"))
	setString(&c.Auth.Issuer, os.Getenv("JWT_ISSUER"))
	setString(&c.Auth.Audience, os.Getenv("JWT_AUDIENCE"))
	setString(&c.Auth.DevPasswordHash, os.Getenv("AGILE_DEV_PASSWORD_HASH"))
	setString(&c.Log.Level, os.Getenv("AGILE_LOG_LEVEL"))
	if url := os.Getenv("AGILE_SCHEDULE_URL"); url != "" {
		c.Schedule.BaseURL = url
		c.Schedule.Source = "http"
	}
	if v := strings.ToLower(os.Getenv("AGILE_DEV_LOGIN")); v == "1" || v == "true" {
		c.Server.DevLogin = true
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
