// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package config defines the service configuration and its layered
// loader (defaults, YAML file, environment variables).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/glpidash/glpidash/internal/models"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	GLPI      GLPIConfig      `koanf:"glpi"`
	Cache     CacheConfig     `koanf:"cache"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout           time.Duration `koanf:"timeout"`
	Environment       string        `koanf:"environment" validate:"oneof=development production"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// GLPIConfig configures upstream access: credentials, timeouts, the
// retry policy, and the group-to-level table.
type GLPIConfig struct {
	// URL is the API root, e.g. "https://glpi.example.com/apirest.php".
	URL       string `koanf:"url" validate:"required,url"`
	AppToken  string `koanf:"app_token" validate:"required"`
	UserToken string `koanf:"user_token" validate:"required"`

	LoginTimeout   time.Duration `koanf:"login_timeout"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`

	MaxRetries        int           `koanf:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
	MaxReauthAttempts int           `koanf:"max_reauth_attempts" validate:"min=1,max=10"`

	// RequestsPerSecond enables client-side pacing when > 0.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`

	PageSize int `koanf:"page_size" validate:"min=1,max=1000"`

	// LevelGroups maps support tiers to the GLPI group IDs that staff
	// them, e.g. {"N1": [89], "N2": [90]}.
	LevelGroups map[string][]int `koanf:"level_groups"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Backend  string        `koanf:"backend" validate:"oneof=memory redis"`
	TTL      time.Duration `koanf:"ttl"`
	StaleTTL time.Duration `koanf:"stale_ttl"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"min=0"`
}

// DashboardConfig tunes the metrics facade.
type DashboardConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	NameTTL        time.Duration `koanf:"name_ttl"`
	MaxTickets     int           `koanf:"max_tickets" validate:"min=0"`
}

// RefreshConfig configures the background cache-warming service.
type RefreshConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between refresh cycles.
	Interval time.Duration `koanf:"interval"`

	// Window is the time span the warmed dashboard covers, ending now.
	Window time.Duration `koanf:"window"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var validate = validator.New()

// Validate checks the configuration for internal consistency. Struct
// tags cover ranges and enumerations; cross-field rules are checked by
// hand.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for level := range c.GLPI.LevelGroups {
		if !knownLevel(level) {
			return fmt.Errorf("invalid configuration: unknown support level %q in glpi.level_groups", level)
		}
	}

	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("invalid configuration: cache.redis_addr is required with the redis backend")
	}

	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		return fmt.Errorf("invalid configuration: refresh.interval must be positive when refresh is enabled")
	}

	return nil
}

func knownLevel(level string) bool {
	for _, known := range models.Levels {
		if level == string(known) {
			return true
		}
	}
	return false
}

// LevelTable converts the configured group mapping into the
// group-ID-to-level form the normalizer consumes. Returns nil when no
// mapping is configured, which makes the normalizer fall back to its
// built-in table.
func (g GLPIConfig) LevelTable() map[int]models.LevelKind {
	if len(g.LevelGroups) == 0 {
		return nil
	}
	table := make(map[int]models.LevelKind)
	for level, groups := range g.LevelGroups {
		for _, groupID := range groups {
			table[groupID] = models.LevelKind(level)
		}
	}
	return table
}

// LevelGroupTable converts the configured mapping into the
// level-to-group-IDs form the upstream gateway consumes.
func (g GLPIConfig) LevelGroupTable() map[models.LevelKind][]int {
	table := make(map[models.LevelKind][]int, len(g.LevelGroups))
	for level, groups := range g.LevelGroups {
		table[models.LevelKind(level)] = groups
	}
	return table
}

// IsProduction reports whether the service runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
