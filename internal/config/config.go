// Package config provides daemon and CLI configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Scopes the daemon knows how to serve.
const (
	ScopeStorage = "storage"
	ScopeSystem  = "system"
)

// Config holds scoped-messaging configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"scoped-messaging"`

	// Messaging transport
	SubjectPrefix      string        `envconfig:"MESSAGING_SUBJECT_PREFIX" default:"msg"`
	QueueGroup         string        `envconfig:"MESSAGING_QUEUE_GROUP"`
	RequestTimeout     time.Duration `envconfig:"MESSAGING_REQUEST_TIMEOUT" default:"25s"`
	ProtocolVersion    string        `envconfig:"MESSAGING_PROTOCOL_VERSION" default:"1.0.0"`
	ProtocolConstraint string        `envconfig:"MESSAGING_PROTOCOL_CONSTRAINT" default:"^1.0.0"`
	Scopes             []string      `envconfig:"MESSAGING_SCOPES" default:"storage,system"`

	// Storage change events (empty = storage.changed)
	ChangeEventSubject string `envconfig:"STORAGE_CHANGE_EVENT_SUBJECT"`

	// Database (empty = in-memory storage)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health and metrics endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	MetricsEnabled     bool          `envconfig:"METRICS_ENABLED" default:"true"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the daemon.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForCall(); err != nil {
		return err
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("%s - MESSAGING_SCOPES must name at least one scope", logPrefix)
	}
	for _, s := range c.Scopes {
		if s != ScopeStorage && s != ScopeSystem {
			return fmt.Errorf("%s - MESSAGING_SCOPES: unknown scope %q", logPrefix, s)
		}
	}
	if _, err := semver.NewConstraint(c.ProtocolConstraint); err != nil {
		return fmt.Errorf("%s - MESSAGING_PROTOCOL_CONSTRAINT is invalid: %w", logPrefix, err)
	}
	if c.RunMigrations && c.DatabaseURL == "" {
		return fmt.Errorf("%s - RUN_MIGRATIONS requires DATABASE_URL", logPrefix)
	}
	return nil
}

// ValidateForCall checks required config when sending a one-shot call.
func (c *Config) ValidateForCall() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - MESSAGING_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if _, err := semver.NewVersion(c.ProtocolVersion); err != nil {
		return fmt.Errorf("%s - MESSAGING_PROTOCOL_VERSION is invalid: %w", logPrefix, err)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// Serves reports whether scope is listed in MESSAGING_SCOPES.
func (c *Config) Serves(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
