package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultPort          = "8080"
	DefaultDBPath        = "libropack.db"
	DefaultBatchSize     = 200
	DefaultJanitorMaxAge = 24 * time.Hour
	DefaultIndexInterval = 30 * time.Second
)

// Config holds all application configuration
type Config struct {
	Port           string
	DBPath         string
	PacksDir       string
	LogLevel       string
	LogFormat      string
	IndexBatchSize int
	IndexInterval  time.Duration
	JanitorMaxAge  time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	home, _ := os.UserHomeDir()
	defaultPacksDir := filepath.Join(home, ".libropack", "packs")

	return &Config{
		Port:           getEnv("PORT", DefaultPort),
		DBPath:         getEnv("DB_PATH", DefaultDBPath),
		PacksDir:       getEnv("PACKS_DIR", defaultPacksDir),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		IndexBatchSize: getEnvInt("INDEX_BATCH_SIZE", DefaultBatchSize),
		IndexInterval:  getEnvDuration("INDEX_INTERVAL", DefaultIndexInterval),
		JanitorMaxAge:  getEnvDuration("JANITOR_MAX_AGE", DefaultJanitorMaxAge),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.PacksDir == "" {
		errors = append(errors, "PACKS_DIR cannot be empty")
	}

	if c.IndexBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("INDEX_BATCH_SIZE must be positive, got: %d", c.IndexBatchSize))
	}

	if c.IndexInterval <= 0 {
		errors = append(errors, fmt.Sprintf("INDEX_INTERVAL must be positive, got: %s", c.IndexInterval))
	}

	if c.JanitorMaxAge <= 0 {
		errors = append(errors, fmt.Sprintf("JANITOR_MAX_AGE must be positive, got: %s", c.JanitorMaxAge))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// StagingDir is the scratch extraction root, never exposed to readers.
func (c *Config) StagingDir() string {
	return filepath.Join(c.PacksDir, ".staging")
}

// TrashDir holds replaced installs until the janitor sweeps them.
func (c *Config) TrashDir() string {
	return filepath.Join(c.PacksDir, ".trash")
}

// InstallDir is the final home of verified packs.
func (c *Config) InstallDir() string {
	return filepath.Join(c.PacksDir, "installed")
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
