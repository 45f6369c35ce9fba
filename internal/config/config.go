// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Nudge    NudgeConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DatabaseConfig holds document store configuration.
type DatabaseConfig struct {
	Path string
}

// RedisConfig holds the delivery-channel registry connection.
type RedisConfig struct {
	URL string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	// RateLimit and RateBurst bound requests per caller; zero disables.
	RateLimit float64
	RateBurst int
}

// NudgeConfig holds the reminder scheduler settings.
type NudgeConfig struct {
	// LegacyHour is the UTC hour of the daily pass over unmigrated users (default: 14).
	LegacyHour int
	// CooldownWindow suppresses a nudge when the user posted within it (default: 24h).
	CooldownWindow time.Duration
	// RenotifyGuard suppresses a nudge when one was sent within it (default: 50m).
	RenotifyGuard time.Duration
	// SweepConcurrency bounds per-user work within one sweep (default: 8).
	SweepConcurrency int
	// PushRate and PushBurst limit sends per delivery channel.
	PushRate  float64
	PushBurst int
	// BatchSize caps writes grouped in one atomic batch (default: 500).
	BatchSize int
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("town", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dbPath := fs.String("db-path", "", "Path of the document store directory")
	redisURL := fs.String("redis-url", "", "Redis URL for the delivery-channel registry")
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	legacyHour := fs.String("legacy-hour", "", "UTC hour of the daily legacy nudge pass (default: 14)")
	cooldown := fs.String("nudge-cooldown", "", "Skip nudges for users active within this window (default: 24h)")
	renotify := fs.String("nudge-renotify-guard", "", "Minimum gap between two nudges to one user (default: 50m)")
	concurrency := fs.String("sweep-concurrency", "", "Parallel per-user sends within a sweep (default: 8)")
	batchSize := fs.String("batch-size", "", "Maximum writes per atomic batch (default: 500)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Redis: RedisConfig{
			URL: getConfigValue(*redisURL, "REDIS_URL", "redis://localhost:6379/0"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			RateLimit:      getFloatConfigValue("", "RATE_LIMIT_RPS", 20),
			RateBurst:      getIntConfigValue("", "RATE_LIMIT_BURST", 40),
		},
		Nudge: NudgeConfig{
			LegacyHour:       getIntConfigValue(*legacyHour, "NUDGE_LEGACY_HOUR", 14),
			SweepConcurrency: getIntConfigValue(*concurrency, "SWEEP_CONCURRENCY", 8),
			PushRate:         getFloatConfigValue("", "PUSH_RATE", 1),
			PushBurst:        getIntConfigValue("", "PUSH_BURST", 3),
			BatchSize:        getIntConfigValue(*batchSize, "BATCH_SIZE", 500),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dest                   *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*cooldown, "NUDGE_COOLDOWN", "24h", &cfg.Nudge.CooldownWindow},
		{*renotify, "NUDGE_RENOTIFY_GUARD", "50m", &cfg.Nudge.RenotifyGuard},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dest = parsed
	}

	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}
	if c.Nudge.LegacyHour < 0 || c.Nudge.LegacyHour > 23 {
		return fmt.Errorf("legacy hour %d out of range 0-23", c.Nudge.LegacyHour)
	}
	if c.Nudge.CooldownWindow <= 0 {
		return errors.New("nudge cooldown must be positive")
	}
	if c.Nudge.SweepConcurrency < 1 {
		return errors.New("sweep concurrency must be at least 1")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return errors.New("rate limit burst must be at least 1")
	}
	if c.Nudge.BatchSize < 2 {
		// A friendship pair needs two writes in one batch.
		return errors.New("batch size must be at least 2")
	}

	return nil
}

// expandDatabasePath expands ~ and makes the path absolute.
// Defaults to ~/town/db.
func (c *Config) expandDatabasePath() error {
	path := c.Database.Path
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Database.Path = filepath.Join(homeDir, "town", "db")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	c.Database.Path = filepath.Clean(abs)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Existing variables win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
