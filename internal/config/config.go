// Package config loads the service configuration from the environment and
// an optional .env file.
//
// The resulting Config is passed explicitly to the store, the service and
// the server; nothing else in the module reads the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort           = 5001
	DefaultDataDir        = "data"
	DefaultBillingFile    = "revenuecat.json"
	DefaultEngagementFile = "onesignal.json"
	DefaultLogLevel       = "debug"
)

// DefaultAllowedOrigins are the local frontend dev servers allowed to call
// /api/* cross-origin.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Config holds application configuration.
type Config struct {
	Port           int
	DataDir        string   // directory holding both exports
	BillingFile    string   // RevenueCat export, relative to DataDir
	EngagementFile string   // OneSignal export, relative to DataDir
	AllowedOrigins []string // CORS origins for /api/*
	LogLevel       string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           DefaultPort,
		DataDir:        DefaultDataDir,
		BillingFile:    DefaultBillingFile,
		EngagementFile: DefaultEngagementFile,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if there is one. Variables already
// present in the environment win over the .env file.
//
// Load does not validate. Command-line flags are layered on top of the
// result first, so a bad environment value can still be overridden; call
// Validate or ValidateServer once the final values are in place. A PORT
// that is not a number leaves Port at 0, which ValidateServer rejects.
func Load() Config {
	_ = godotenv.Load()

	cfg := Default()
	cfg.DataDir = getenv("DATA_DIR", cfg.DataDir)
	cfg.BillingFile = getenv("BILLING_FILE", cfg.BillingFile)
	cfg.EngagementFile = getenv("ENGAGEMENT_FILE", cfg.EngagementFile)
	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", cfg.LogLevel))

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			port = 0
		}
		cfg.Port = port
	}

	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); strings.TrimSpace(raw) != "" {
		cfg.AllowedOrigins = splitList(raw)
	}

	return cfg
}

// Validate reports the first setting that cannot work for a merge. The
// port is not checked; see ValidateServer.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data directory is required")
	}
	if strings.TrimSpace(c.BillingFile) == "" {
		return errors.New("config: billing file name is required")
	}
	if strings.TrimSpace(c.EngagementFile) == "" {
		return errors.New("config: engagement file name is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateServer is Validate plus the settings only the HTTP server reads.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range (set PORT or --port to 1-65535)", c.Port)
	}
	return nil
}

// ParseLevel maps debug/info/warn/error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", s)
	}
	return level, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
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
