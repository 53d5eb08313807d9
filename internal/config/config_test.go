package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DATA_DIR", "BILLING_FILE", "ENGAGEMENT_FILE", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg := Load()

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5001, cfg.Port)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8081")
	t.Setenv("DATA_DIR", "/srv/exports")
	t.Setenv("BILLING_FILE", "billing.json")
	t.Setenv("ENGAGEMENT_FILE", "push.json")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg := Load()

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "/srv/exports", cfg.DataDir)
	assert.Equal(t, "billing.json", cfg.BillingFile)
	assert.Equal(t, "push.json", cfg.EngagementFile)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_InvalidEnvIsNotValidated(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "eighty")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg := Load()

	assert.Equal(t, 0, cfg.Port)
	assert.Equal(t, "chatty", cfg.LogLevel)

	// A caller overriding the bad values ends up with a valid config.
	cfg.Port = 8080
	cfg.LogLevel = "info"
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	// godotenv never overrides a variable that is present, even if empty.
	require.NoError(t, os.Unsetenv("BILLING_FILE"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BILLING_FILE=from-dotenv.json\n"), 0o644))

	cfg := Load()

	assert.Equal(t, "from-dotenv.json", cfg.BillingFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "port is not checked", mutate: func(c *Config) { c.Port = 0 }},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = " " }, wantErr: true},
		{name: "empty billing file", mutate: func(c *Config) { c.BillingFile = "" }, wantErr: true},
		{name: "empty engagement file", mutate: func(c *Config) { c.EngagementFile = "" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero port", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "merge settings still checked", mutate: func(c *Config) { c.DataDir = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.ValidateServer()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("info")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
