package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, DriverFS, cfg.StoreDriver)
	assert.Equal(t, "./data", cfg.StoragePath)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.FacebookEnabled())
}

func TestParse_Values(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"BASE_URL":         "https://secrets.example.com/",
		"STORE_DRIVER":     "postgres",
		"DATABASE_DSN":     "postgres://localhost/secrets",
		"CLIENT_ID":        "gid",
		"CLIENT_SECRET":    "gsecret",
		"FACEBOOK_ID":      "fid",
		"SESSION_LIFETIME": "2h",
		"LOG_LEVEL":        "debug",
		"LOG_FORMAT":       "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://secrets.example.com", cfg.BaseURL)
	assert.Equal(t, "https://secrets.example.com/auth/google/secrets", cfg.CallbackURL("google"))
	assert.True(t, cfg.GoogleEnabled())
	assert.False(t, cfg.FacebookEnabled(), "facebook needs both id and secret")
	assert.Equal(t, 2*time.Hour, cfg.SessionLifetime)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, `unknown STORE_DRIVER "mongo"`},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_DSN is required"},
		{"datastore without project", map[string]string{"STORE_DRIVER": "datastore"}, "DATASTORE_PROJECT is required"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, `unknown LOG_LEVEL "loud"`},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, `unknown LOG_FORMAT "xml"`},
		{"bad duration", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_PATH=/tmp/from-dotenv\nADDR=:4000\n"), 0644))
	t.Setenv("ADDR", ":5000")
	t.Setenv("STORAGE_PATH", "")
	os.Unsetenv("STORAGE_PATH")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv", cfg.StoragePath)
	assert.Equal(t, ":5000", cfg.Addr, "process env wins over the file")
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "user_id", "u-1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"user_id":"u-1"`)
}
