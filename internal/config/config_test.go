package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8780", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.BunDebug)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, EncodingUTF8, cfg.ImportEncoding)
	assert.Equal(t, "ap-northeast-1", cfg.S3Region)
	assert.False(t, cfg.S3PathStyle)
	require.NoError(t, cfg.Validate())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:hinan.db")
	t.Setenv("BUNDEBUG", "true")
	t.Setenv("ACCESS_TOKEN_MINUTES", "30")
	t.Setenv("REFRESH_TOKEN_DAYS", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("IMPORT_ENCODING", "Shift_JIS")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_PATH_STYLE", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "file:hinan.db", cfg.DatabaseURL)
	assert.True(t, cfg.BunDebug)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, EncodingShiftJIS, cfg.ImportEncoding)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.True(t, cfg.S3PathStyle)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_MINUTES", "soon")
	t.Setenv("BUNDEBUG", "maybe")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.BunDebug)
}

func TestValidate_InvalidDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
}

func TestValidate_InvalidEncoding(t *testing.T) {
	t.Setenv("IMPORT_ENCODING", "euc-jp")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPORT_ENCODING")
}
