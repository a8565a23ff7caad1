package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "TIMEZONE",
		"ALLOWED_ORIGINS", "CATALOG_FILE", "ANNOUNCE_INTERVAL", "SEED_SCENARIO",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "recognition.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.AnnounceInterval)
	assert.Empty(t, cfg.CatalogFile)
	assert.Empty(t, cfg.SeedScenario)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestFromEnv_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, https://warp.example ,")
	t.Setenv("ANNOUNCE_INTERVAL", "0")
	t.Setenv("TIMEZONE", "America/Sao_Paulo")

	cfg, err := FromEnv([]string{"-port", "3000", "-scenario", "demo"})
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:5173", "https://warp.example"}, cfg.AllowedOrigins)
	assert.Zero(t, cfg.AnnounceInterval)
	assert.Equal(t, "demo", cfg.SeedScenario)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"port not a number", map[string]string{"PORT": "http"}, nil},
		{"port out of range", nil, []string{"-port", "70000"}},
		{"bad duration", map[string]string{"ANNOUNCE_INTERVAL": "soon"}, nil},
		{"negative interval", nil, []string{"-announce", "-1m"}},
		{"unknown format", map[string]string{"LOG_FORMAT": "xml"}, nil},
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, nil},
		{"unknown flag", nil, []string{"-verbose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv(tt.args)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7000\nDB_PATH=from-dotenv.db\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// GIVEN: PORT set in the environment, DB_PATH only in .env
	t.Setenv("PORT", "7100")
	os.Unsetenv("DB_PATH")

	cfg, err := Load(nil)
	require.NoError(t, err)

	// THEN: The environment wins, .env fills the gap
	assert.Equal(t, 7100, cfg.Port)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
	os.Unsetenv("DB_PATH")
}
