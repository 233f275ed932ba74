package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/yemen_adm3.geojson", cfg.Data.Boundaries)
	assert.Equal(t, "data/adm3_timeseries.json", cfg.Data.Series)
	assert.Equal(t, "data/adm3_population_timeseries.csv", cfg.Data.RawTable)
	assert.Equal(t, 0, cfg.Dashboard.DefaultYear)
	assert.Empty(t, cfg.Dashboard.DefaultDistrict)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 20.0, cfg.Server.RatePerSec, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, 64, cfg.Server.CacheSize)
	assert.Equal(t, 60, cfg.Server.CacheTTLMins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  boundaries: https://example.com/adm3.geojson
  series: ftp://ftp.example.com/pub/series.json
dashboard:
  default_year: 2025
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/adm3.geojson", cfg.Data.Boundaries)
	assert.Equal(t, "ftp://ftp.example.com/pub/series.json", cfg.Data.Series)
	assert.Equal(t, 2025, cfg.Dashboard.DefaultYear)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 64, cfg.Server.CacheSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  series: data/local.json
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("POPDASH_DATA_SERIES", "data/env.json")
	t.Setenv("POPDASH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "data/env.json", cfg.Data.Series)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POPDASH_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("POPDASH_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [port"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Boundaries = "data/adm3.geojson"
	cfg.Data.Series = "data/series.json"
	cfg.Server.Port = 8080
	cfg.Server.RatePerSec = 20
	cfg.Server.RateBurst = 40
	cfg.Server.CacheSize = 64
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Data mode ignores server settings.
	assert.NoError(t, cfg.Validate("data"))
}

func TestValidateData_MissingSources(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Boundaries = ""
	cfg.Data.Series = ""

	err := cfg.Validate("data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.boundaries is required")
	assert.Contains(t, err.Error(), "data.series is required")
}

func TestValidateServe_Limits(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.RatePerSec = 0
	cfg.Server.RateBurst = 0
	cfg.Server.CacheSize = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_per_sec")
	assert.Contains(t, err.Error(), "rate_burst")
	assert.Contains(t, err.Error(), "cache_size")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
