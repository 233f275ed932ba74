package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/popdash/internal/config"
)

const fixtureBoundaries = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"ADM3_PCODE": "YE1101", "ADM3_EN": "Al Bayda", "area_km2": 10},
     "geometry": {"type": "Polygon", "coordinates": [[[45,14],[45.1,14],[45.1,14.1],[45,14]]]}},
    {"type": "Feature",
     "properties": {"ADM3_PCODE": "YE1102", "ADM3_EN": "Rada", "area_km2": 20},
     "geometry": {"type": "Polygon", "coordinates": [[[44,14],[44.1,14],[44.1,14.1],[44,14]]]}}
  ]
}`

const fixtureSeries = `{
  "YE1101": [
    {"year": 2015, "pre_school": 100, "school_age": 100, "university_age": 100, "working_age": 300, "retirement_age": 50, "eighty_plus": 10, "total": 660},
    {"year": 2030, "pre_school": 90, "school_age": 95, "university_age": 110, "working_age": 330, "retirement_age": 90, "eighty_plus": 25, "total": 740}
  ],
  "YE1102": [
    {"year": 2015, "pre_school": 10, "school_age": 10, "university_age": 10, "working_age": 100, "retirement_age": 20, "eighty_plus": 5, "total": 155},
    {"year": 2030, "pre_school": 10, "school_age": 10, "university_age": 10, "working_age": 100, "retirement_age": 60, "eighty_plus": 20, "total": 210}
  ]
}`

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// withConfig installs a config pointing at fresh fixture files for the test.
func withConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	c := &config.Config{
		Data: config.DataConfig{
			Boundaries: writeFixture(t, dir, "adm3.geojson", fixtureBoundaries),
			Series:     writeFixture(t, dir, "series.json", fixtureSeries),
			TempDir:    dir,
		},
		Fetch: config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1},
		Server: config.ServerConfig{
			Port:         8080,
			CORSOrigins:  []string{"*"},
			RatePerSec:   100,
			RateBurst:    100,
			CacheSize:    8,
			CacheTTLMins: 5,
		},
		Log: config.LogConfig{Level: "info", Format: "console"},
	}

	oldCfg := cfg
	cfg = c
	t.Cleanup(func() { cfg = oldCfg })
	return c
}
