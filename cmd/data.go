package main

import (
	"context"
	"time"

	"github.com/sells-group/popdash/internal/config"
	"github.com/sells-group/popdash/internal/dashboard"
	"github.com/sells-group/popdash/internal/datastore"
	"github.com/sells-group/popdash/internal/fetcher"
)

// newOpener builds the dataset opener from the fetch settings.
func newOpener(c *config.Config) *fetcher.Opener {
	return fetcher.NewOpener(fetcher.Options{
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
		RatePerSec: c.Fetch.RatePerSec,
		UserAgent:  c.Fetch.UserAgent,
		TempDir:    c.Data.TempDir,
	})
}

// sourceLoader returns the dashboard loader for the configured datasets.
func sourceLoader(c *config.Config) dashboard.SourceLoader {
	return dashboard.SourceLoader{
		Sources: datastore.Sources{
			Boundaries: c.Data.Boundaries,
			Series:     c.Data.Series,
		},
		Options: datastore.Options{Opener: newOpener(c)},
	}
}

// loadStore validates the data settings and loads both datasets.
func loadStore(ctx context.Context, c *config.Config) (*datastore.Store, error) {
	if err := c.Validate("data"); err != nil {
		return nil, err
	}
	return sourceLoader(c).Load(ctx)
}

// resolveYear returns the flag year, or the configured default, or the latest
// year in the data.
func resolveYear(flag int, c *config.Config, store *datastore.Store) int {
	if flag != 0 {
		return flag
	}
	if c.Dashboard.DefaultYear != 0 && store.HasYear(c.Dashboard.DefaultYear) {
		return c.Dashboard.DefaultYear
	}
	return store.LatestYear()
}
