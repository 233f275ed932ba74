// Package server exposes the dashboard over an HTTP JSON API for a browser
// front end.
package server

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/popdash/internal/dashboard"
	"github.com/sells-group/popdash/internal/datastore"
	"github.com/sells-group/popdash/internal/density"
)

// Options configures the HTTP surface.
type Options struct {
	// StaticDir, when set, is served at / for the front-end bundle.
	StaticDir string
	// RawTable, when set to a local file, is served as-is by /api/export.csv.
	RawTable    string
	CORSOrigins []string
	RatePerSec  float64
	RateBurst   int
	CacheSize   int
	CacheTTL    time.Duration
}

// Server serves one dashboard session. Events go through a single mutex
// because the controller is not safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	ctrl     *dashboard.Controller
	renderer *dashboard.SnapshotRenderer
	store    *datastore.Store
	layers   *LayerCache
	opts     Options

	boundaries []byte
}

// New creates a Server for a booted controller and the renderer it pushes to.
func New(ctrl *dashboard.Controller, renderer *dashboard.SnapshotRenderer, opts Options) (*Server, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Hour
	}

	store := ctrl.Store()
	layer := func(year int) density.Layer { return density.BuildLayer(store, year) }

	var buf bytes.Buffer
	if err := datastore.WriteGeoJSON(&buf, store.Boundaries(), nil); err != nil {
		return nil, err
	}

	return &Server{
		ctrl:       ctrl,
		renderer:   renderer,
		store:      store,
		layers:     NewLayerCache(layer, opts.CacheSize, opts.CacheTTL),
		opts:       opts,
		boundaries: buf.Bytes(),
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Cache"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.opts.RatePerSec, s.opts.RateBurst))

		r.Get("/districts", s.handleDistricts)
		r.Get("/years", s.handleYears)
		r.Get("/boundaries", s.handleBoundaries)
		r.Get("/choropleth/{year}", s.handleChoropleth)
		r.Get("/cache/stats", s.handleCacheStats)

		r.Route("/districts/{pcode}", func(r chi.Router) {
			r.Get("/pyramid", s.handlePyramid)
			r.Get("/trend", s.handleTrend)
			r.Get("/insight", s.handleInsight)
		})

		r.Get("/view", s.handleView)
		r.Post("/select", s.handleSelect)
		r.Post("/year", s.handleYear)

		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/export.xlsx", s.handleExportXLSX)
	})

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}
