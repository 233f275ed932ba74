package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/dashboard"
	"github.com/sells-group/popdash/internal/export"
	"github.com/sells-group/popdash/internal/insight"
	"github.com/sells-group/popdash/internal/model"
	"github.com/sells-group/popdash/internal/projection"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) state() dashboard.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// yearParam reads ?year=, defaulting to the selected year.
func (s *Server) yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return s.state().Year, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type districtJSON struct {
	PCode     string       `json:"pcode"`
	Name      string       `json:"name"`
	AreaKm2   *float64     `json:"area_km2,omitempty"`
	Bounds    model.Bounds `json:"bounds"`
	HasSeries bool         `json:"has_series"`
}

func (s *Server) handleDistricts(w http.ResponseWriter, _ *http.Request) {
	bs := s.store.Boundaries()
	out := make([]districtJSON, 0, len(bs))
	for _, b := range bs {
		out = append(out, districtJSON{
			PCode:     b.PCode,
			Name:      b.DisplayName(),
			AreaKm2:   b.AreaKm2,
			Bounds:    b.Bounds,
			HasSeries: !s.store.SeriesFor(b.PCode).Empty(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleYears(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"years":    s.store.Years(),
		"latest":   s.store.LatestYear(),
		"selected": s.state().Year,
	})
}

func (s *Server) handleBoundaries(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(s.boundaries)
}

func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	if !s.store.HasYear(year) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("year %d not available", year))
		return
	}

	payload, hit, err := s.layers.Payload(year)
	if err != nil {
		zap.L().Error("server: choropleth layer", zap.Int("year", year), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "choropleth encoding failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	_, _ = w.Write(payload)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.layers.Stats())
}

// district resolves {pcode} and its series, writing the error response when
// either is missing.
func (s *Server) district(w http.ResponseWriter, r *http.Request) (model.DistrictBoundary, model.DistrictSeries, bool) {
	pcode := chi.URLParam(r, "pcode")
	b, ok := s.store.Boundary(pcode)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown district %q", pcode))
		return b, model.DistrictSeries{}, false
	}
	return b, s.store.SeriesFor(pcode), true
}

func (s *Server) handlePyramid(w http.ResponseWriter, r *http.Request) {
	b, series, ok := s.district(w, r)
	if !ok {
		return
	}
	year, err := s.yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	pyr, ok := projection.BuildPyramid(series, year)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no time series for district %q", b.PCode))
		return
	}
	writeJSON(w, http.StatusOK, dashboard.PyramidView(b, pyr))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	b, series, ok := s.district(w, r)
	if !ok {
		return
	}
	if series.Empty() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no time series for district %q", b.PCode))
		return
	}
	writeJSON(w, http.StatusOK, dashboard.TrendView(b, projection.BuildTrend(series)))
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	b, series, ok := s.district(w, r)
	if !ok {
		return
	}
	year, err := s.yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	res := insight.Classify(b.DisplayName(), series, year)
	writeJSON(w, http.StatusOK, map[string]any{
		"view":   dashboard.InsightView(b.PCode, res),
		"result": res,
	})
}

func (s *Server) snapshot() dashboard.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.Snapshot(s.ctrl.State())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// dispatch applies an event and answers with the resulting snapshot.
func (s *Server) dispatch(w http.ResponseWriter, ev dashboard.Event) {
	s.mu.Lock()
	err := s.ctrl.Handle(ev)
	var snap dashboard.Snapshot
	if err == nil {
		snap = s.renderer.Snapshot(s.ctrl.State())
	}
	s.mu.Unlock()

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, dashboard.ErrUnknownDistrict):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dashboard.ErrUnsupportedYear):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("server: handle event", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event failed")
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PCode  string `json:"pcode"`
		Silent bool   `json:"silent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PCode == "" {
		writeError(w, http.StatusBadRequest, "pcode is required")
		return
	}
	s.dispatch(w, dashboard.SelectDistrict{PCode: req.PCode, Silent: req.Silent})
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.dispatch(w, dashboard.ChangeYear{Year: req.Year})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if s.opts.RawTable != "" {
		if fi, err := os.Stat(s.opts.RawTable); err == nil && !fi.IsDir() {
			w.Header().Set("Content-Disposition", `attachment; filename="population_timeseries.csv"`)
			http.ServeFile(w, r, s.opts.RawTable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="population_timeseries.csv"`)
	if err := export.WriteCSV(w, export.Rows(s.store)); err != nil {
		zap.L().Error("server: export csv", zap.Error(err))
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="population_timeseries.xlsx"`)
	if err := export.WriteXLSX(w, export.Rows(s.store)); err != nil {
		zap.L().Error("server: export xlsx", zap.Error(err))
	}
}
