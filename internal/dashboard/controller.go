// Package dashboard owns the selection state and turns selection events into
// renderer updates.
package dashboard

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/datastore"
	"github.com/sells-group/popdash/internal/density"
	"github.com/sells-group/popdash/internal/insight"
	"github.com/sells-group/popdash/internal/model"
	"github.com/sells-group/popdash/internal/projection"
)

// Event errors. Handle leaves the state unchanged when it returns one.
var (
	ErrUnknownDistrict = errors.New("dashboard: unknown district")
	ErrUnsupportedYear = errors.New("dashboard: unsupported year")
	ErrUnknownEvent    = errors.New("dashboard: unknown event")
	ErrNoDistricts     = errors.New("dashboard: dataset has no districts")
)

// State is the current selection.
type State struct {
	District string `json:"district"`
	Year     int    `json:"year"`
}

// Event is a user interaction.
type Event interface {
	event()
}

// SelectDistrict selects a district. Silent skips the viewport fit, for
// refreshes that should not move the map.
type SelectDistrict struct {
	PCode  string
	Silent bool
}

// ChangeYear switches the active year.
type ChangeYear struct {
	Year int
}

func (SelectDistrict) event() {}
func (ChangeYear) event()     {}

// Loader produces the data store at boot.
type Loader interface {
	Load(ctx context.Context) (*datastore.Store, error)
}

// SourceLoader loads from dataset locations.
type SourceLoader struct {
	Sources datastore.Sources
	Options datastore.Options
}

// Load implements Loader.
func (l SourceLoader) Load(ctx context.Context) (*datastore.Store, error) {
	return datastore.Load(ctx, l.Sources, l.Options)
}

// StoreLoader hands out an already loaded store.
type StoreLoader struct {
	Store *datastore.Store
}

// Load implements Loader.
func (l StoreLoader) Load(context.Context) (*datastore.Store, error) {
	return l.Store, nil
}

// Options configures Boot.
type Options struct {
	// DefaultYear is used when the dataset has it; otherwise the latest year.
	DefaultYear int
	// DefaultDistrict is used when the dataset has it; otherwise the first
	// district in load order.
	DefaultDistrict string
}

// Controller is the single owner of the selection state. It is not safe for
// concurrent use; callers serialize events.
type Controller struct {
	store    *datastore.Store
	renderer Renderer
	state    State
	layer    density.Layer
}

// Boot loads the data, picks the default selection and renders everything.
// A load failure is returned as is and nothing is rendered.
func Boot(ctx context.Context, loader Loader, r Renderer, opts Options) (*Controller, error) {
	store, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	codes := store.DistrictCodes()
	if len(codes) == 0 {
		return nil, ErrNoDistricts
	}

	state := State{District: codes[0], Year: store.LatestYear()}
	if opts.DefaultDistrict != "" && store.HasDistrict(opts.DefaultDistrict) {
		state.District = opts.DefaultDistrict
	}
	if opts.DefaultYear != 0 && store.HasYear(opts.DefaultYear) {
		state.Year = opts.DefaultYear
	}

	c := &Controller{store: store, renderer: r, state: state}
	c.renderMap()
	c.renderDistrict(true, true)

	zap.L().Info("dashboard: booted",
		zap.String("district", state.District),
		zap.Int("year", state.Year),
		zap.Int("districts", len(codes)),
	)
	return c, nil
}

// State returns the current selection.
func (c *Controller) State() State {
	return c.state
}

// Store returns the loaded data.
func (c *Controller) Store() *datastore.Store {
	return c.store
}

// Layer returns the choropleth layer for the current year.
func (c *Controller) Layer() density.Layer {
	return c.layer
}

// Handle applies one event. Invalid events return an error and change nothing.
func (c *Controller) Handle(ev Event) error {
	switch e := ev.(type) {
	case SelectDistrict:
		if !c.store.HasDistrict(e.PCode) {
			return eris.Wrapf(ErrUnknownDistrict, "select %q", e.PCode)
		}
		c.state.District = e.PCode
		c.renderDistrict(!e.Silent, true)
		return nil
	case ChangeYear:
		if !c.store.HasYear(e.Year) {
			return eris.Wrapf(ErrUnsupportedYear, "change to %d", e.Year)
		}
		c.state.Year = e.Year
		c.renderMap()
		c.renderDistrict(false, false)
		return nil
	default:
		return eris.Wrapf(ErrUnknownEvent, "%T", ev)
	}
}

// renderMap restyles every district for the current year.
func (c *Controller) renderMap() {
	c.layer = density.BuildLayer(c.store, c.state.Year)
	c.renderer.StyleDistricts(c.layer.Styles)
	c.renderer.DrawLegend(c.layer.Legend)
}

// renderDistrict pushes the selected district's charts and insight. The trend
// is year-independent, so year changes skip it.
func (c *Controller) renderDistrict(fit, withTrend bool) {
	pcode := c.state.District
	b, _ := c.store.Boundary(pcode)

	if fit {
		c.renderer.FitBounds(pcode, b.Bounds)
	}

	series, err := c.store.RequireSeries(pcode)
	if err != nil {
		var missing *datastore.MissingSeriesError
		if errors.As(err, &missing) {
			zap.L().Warn("dashboard: district has no time series", zap.String("pcode", pcode), zap.Error(err))
		}
		c.renderer.ShowNoData(pcode, b.DisplayName())
		return
	}

	pyr, _ := projection.BuildPyramid(series, c.state.Year)
	logFallback(pyr.Fallback)
	c.renderer.UpdatePyramid(PyramidView(b, pyr))

	if withTrend {
		c.renderer.UpdateTrend(TrendView(b, projection.BuildTrend(series)))
	}

	res := insight.Classify(b.DisplayName(), series, c.state.Year)
	c.renderer.ShowInsight(InsightView(pcode, res))
}

func logFallback(fb *model.YearFallback) {
	if fb == nil {
		return
	}
	zap.L().Debug("dashboard: year fallback",
		zap.String("pcode", fb.PCode),
		zap.Int("requested", fb.Requested),
		zap.Int("resolved", fb.Resolved),
	)
}
