package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/popdash/internal/density"
	"github.com/sells-group/popdash/internal/model"
)

// NoData marks a selected district that has no time series.
type NoData struct {
	PCode string `json:"pcode"`
	Name  string `json:"name"`
}

// Viewport is the last requested map fit.
type Viewport struct {
	PCode  string       `json:"pcode"`
	Bounds model.Bounds `json:"bounds"`
}

// Snapshot is everything currently on screen. Revision changes on every
// renderer call.
type Snapshot struct {
	Revision  string                 `json:"revision"`
	UpdatedAt time.Time              `json:"updated_at"`
	State     State                  `json:"state"`
	Styles    []density.StyleRequest `json:"styles"`
	Legend    *density.LegendSpec    `json:"legend,omitempty"`
	Pyramid   *PyramidViewModel      `json:"pyramid,omitempty"`
	Trend     *TrendViewModel        `json:"trend,omitempty"`
	Insight   *InsightText           `json:"insight,omitempty"`
	NoData    *NoData                `json:"no_data,omitempty"`
	Viewport  *Viewport              `json:"viewport,omitempty"`
}

// SnapshotRenderer is a Renderer that keeps the latest pushed view models so
// a browser can fetch them. It is safe for concurrent use.
type SnapshotRenderer struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewSnapshotRenderer creates an empty SnapshotRenderer.
func NewSnapshotRenderer() *SnapshotRenderer {
	return &SnapshotRenderer{now: time.Now}
}

func (s *SnapshotRenderer) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap.Revision = uuid.NewString()
	s.snap.UpdatedAt = s.now().UTC()
}

// Snapshot returns a copy of the current view with state attached.
func (s *SnapshotRenderer) Snapshot(state State) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.State = state
	out.Styles = append([]density.StyleRequest(nil), s.snap.Styles...)
	return out
}

// StyleDistricts implements Renderer.
func (s *SnapshotRenderer) StyleDistricts(styles []density.StyleRequest) {
	s.update(func(sn *Snapshot) {
		sn.Styles = append([]density.StyleRequest(nil), styles...)
	})
}

// DrawLegend implements Renderer.
func (s *SnapshotRenderer) DrawLegend(legend density.LegendSpec) {
	s.update(func(sn *Snapshot) { sn.Legend = &legend })
}

// UpdatePyramid implements Renderer.
func (s *SnapshotRenderer) UpdatePyramid(vm PyramidViewModel) {
	s.update(func(sn *Snapshot) {
		sn.Pyramid = &vm
		sn.NoData = nil
	})
}

// UpdateTrend implements Renderer.
func (s *SnapshotRenderer) UpdateTrend(vm TrendViewModel) {
	s.update(func(sn *Snapshot) {
		sn.Trend = &vm
		sn.NoData = nil
	})
}

// ShowInsight implements Renderer.
func (s *SnapshotRenderer) ShowInsight(text InsightText) {
	s.update(func(sn *Snapshot) {
		sn.Insight = &text
		sn.NoData = nil
	})
}

// ShowNoData implements Renderer. It clears the charts and the insight.
func (s *SnapshotRenderer) ShowNoData(pcode, name string) {
	s.update(func(sn *Snapshot) {
		sn.NoData = &NoData{PCode: pcode, Name: name}
		sn.Pyramid = nil
		sn.Trend = nil
		sn.Insight = nil
	})
}

// FitBounds implements Renderer.
func (s *SnapshotRenderer) FitBounds(pcode string, bounds model.Bounds) {
	s.update(func(sn *Snapshot) {
		sn.Viewport = &Viewport{PCode: pcode, Bounds: bounds}
	})
}
