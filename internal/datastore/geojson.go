package datastore

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/popdash/internal/model"
)

type outFeature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Properties map[string]any    `json:"properties"`
	Geometry   *geojson.Geometry `json:"geometry"`
}

type outCollection struct {
	Type     string       `json:"type"`
	Features []outFeature `json:"features"`
}

// BoundaryProperties returns the normalized properties of a boundary as they
// are written back out: ADM3_PCODE, ADM3_EN and, when known, area_km2.
func BoundaryProperties(b model.DistrictBoundary) map[string]any {
	props := map[string]any{
		"ADM3_PCODE": b.PCode,
		"ADM3_EN":    b.Name,
	}
	if area, ok := b.Area(); ok {
		props["area_km2"] = area
	}
	return props
}

// WriteGeoJSON writes boundaries as a FeatureCollection. extra, when non-nil,
// adds properties per feature.
func WriteGeoJSON(w io.Writer, boundaries []model.DistrictBoundary, extra func(model.DistrictBoundary) map[string]any) error {
	fc := outCollection{Type: "FeatureCollection", Features: make([]outFeature, 0, len(boundaries))}
	for _, b := range boundaries {
		props := BoundaryProperties(b)
		if extra != nil {
			for k, v := range extra(b) {
				props[k] = v
			}
		}

		f := outFeature{Type: "Feature", ID: b.PCode, Properties: props}
		if b.Geometry != nil {
			g, err := geojson.Encode(b.Geometry)
			if err != nil {
				return eris.Wrapf(err, "datastore: encode geometry of %s", b.PCode)
			}
			f.Geometry = g
		}
		fc.Features = append(fc.Features, f)
	}

	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "datastore: write geojson")
	}
	return nil
}
