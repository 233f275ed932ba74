package datastore

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/fetcher"
	"github.com/sells-group/popdash/internal/model"
)

// boundarySet is the parsed boundary dataset before indexing.
type boundarySet struct {
	items      []model.DistrictBoundary
	rejected   int
	duplicates int
}

func (s *boundarySet) add(b model.DistrictBoundary, seen map[string]bool) {
	if seen[b.PCode] {
		s.duplicates++
		return
	}
	seen[b.PCode] = true
	b.Bounds = model.BoundsOf(b.Geometry)
	s.items = append(s.items, b)
}

// featureCollection is decoded by hand so that feature ids of any JSON type
// are tolerated. Geometries go through go-geom.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

func loadBoundaries(ctx context.Context, opener *fetcher.Opener, location string) (*boundarySet, error) {
	switch ext := fetcher.Ext(location); ext {
	case ".geojson", ".json":
		rc, err := opener.Open(ctx, location)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		return parseGeoJSON(rc)
	case ".shp":
		if fetcher.SchemeOf(location) != fetcher.SchemeFile {
			return nil, eris.Errorf("datastore: remote shapefiles must be zipped: %s", location)
		}
		return parseShapefile(location)
	case ".zip":
		local, cleanup, err := opener.Localize(ctx, location)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return parseShapefileZIP(local)
	default:
		return nil, eris.Errorf("datastore: unsupported boundary format %q", ext)
	}
}

func parseGeoJSON(r io.Reader) (*boundarySet, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "datastore: decode geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("datastore: expected FeatureCollection, got %q", fc.Type)
	}

	set := &boundarySet{}
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		b, ok := normalizeBoundary(f.Properties)
		if !ok {
			set.rejected++
			zap.L().Debug("datastore: feature without district code", zap.Int("index", i))
			continue
		}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			var g geom.T
			if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
				return nil, eris.Wrapf(err, "datastore: decode geometry of %s", b.PCode)
			}
			b.Geometry = g
		}
		set.add(b, seen)
	}
	return set, nil
}

func parseShapefileZIP(zipPath string) (*boundarySet, error) {
	dir, err := os.MkdirTemp("", "popdash-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "datastore: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if _, err := fetcher.ExtractZIP(zipPath, dir); err != nil {
		return nil, err
	}
	shpPath, err := fetcher.FindFileByExt(dir, ".shp")
	if err != nil {
		return nil, err
	}
	return parseShapefile(shpPath)
}
