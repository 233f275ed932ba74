package datastore

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/popdash/internal/model"
)

// Field-name variants seen across dataset vintages, in preference order.
var (
	codeAliases  = []string{"ADM3_PCODE", "adm3_pcode", "ADM2_PCODE", "pcode", "adm3_id"}
	nameAliases  = []string{"ADM3_EN", "adm3_en", "name"}
	areaAliases  = []string{"area_km2", "AREA_KM2", "area"}
	totalAliases = []string{"total", "pop_total", "population"}
	yearAliases  = []string{"year"}
)

// pick returns the value of the first alias present in props. Exact-case
// matches win over case-insensitive ones.
func pick(props map[string]any, aliases []string) (any, bool) {
	for _, a := range aliases {
		if v, ok := props[a]; ok && !blank(v) {
			return v, true
		}
	}
	for _, a := range aliases {
		for k, v := range props {
			if strings.EqualFold(k, a) && !blank(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", "")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// rowProblem classifies why a row was not turned into a record.
type rowProblem int

const (
	rowOK rowProblem = iota
	rowNoCode
	rowNoYear
)

// normalizeRow maps one raw series row onto the fixed record schema. pcode
// is used when the row itself carries no code (map-keyed JSON).
func normalizeRow(row map[string]any, pcode string) (string, model.YearRecord, bool, rowProblem) {
	if v, ok := pick(row, codeAliases); ok {
		if s, ok := asString(v); ok {
			pcode = s
		}
	}
	if pcode == "" {
		return "", model.YearRecord{}, false, rowNoCode
	}

	yv, ok := pick(row, yearAliases)
	if !ok {
		return pcode, model.YearRecord{}, false, rowNoYear
	}
	year, ok := asInt(yv)
	if !ok {
		return pcode, model.YearRecord{}, false, rowNoYear
	}

	rec := model.YearRecord{Year: int(year)}
	for _, b := range model.Buckets() {
		if v, ok := pick(row, []string{b.Key()}); ok {
			if n, ok := asInt(v); ok {
				rec.Buckets[b] = n
			}
		}
	}

	mismatch := false
	if v, ok := pick(row, totalAliases); ok {
		if n, ok := asInt(v); ok {
			rec.Total = n
			mismatch = n != rec.BucketSum()
		} else {
			rec.Total = rec.BucketSum()
			rec.TotalDerived = true
		}
	} else {
		rec.Total = rec.BucketSum()
		rec.TotalDerived = true
	}

	return pcode, rec, mismatch, rowOK
}

// normalizeBoundary maps feature properties onto a boundary. ok is false when
// no district code is present.
func normalizeBoundary(props map[string]any) (model.DistrictBoundary, bool) {
	var b model.DistrictBoundary
	v, ok := pick(props, codeAliases)
	if !ok {
		return b, false
	}
	if b.PCode, ok = asString(v); !ok {
		return b, false
	}
	if v, ok := pick(props, nameAliases); ok {
		b.Name, _ = asString(v)
	}
	if v, ok := pick(props, areaAliases); ok {
		if f, ok := asFloat(v); ok {
			b.AreaKm2 = &f
		}
	}
	return b, true
}
