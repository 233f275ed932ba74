// Package model defines the district, bucket, and time-series types shared by the
// derivation pipeline.
package model

import (
	"github.com/twpayne/go-geom"
)

// Bucket identifies one of the six canonical age buckets.
type Bucket int

// Canonical bucket order. Every [NumBuckets]int64 array is indexed by these.
const (
	PreSchool Bucket = iota
	SchoolAge
	UniversityAge
	WorkingAge
	RetirementAge
	EightyPlus
)

// NumBuckets is the number of age buckets in a YearRecord.
const NumBuckets = 6

var bucketKeys = [NumBuckets]string{
	"pre_school",
	"school_age",
	"university_age",
	"working_age",
	"retirement_age",
	"eighty_plus",
}

var bucketLabels = [NumBuckets]string{
	"0-4",
	"5-14",
	"15-24",
	"25-59",
	"60-79",
	"80+",
}

// Key returns the dataset column name for the bucket.
func (b Bucket) Key() string {
	if b < 0 || int(b) >= NumBuckets {
		return ""
	}
	return bucketKeys[b]
}

// Label returns the age range the bucket covers.
func (b Bucket) Label() string {
	if b < 0 || int(b) >= NumBuckets {
		return ""
	}
	return bucketLabels[b]
}

// Buckets returns all buckets in canonical order.
func Buckets() []Bucket {
	return []Bucket{PreSchool, SchoolAge, UniversityAge, WorkingAge, RetirementAge, EightyPlus}
}

// BucketKeys returns the dataset column names in canonical order.
func BucketKeys() []string {
	keys := make([]string, NumBuckets)
	copy(keys, bucketKeys[:])
	return keys
}

// BucketLabels returns the bucket age-range labels in canonical order.
func BucketLabels() []string {
	labels := make([]string, NumBuckets)
	copy(labels, bucketLabels[:])
	return labels
}

// YearRecord is one (district, year) observation.
type YearRecord struct {
	Year    int               `json:"year"`
	Buckets [NumBuckets]int64 `json:"buckets"`
	// Total is authoritative when the source provided it. When the source omitted
	// it, ingestion fills in the bucket sum and sets TotalDerived.
	Total        int64 `json:"total"`
	TotalDerived bool  `json:"total_derived,omitempty"`
}

// BucketSum returns the sum of the six bucket counts.
func (r YearRecord) BucketSum() int64 {
	var sum int64
	for _, v := range r.Buckets {
		sum += v
	}
	return sum
}

// Count returns the count for a single bucket.
func (r YearRecord) Count(b Bucket) int64 {
	if b < 0 || int(b) >= NumBuckets {
		return 0
	}
	return r.Buckets[b]
}

// Youth returns pre_school + school_age + university_age.
func (r YearRecord) Youth() int64 {
	return r.Buckets[PreSchool] + r.Buckets[SchoolAge] + r.Buckets[UniversityAge]
}

// Work returns the working_age count.
func (r YearRecord) Work() int64 {
	return r.Buckets[WorkingAge]
}

// Old returns retirement_age + eighty_plus.
func (r YearRecord) Old() int64 {
	return r.Buckets[RetirementAge] + r.Buckets[EightyPlus]
}

// DistrictSeries is the year-ordered record sequence for one district.
type DistrictSeries struct {
	PCode   string       `json:"pcode"`
	Records []YearRecord `json:"records"`
}

// Empty reports whether the series has no records.
func (s DistrictSeries) Empty() bool {
	return len(s.Records) == 0
}

// First returns the earliest record. The series must not be empty.
func (s DistrictSeries) First() YearRecord {
	return s.Records[0]
}

// Latest returns the chronologically latest record. The series must not be empty.
func (s DistrictSeries) Latest() YearRecord {
	return s.Records[len(s.Records)-1]
}

// Years returns the record years in series order.
func (s DistrictSeries) Years() []int {
	years := make([]int, len(s.Records))
	for i, r := range s.Records {
		years[i] = r.Year
	}
	return years
}

// Bounds is a lon/lat bounding box used for map viewport fitting.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// BoundsOf returns the bounding box of a geometry, or the zero Bounds for nil.
func BoundsOf(g geom.T) Bounds {
	if g == nil {
		return Bounds{}
	}
	b := g.Bounds()
	if b == nil || b.IsEmpty() {
		return Bounds{}
	}
	return Bounds{
		MinLon: b.Min(0),
		MinLat: b.Min(1),
		MaxLon: b.Max(0),
		MaxLat: b.Max(1),
	}
}

// DistrictBoundary is one administrative region with its geometry.
type DistrictBoundary struct {
	PCode string `json:"pcode"`
	Name  string `json:"name"`
	// AreaKm2 is nil when the source carried no area attribute.
	AreaKm2  *float64 `json:"area_km2,omitempty"`
	Geometry geom.T   `json:"-"`
	Bounds   Bounds   `json:"bounds"`
}

// Area returns the area in km² and whether it is known and positive.
func (d DistrictBoundary) Area() (float64, bool) {
	if d.AreaKm2 == nil || *d.AreaKm2 <= 0 {
		return 0, false
	}
	return *d.AreaKm2, true
}

// DisplayName returns the name, falling back to the code when the name is blank.
func (d DistrictBoundary) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.PCode
}
