package datastore

import "fmt"

// Source names used in DataLoadError.
const (
	SourceBoundaries = "boundaries"
	SourceSeries     = "series"
)

// DataLoadError reports that one of the two datasets could not be fetched or
// parsed. It is fatal: no partial store is ever returned.
type DataLoadError struct {
	Source   string
	Location string
	Err      error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("datastore: load %s from %s: %v", e.Source, e.Location, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// MissingSeriesError reports a district that has a boundary but no time series.
// Callers recover by rendering a no-data state.
type MissingSeriesError struct {
	PCode string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("datastore: no time series for district %s", e.PCode)
}
