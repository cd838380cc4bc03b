package domain

import (
	"math"
	"time"
)

// Position is a WGS-84 fix. A Position handed to a success continuation always
// has finite coordinates.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite numbers.
func (p Position) Valid() bool {
	return !math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude) &&
		!math.IsInf(p.Latitude, 0) && !math.IsInf(p.Longitude, 0)
}

// CurrentPositionRequest asks for a single fix bounded by TimeoutMillis.
type CurrentPositionRequest struct {
	TimeoutMillis int64 `json:"timeout"`
}

// Timeout returns the request bound, or fallback when the caller left it unset.
func (r CurrentPositionRequest) Timeout(fallback time.Duration) time.Duration {
	if r.TimeoutMillis <= 0 {
		return fallback
	}
	return time.Duration(r.TimeoutMillis) * time.Millisecond
}
