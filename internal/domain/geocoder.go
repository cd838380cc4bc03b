package domain

import "context"

// Place is the reverse geocoding result for a coordinate.
type Place struct {
	Name             string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// PlaceGeocoder resolves coordinates to place details.
type PlaceGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}
