package mapbox

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
)

// CachedGeocoder wraps a PlaceGeocoder with an LRU cache keyed by coordinates
// rounded to six decimal places.
type CachedGeocoder struct {
	inner   domain.PlaceGeocoder
	cache   *lru.Cache[string, domain.Place]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.PlaceGeocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, domain.Place](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if place, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	place, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return place, err
	}
	// Only cache non-empty results so a transient "not found" can be retried.
	if place.FormattedAddress != "" {
		c.cache.Add(key, place)
	}
	return place, nil
}

// Len reports the number of cached places.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
