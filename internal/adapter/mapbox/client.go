package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.PlaceGeocoder using the Mapbox reverse geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode resolves coordinates to the nearest place. An empty Place
// with a nil error means Mapbox had no match.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"address,poi,place"},
	}

	start := time.Now()
	place, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case place.FormattedAddress == "":
		c.logger.Debug("no place found", "lat", lat, "lon", lon)
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return place, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return domain.Place{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(mapboxResp.Features) == 0 {
		return domain.Place{}, nil
	}

	f := mapboxResp.Features[0]
	return domain.Place{
		Name:             f.Text,
		FormattedAddress: f.PlaceName,
		Confidence:       f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string  `json:"place_name"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}
