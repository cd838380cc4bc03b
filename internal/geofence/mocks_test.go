package geofence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
	"github.com/couchcryptid/geofence-service/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func fence(id string) domain.Geofence {
	return domain.Geofence{
		ID:            id,
		Latitude:      51.44,
		Longitude:     -2.60,
		Radius:        150,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	}
}

// --- mock engine ---

type mockEngine struct {
	mu      sync.Mutex
	added   [][]domain.Geofence
	removed [][]string
	addErr  error
}

func (m *mockEngine) AddGeofences(gs []domain.Geofence, onSuccess func(), onFailure func(error)) {
	m.mu.Lock()
	m.added = append(m.added, gs)
	err := m.addErr
	m.mu.Unlock()
	if err != nil {
		onFailure(err)
		return
	}
	onSuccess()
}

func (m *mockEngine) RemoveGeofences(ids []string, onSuccess func(), _ func(error)) {
	m.mu.Lock()
	m.removed = append(m.removed, ids)
	m.mu.Unlock()
	onSuccess()
}

func (m *mockEngine) addCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

// --- mock platform client ---

type mockGeofencingClient struct {
	requests []platform.GeofencingRequest
	removed  [][]string
	err      error
}

func (m *mockGeofencingClient) AddGeofences(req platform.GeofencingRequest, onSuccess func(), onFailure func(error)) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		onFailure(m.err)
		return
	}
	onSuccess()
}

func (m *mockGeofencingClient) RemoveGeofences(ids []string, onSuccess func(), onFailure func(error)) {
	m.removed = append(m.removed, ids)
	if m.err != nil {
		onFailure(m.err)
		return
	}
	onSuccess()
}

// --- mock device ---

type mockDevice struct {
	fine, background, enabled bool
}

func (m *mockDevice) HasFineOrCoarseLocationPermission() bool { return m.fine }
func (m *mockDevice) HasBackgroundLocationPermission() bool   { return m.background }
func (m *mockDevice) IsLocationEnabled() bool                 { return m.enabled }
func (m *mockDevice) LocationMode() (platform.LocationMode, error) {
	return platform.ModeHighAccuracy, nil
}

// --- mock scheduler ---

type mockScheduler struct {
	scheduled []Restarter
}

func (m *mockScheduler) ScheduleReRegistration(r Restarter) {
	m.scheduled = append(m.scheduled, r)
}

// --- failing store ---

var errDiskFull = errors.New("disk full")

// failingStore wraps a memory store and fails writes once armed.
type failingStore struct {
	*storage.Memory
	fail bool
}

func (f *failingStore) Store(ctx context.Context, key, value string) error {
	if f.fail {
		return errDiskFull
	}
	return f.Memory.Store(ctx, key, value)
}

func newController(t *testing.T, engine GeofenceEngine, sched ReRegistrationScheduler, apiLevel int) (*Controller, *Repository, *ActivationStore) {
	t.Helper()
	store := storage.NewMemory()
	repo, err := NewRepository(context.Background(), store)
	require.NoError(t, err)
	activation, err := NewActivationStore(context.Background(), store)
	require.NoError(t, err)
	c := NewController(repo, activation, engine, sched, platform.Capabilities{APILevel: apiLevel}, testLogger(), testMetrics())
	return c, repo, activation
}
