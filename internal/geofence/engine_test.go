package geofence

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

func TestTransitionMask(t *testing.T) {
	for _, tc := range []struct {
		name string
		g    domain.Geofence
		want platform.TransitionMask
	}{
		{"none", domain.Geofence{}, 0},
		{"enter", domain.Geofence{NotifyOnEnter: true}, platform.MaskEnter},
		{"enter exit", domain.Geofence{NotifyOnEnter: true, NotifyOnExit: true}, platform.MaskEnter | platform.MaskExit},
		{"dwell", domain.Geofence{NotifyOnDwell: true}, platform.MaskDwell},
		{"all", domain.Geofence{NotifyOnEnter: true, NotifyOnExit: true, NotifyOnDwell: true}, platform.MaskEnter | platform.MaskExit | platform.MaskDwell},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TransitionMask(tc.g))
		})
	}
}

func TestEngine_AddGeofencesBuildsOneBatch(t *testing.T) {
	client := &mockGeofencingClient{}
	metrics := testMetrics()
	e := NewEngine(client, &mockDevice{background: true}, testLogger(), metrics)

	a := domain.Geofence{ID: "A", Latitude: 51.44, Longitude: -2.60, Radius: 150, NotifyOnEnter: true, NotifyOnExit: true}
	b := domain.Geofence{ID: "B", Latitude: 51.45, Longitude: -2.61, Radius: 75, LoiteringDelay: 60000, NotifyOnDwell: true}

	var succeeded bool
	e.AddGeofences([]domain.Geofence{a, b}, func() { succeeded = true }, func(err error) { t.Fatalf("unexpected failure: %v", err) })

	require.True(t, succeeded)
	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, platform.TransitionMask(0), req.InitialTrigger)
	require.Len(t, req.Geofences, 2)

	assert.Equal(t, platform.GeofenceDescriptor{
		RequestID:   "A",
		Latitude:    51.44,
		Longitude:   -2.60,
		Radius:      150,
		Transitions: platform.MaskEnter | platform.MaskExit,
		Expiration:  platform.NeverExpire,
	}, req.Geofences[0])
	assert.Equal(t, platform.MaskDwell, req.Geofences[1].Transitions)
	assert.Equal(t, int64(60000), req.Geofences[1].LoiteringDelay.Milliseconds())

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeofenceOperations.WithLabelValues("add", "success")), 0)
}

func TestEngine_AddGeofencesWithoutBackgroundPermission(t *testing.T) {
	client := &mockGeofencingClient{}
	e := NewEngine(client, &mockDevice{fine: true, background: false}, testLogger(), testMetrics())

	var got error
	e.AddGeofences([]domain.Geofence{fence("A")}, func() { t.Fatal("unexpected success") }, func(err error) { got = err })

	// Failure is reported before AddGeofences returns.
	require.ErrorIs(t, got, domain.ErrPermissionDenied)
	assert.Empty(t, client.requests, "platform must not be called")
}

func TestEngine_ForwardsPlatformFailureVerbatim(t *testing.T) {
	platformErr := &platform.APIError{StatusCode: 1000, Message: "GEOFENCE_NOT_AVAILABLE"}
	client := &mockGeofencingClient{err: platformErr}
	metrics := testMetrics()
	e := NewEngine(client, &mockDevice{background: true}, testLogger(), metrics)

	var got error
	e.AddGeofences([]domain.Geofence{fence("A")}, func() {}, func(err error) { got = err })
	assert.Same(t, platformErr, got)

	got = nil
	e.RemoveGeofences([]string{"A"}, func() {}, func(err error) { got = err })
	assert.True(t, errors.Is(got, platformErr))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeofenceOperations.WithLabelValues("remove", "error")), 0)
}

func TestEngine_RemoveGeofences(t *testing.T) {
	client := &mockGeofencingClient{}
	e := NewEngine(client, &mockDevice{}, testLogger(), testMetrics())

	var succeeded bool
	e.RemoveGeofences([]string{"1", "2"}, func() { succeeded = true }, func(error) {})

	assert.True(t, succeeded)
	assert.Equal(t, [][]string{{"1", "2"}}, client.removed)
}
