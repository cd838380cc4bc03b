package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

func TestMaskFor(t *testing.T) {
	assert.Equal(t, MaskEnter, MaskFor(domain.TransitionEnter))
	assert.Equal(t, MaskExit, MaskFor(domain.TransitionExit))
	assert.Equal(t, MaskDwell, MaskFor(domain.TransitionDwell))
	assert.Equal(t, TransitionMask(0), MaskFor(domain.Transition(0)))
	assert.Equal(t, TransitionMask(7), MaskEnter|MaskExit|MaskDwell)
}

func TestTransitionMask_Has(t *testing.T) {
	m := MaskEnter | MaskExit
	assert.True(t, m.Has(MaskEnter))
	assert.True(t, m.Has(MaskEnter|MaskExit))
	assert.False(t, m.Has(MaskDwell))
	assert.False(t, m.Has(0))
}

func TestCapabilities(t *testing.T) {
	legacy := Capabilities{APILevel: 25}
	assert.False(t, legacy.SupportsSettingsCheck())
	assert.False(t, legacy.RequiresScheduledReRegistration())

	oreo := Capabilities{APILevel: 26}
	assert.False(t, oreo.SupportsSettingsCheck())
	assert.True(t, oreo.RequiresScheduledReRegistration())

	modern := Capabilities{APILevel: 34}
	assert.True(t, modern.SupportsSettingsCheck())
	assert.True(t, modern.RequiresScheduledReRegistration())
}

func TestAPIError(t *testing.T) {
	err := fmt.Errorf("settings: %w", &APIError{StatusCode: StatusResolutionRequired, Message: "RESOLUTION_REQUIRED"})

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.ResolutionRequired())
	assert.Contains(t, err.Error(), "platform api error 6")

	assert.False(t, (&APIError{StatusCode: StatusSettingsChangeUnavailable}).ResolutionRequired())
}

func TestLocationMode_String(t *testing.T) {
	assert.Equal(t, "high_accuracy", ModeHighAccuracy.String())
	assert.Equal(t, "LocationMode(9)", LocationMode(9).String())
}
