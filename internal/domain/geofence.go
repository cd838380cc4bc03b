package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transition is a geofence boundary event the platform can report.
type Transition int

const (
	TransitionEnter Transition = iota + 1
	TransitionExit
	TransitionDwell
)

func (t Transition) String() string {
	switch t {
	case TransitionEnter:
		return "ENTER"
	case TransitionExit:
		return "EXIT"
	case TransitionDwell:
		return "DWELL"
	default:
		return "UNKNOWN"
	}
}

// ParseTransition accepts the action names used in event payloads, case-insensitively.
func ParseTransition(s string) (Transition, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ENTER":
		return TransitionEnter, nil
	case "EXIT":
		return TransitionExit, nil
	case "DWELL":
		return TransitionDwell, nil
	default:
		return 0, fmt.Errorf("unknown transition %q", s)
	}
}

// Geofence is a circular region plus the transitions to report for it.
// Geofences are comparable; two records are the same geofence only when
// every field matches.
type Geofence struct {
	ID             string  `json:"identifier"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Radius         float64 `json:"radius"`          // meters
	LoiteringDelay int64   `json:"loiteringDelay"`  // milliseconds
	NotifyOnEnter  bool    `json:"notifyOnEntry"`
	NotifyOnExit   bool    `json:"notifyOnExit"`
	NotifyOnDwell  bool    `json:"notifyOnDwell"`
}

// Transitions lists the transitions the geofence reports, in enter, exit, dwell order.
func (g Geofence) Transitions() []Transition {
	var ts []Transition
	if g.NotifyOnEnter {
		ts = append(ts, TransitionEnter)
	}
	if g.NotifyOnExit {
		ts = append(ts, TransitionExit)
	}
	if g.NotifyOnDwell {
		ts = append(ts, TransitionDwell)
	}
	return ts
}

// Reports returns true if the geofence is configured to report t.
func (g Geofence) Reports(t Transition) bool {
	switch t {
	case TransitionEnter:
		return g.NotifyOnEnter
	case TransitionExit:
		return g.NotifyOnExit
	case TransitionDwell:
		return g.NotifyOnDwell
	default:
		return false
	}
}

// Loitering returns the dwell delay as a duration.
func (g Geofence) Loitering() time.Duration {
	return time.Duration(g.LoiteringDelay) * time.Millisecond
}

// Validate checks the fields the platform would reject. Geofences without any
// notify flag are valid; they are stored but never fire.
func (g Geofence) Validate() error {
	var errs []error
	if strings.TrimSpace(g.ID) == "" {
		errs = append(errs, errors.New("identifier: required"))
	}
	if g.Latitude < -90 || g.Latitude > 90 {
		errs = append(errs, errors.New("latitude: must be between -90 and 90"))
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		errs = append(errs, errors.New("longitude: must be between -180 and 180"))
	}
	if g.Radius <= 0 {
		errs = append(errs, errors.New("radius: must be positive"))
	}
	if g.LoiteringDelay < 0 {
		errs = append(errs, errors.New("loiteringDelay: must not be negative"))
	}
	return errors.Join(errs...)
}

// IDs returns the identifiers of gs in order.
func IDs(gs []Geofence) []string {
	ids := make([]string, 0, len(gs))
	for _, g := range gs {
		ids = append(ids, g.ID)
	}
	return ids
}
