package bridge

import "fmt"

// ValidationError rejects a geofence record before it is stored.
type ValidationError struct {
	ID  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid geofence %q: %v", e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
