package geofence

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/couchcryptid/geofence-service/internal/storage"
)

// Storage key for the activation flag.
const activatedKey = "key_geofences_activated"

// ActivationStore records whether geofences are meant to be live. It defaults
// to false.
type ActivationStore struct {
	mu     sync.Mutex
	store  storage.Store
	active bool
}

// NewActivationStore loads the persisted flag from store.
func NewActivationStore(ctx context.Context, store storage.Store) (*ActivationStore, error) {
	raw, err := store.Load(ctx, activatedKey)
	if err != nil {
		return nil, fmt.Errorf("load activation: %w", err)
	}

	var active bool
	if raw != "" {
		if active, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("decode activation %q: %w", raw, err)
		}
	}
	return &ActivationStore{store: store, active: active}, nil
}

// SetActive persists the flag, then updates memory.
func (a *ActivationStore) SetActive(ctx context.Context, active bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Store(ctx, activatedKey, strconv.FormatBool(active)); err != nil {
		return fmt.Errorf("persist activation: %w", err)
	}
	a.active = active
	return nil
}

// Active returns the last persisted flag.
func (a *ActivationStore) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}
