// Package geofence owns the durable geofence set, the activation flag, and the
// controller that pushes them to the platform.
package geofence

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/storage"
)

// Storage key for the encoded geofence list.
const geofencesKey = "key_geofences"

// Repository is the durable set of geofences, unique by identifier. The set is
// read from storage once, at construction.
type Repository struct {
	mu        sync.Mutex
	store     storage.Store
	geofences []domain.Geofence
}

// NewRepository loads the persisted set from store.
func NewRepository(ctx context.Context, store storage.Store) (*Repository, error) {
	raw, err := store.Load(ctx, geofencesKey)
	if err != nil {
		return nil, fmt.Errorf("load geofences: %w", err)
	}

	var geofences []domain.Geofence
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &geofences); err != nil {
			return nil, fmt.Errorf("decode geofences: %w", err)
		}
	}
	return &Repository{store: store, geofences: geofences}, nil
}

// Add merges gs into the set. Records equal to a stored one are skipped; a
// record whose identifier is already stored with other values replaces it in
// place. The full set is persisted on every call, and a failed write leaves
// the in-memory set untouched.
func (r *Repository) Add(ctx context.Context, gs []domain.Geofence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := slices.Clone(r.geofences)
	for _, g := range gs {
		if slices.Contains(next, g) {
			continue
		}
		if i := slices.IndexFunc(next, func(e domain.Geofence) bool { return e.ID == g.ID }); i >= 0 {
			next[i] = g
			continue
		}
		next = append(next, g)
	}
	return r.persistLocked(ctx, next)
}

// RemoveAll empties the set.
func (r *Repository) RemoveAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked(ctx, nil)
}

// List returns a copy of the current set in insertion order.
func (r *Repository) List() []domain.Geofence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.geofences)
}

// GetByID looks up a geofence by identifier.
func (r *Repository) GetByID(id string) (domain.Geofence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.geofences {
		if g.ID == id {
			return g, true
		}
	}
	return domain.Geofence{}, false
}

func (r *Repository) persistLocked(ctx context.Context, next []domain.Geofence) error {
	if next == nil {
		next = []domain.Geofence{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode geofences: %w", err)
	}
	if err := r.store.Store(ctx, geofencesKey, string(data)); err != nil {
		return fmt.Errorf("persist geofences: %w", err)
	}
	r.geofences = next
	return nil
}
