// Package storage provides the durable key/value store behind the geofence
// repository and the activation flag. Every backend treats a missing key as
// the empty string.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a string key/value store. Load returns "" for absent keys.
type Store interface {
	Store(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, error)
	Close() error
}
