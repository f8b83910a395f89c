// Package kvstore provides the host key/value storage used by the embedded
// widget: values are opaque byte slices grouped by scope (one scope per
// host product installation).
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value in a scope
var ErrNotFound = errors.New("key not found")

// Store is the host key/value storage contract
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	// Scopes lists every scope holding a value for key
	Scopes(ctx context.Context, key string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
