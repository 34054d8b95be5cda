package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by CacheProvider.Get when the key is absent
var ErrCacheMiss = errors.New("cache: key not found")

// CacheProvider is the durable key-value capability used for session
// snapshots and cached provider availability
type CacheProvider interface {
	// Get retrieves a value; returns ErrCacheMiss when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; expirationSeconds <= 0 keeps it indefinitely
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)
}
