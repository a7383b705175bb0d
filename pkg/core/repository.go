package core

import "context"

// Storage defines the contract for a flat key/value slot storage.
// Adhering to this interface allows stores to be independent of the
// underlying mechanism (filesystem, SQLite, memory).
type Storage interface {
	// Get returns the raw content of a slot and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites a slot, creating it if needed.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a slot. Removing a missing slot is not an error.
	Remove(ctx context.Context, key string) error

	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error
}

// Enumerable is implemented by storages that can list their keys.
type Enumerable interface {
	// Keys returns the keys matching a doublestar pattern ("" or "*" for all).
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Watchable is implemented by storages that report changes made by other handles.
// Changes made through the watching handle itself are not reported.
type Watchable interface {
	// Watch streams change events for keys matching pattern until ctx is done.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}
