// Package provider defines the byte store behind anthillstore.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the bytes
// previously passed to Set for the key. No framing, no re-encoding. Store.Changed
// compares those bytes directly.
//
// Two families exist:
//   - session-scoped: in-process, lost on restart (session, lru, ristretto, bigcache)
//   - durable: shared across processes and restarts (redis, sqlite, s3)
//
// Bounded session stores may evict entries; only session and the durable stores
// keep every entry until it is overwritten or its TTL elapses.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned by stores that may refuse a write under pressure.
var ErrRejected = errors.New("provider: write rejected")

// Provider is a minimal byte store. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites key unconditionally. ttl <= 0 means no expiry; stores without
	// per-entry TTL ignore it.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Swapper is implemented by stores that can write a value and return the
// previous one atomically. Store.Changed prefers it over Get+Set.
type Swapper interface {
	// Swap stores value and returns the previous value; existed is false on first write.
	Swap(ctx context.Context, key string, value []byte, ttl time.Duration) (old []byte, existed bool, err error)
}

// Purger is implemented by stores that keep expired entries until swept.
type Purger interface {
	// PurgeExpired deletes entries whose TTL elapsed and returns how many went.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Kind names a backend family.
type Kind string

const (
	Session Kind = "session"
	Durable Kind = "durable"
)
