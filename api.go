package anthillstore

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/anthillstore/provider"
)

const (
	DefaultKeyPrefix = "anthill_"
	DefaultFormat    = JSON
)

// Cache is the store API consumed by page-level modules. *Store implements it;
// pass it explicitly instead of reaching for a process-wide instance.
type Cache interface {
	SetItem(ctx context.Context, key string, value any, format ...Format) error
	GetItem(ctx context.Context, key string, format ...Format) (any, error)
	Load(ctx context.Context, key string, dst any, format ...Format) (found bool, err error)
	Changed(ctx context.Context, key, current string) (bool, error)
	Key(key string) string
	// Format is the default used when a call passes no format.
	Format() Format
	Close(ctx context.Context) error
}

var _ Cache = (*Store)(nil)

// Options configure a Store. Every field is optional.
type Options struct {
	Backend   pr.Provider   // nil => session-scoped in-memory store
	KeyPrefix string        // "" => "anthill_"
	Format    Format        // "" => json
	TTL       time.Duration // forwarded to the backend on every write; 0 => no expiry

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

func New(opts Options) (*Store, error) {
	return newStore(opts)
}
