package anthillstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/anthillstore/provider"
	"github.com/unkn0wn-root/anthillstore/provider/session"
)

// Store is a namespaced key/value cache with change detection.
// Safe for concurrent use.
type Store struct {
	prefix  string
	format  Format
	backend pr.Provider
	ttl     time.Duration
	log     Logger
	hooks   Hooks

	// serializes read+write in Changed when the backend cannot swap atomically
	changeMu sync.Mutex
}

func newStore(opts Options) (*Store, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}

	s := &Store{
		backend: opts.Backend,
		ttl:     opts.TTL,
	}

	// defaults
	s.prefix = coalesce(opts.KeyPrefix, DefaultKeyPrefix)
	s.format = coalesce(format, DefaultFormat)
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if s.backend == nil {
		s.backend = session.New()
	}
	return s, nil
}

// Key returns the namespaced storage key for key.
func (s *Store) Key(key string) string { return s.prefix + key }

// Prefix returns the namespace prefix.
func (s *Store) Prefix() string { return s.prefix }

// Format returns the default serialization format.
func (s *Store) Format() Format { return s.format }

func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

// SetItem serializes value and overwrites whatever is stored under key.
func (s *Store) SetItem(ctx context.Context, key string, value any, format ...Format) error {
	f, ser, err := s.pick(format)
	if err != nil {
		return err
	}
	k := s.Key(key)
	b, err := ser.encode(value)
	if err != nil {
		return &OpError{Op: "set", Key: k, Err: fmt.Errorf("encode %s: %w", f, err)}
	}
	return s.write(ctx, "set", k, b)
}

// GetItem returns the decoded value under key, or (nil, nil) when absent.
// JSON, msgpack and CBOR decode into generic values (map[string]any, []any, ...);
// raw returns the stored string.
func (s *Store) GetItem(ctx context.Context, key string, format ...Format) (any, error) {
	var v any
	if _, err := s.load(ctx, "get", key, &v, format); err != nil {
		return nil, err
	}
	return v, nil
}

// Load decodes the value under key into dst. found is false when the key is absent;
// dst is left untouched in that case.
func (s *Store) Load(ctx context.Context, key string, dst any, format ...Format) (bool, error) {
	return s.load(ctx, "load", key, dst, format)
}

// Changed stores current as the raw value under key and reports whether a previous
// value existed and differed from it. The first write for a key reports false.
func (s *Store) Changed(ctx context.Context, key, current string) (bool, error) {
	k := s.Key(key)
	old, existed, err := s.swap(ctx, k, []byte(current))
	if err != nil {
		s.hooks.BackendError("changed", k, err)
		return false, &OpError{Op: "changed", Key: k, Err: err}
	}
	changed := existed && string(old) != current
	if changed {
		s.hooks.ValueChanged(k)
		s.log.Debug("value changed", Fields{"key": k})
	}
	return changed, nil
}

func (s *Store) swap(ctx context.Context, k string, b []byte) ([]byte, bool, error) {
	if sw, ok := s.backend.(pr.Swapper); ok {
		return sw.Swap(ctx, k, b, s.ttl)
	}
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	old, existed, err := s.backend.Get(ctx, k)
	if err != nil {
		return nil, false, err
	}
	if err := s.backend.Set(ctx, k, b, s.ttl); err != nil {
		return nil, false, err
	}
	return old, existed, nil
}

func (s *Store) load(ctx context.Context, op, key string, dst any, format []Format) (bool, error) {
	f, ser, err := s.pick(format)
	if err != nil {
		return false, err
	}
	k := s.Key(key)
	b, ok, err := s.backend.Get(ctx, k)
	if err != nil {
		s.hooks.BackendError(op, k, err)
		return false, &OpError{Op: op, Key: k, Err: err}
	}
	if !ok {
		return false, nil
	}
	if err := ser.decode(b, dst); err != nil {
		s.hooks.DecodeFailed(k, f, err)
		s.log.Warn("decode failed", Fields{"key": k, "format": f.String(), "err": err})
		return false, &OpError{Op: op, Key: k, Err: fmt.Errorf("decode %s: %w", f, err)}
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, op, k string, b []byte) error {
	if err := s.backend.Set(ctx, k, b, s.ttl); err != nil {
		s.hooks.BackendError(op, k, err)
		s.log.Warn("backend write failed", Fields{"key": k, "err": err})
		return &OpError{Op: op, Key: k, Err: err}
	}
	return nil
}

// pick resolves the per-call format, falling back to the instance default.
func (s *Store) pick(format []Format) (Format, serializer, error) {
	f := s.format
	if len(format) > 0 && format[0] != "" {
		f = format[0]
	}
	ser, ok := serializers[f]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return f, ser, nil
}
