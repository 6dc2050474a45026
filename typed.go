package anthillstore

import (
	"context"
	"fmt"

	c "github.com/unkn0wn-root/anthillstore/codec"
)

// Typed is a typed view over a Store. Values are serialized with Codec
// and share the Store's namespace, backend and TTL.
type Typed[V any] struct {
	s     *Store
	codec c.Codec[V]
}

// Bind returns a Typed view of s using codec.
func Bind[V any](s *Store, codec c.Codec[V]) (*Typed[V], error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if codec == nil {
		return nil, fmt.Errorf("anthillstore: codec is required")
	}
	return &Typed[V]{s: s, codec: codec}, nil
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V) error {
	k := t.s.Key(key)
	b, err := t.codec.Encode(value)
	if err != nil {
		return &OpError{Op: "set", Key: k, Err: err}
	}
	return t.s.write(ctx, "set", k, b)
}

// Get returns (v, true, nil) on hit and (zero, false, nil) on miss.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	k := t.s.Key(key)
	b, ok, err := t.s.backend.Get(ctx, k)
	if err != nil {
		t.s.hooks.BackendError("get", k, err)
		return zero, false, &OpError{Op: "get", Key: k, Err: err}
	}
	if !ok {
		return zero, false, nil
	}
	v, err := t.codec.Decode(b)
	if err != nil {
		t.s.hooks.DecodeFailed(k, "", err)
		return zero, false, &OpError{Op: "get", Key: k, Err: err}
	}
	return v, true, nil
}
