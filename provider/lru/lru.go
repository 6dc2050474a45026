// Package lru is a session backend bounded by entry count. The least recently
// used entry is evicted once Size is reached. Expired entries read as misses and
// stay resident until overwritten or evicted.
package lru

import (
	"context"
	"errors"
	"time"

	hlru "github.com/hashicorp/golang-lru/v2"

	pr "github.com/unkn0wn-root/anthillstore/provider"
)

type entry struct {
	v   []byte
	exp time.Time
}

type Provider struct {
	c *hlru.Cache[string, entry]
}

var _ pr.Provider = (*Provider)(nil)

// now is an indirection so tests can move the clock.
var now = time.Now

func New(size int) (*Provider, error) {
	if size <= 0 {
		return nil, errors.New("lru: size must be positive")
	}
	c, err := hlru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	// no Remove here: a concurrent Set may already have replaced the entry
	if !e.exp.IsZero() && now().After(e.exp) {
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{v: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = now().Add(ttl)
	}
	p.c.Add(key, e)
	return nil
}

func (p *Provider) Len() int { return p.c.Len() }

func (p *Provider) Close(context.Context) error {
	p.c.Purge()
	return nil
}
