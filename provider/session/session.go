// Package session is the default, session-scoped backend: an exact in-process map.
// Entries live until overwritten, expired or the process exits.
package session

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/anthillstore/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	mu sync.RWMutex
	m  map[string]entry
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Swapper  = (*Provider)(nil)
	_ pr.Purger   = (*Provider)(nil)
)

// now is an indirection so tests can move the clock.
var now = time.Now

func New() *Provider {
	return &Provider{m: make(map[string]entry)}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	t := now()
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(t) {
		p.mu.Lock()
		// re-check: a Set may have landed between the two locks
		if cur, ok := p.m[key]; ok && cur.expired(t) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return clone(e.v), true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	p.m[key] = newEntry(value, ttl)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Swap(_ context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	old, ok := p.m[key]
	p.m[key] = newEntry(value, ttl)
	if !ok || old.expired(now()) {
		return nil, false, nil
	}
	return old.v, true, nil
}

// PurgeExpired drops every entry whose TTL elapsed. Get already skips them.
func (p *Provider) PurgeExpired(context.Context) (int64, error) {
	t := now()
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for k, e := range p.m {
		if e.expired(t) {
			delete(p.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live entries.
func (p *Provider) Len() int {
	t := now()
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.m {
		if !e.expired(t) {
			n++
		}
	}
	return n
}

// Close drops all entries; the session ends with the store.
func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]entry)
	p.mu.Unlock()
	return nil
}

func newEntry(v []byte, ttl time.Duration) entry {
	e := entry{v: clone(v)}
	if ttl > 0 {
		e.exp = now().Add(ttl)
	}
	return e
}

func (e entry) expired(t time.Time) bool {
	return !e.exp.IsZero() && t.After(e.exp)
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append([]byte(nil), b...)
}
