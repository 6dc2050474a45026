package backend

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/anthillstore/config"
	"github.com/unkn0wn-root/anthillstore/provider/lru"
	"github.com/unkn0wn-root/anthillstore/provider/session"
	"github.com/unkn0wn-root/anthillstore/provider/sqlite"
)

func TestOpenSessionByDefault(t *testing.T) {
	p, err := Open(context.Background(), config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*session.Provider); !ok {
		t.Fatalf("got %T, want *session.Provider", p)
	}
}

func TestOpenLRU(t *testing.T) {
	p, err := Open(context.Background(), config.Config{Backend: config.BackendLRU, LRUSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*lru.Provider); !ok {
		t.Fatalf("got %T, want *lru.Provider", p)
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	p, err := Open(ctx, config.Config{Backend: config.BackendSQLite, SQLite: config.SQLite{Path: ":memory:"}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })
	if _, ok := p.(*sqlite.Provider); !ok {
		t.Fatalf("got %T, want *sqlite.Provider", p)
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{Backend: "memcached"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpenFailureReturnsNilProvider(t *testing.T) {
	p, err := Open(context.Background(), config.Config{Backend: config.BackendLRU})
	if err == nil {
		t.Fatal("expected error for zero lru size")
	}
	if p != nil {
		t.Fatalf("got %T, want nil provider", p)
	}
}
