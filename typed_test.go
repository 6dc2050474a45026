package anthillstore

import (
	"context"
	"errors"
	"testing"

	c "github.com/unkn0wn-root/anthillstore/codec"
)

type service struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	typed, err := Bind[[]service](s, c.JSON[[]service]{})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := typed.Get(ctx, "svc"); err != nil || ok {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}

	in := []service{{Name: "login", Title: "Login"}}
	if err := typed.Set(ctx, "svc", in); err != nil {
		t.Fatal(err)
	}
	got, ok, err := typed.Get(ctx, "svc")
	if err != nil || !ok || len(got) != 1 || got[0] != in[0] {
		t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
	}

	// Typed JSON entries are readable through the dynamic API under the same key.
	v, err := s.GetItem(ctx, "svc")
	if err != nil {
		t.Fatal(err)
	}
	if list, ok := v.([]any); !ok || len(list) != 1 {
		t.Fatalf("GetItem view: %#v", v)
	}
}

func TestTypedStringSharesChangedKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	html, _ := Bind[string](s, c.String{})

	if _, err := s.Changed(ctx, "html", "<ul></ul>"); err != nil {
		t.Fatal(err)
	}
	got, ok, err := html.Get(ctx, "html")
	if err != nil || !ok || got != "<ul></ul>" {
		t.Fatalf("got %q ok=%v err=%v", got, ok, err)
	}
}

func TestTypedLimitRejectsOversized(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	small, _ := Bind[string](s, c.Limit[string]{Inner: c.String{}, MaxDecode: 4})

	if err := s.SetItem(ctx, "big", "0123456789", Raw); err != nil {
		t.Fatal(err)
	}
	var opErr *OpError
	if _, _, err := small.Get(ctx, "big"); !errors.As(err, &opErr) {
		t.Fatalf("expected *OpError, got %v", err)
	}
}

func TestBindValidates(t *testing.T) {
	if _, err := Bind[string](nil, c.String{}); !errors.Is(err, ErrNilStore) {
		t.Fatalf("nil store: %v", err)
	}
	s := newTestStore(t, newMemProvider(), nil)
	if _, err := Bind[string](s, nil); err == nil {
		t.Fatal("nil codec must fail")
	}
}
