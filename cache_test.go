package anthillstore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/anthillstore/provider"
	"github.com/unkn0wn-root/anthillstore/provider/session"
)

// memProvider is a plain Get/Set store without Swap, so Changed takes the
// locked read+write path.
type memProvider struct {
	mu     sync.Mutex
	m      map[string][]byte
	getErr error
	setErr error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return p.setErr
	}
	p.m[key] = append([]byte(nil), value...)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) raw(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return string(v), ok
}

type recordingHooks struct {
	mu       sync.Mutex
	changed  []string
	decode   []string
	backends []string
}

func (h *recordingHooks) ValueChanged(k string) {
	h.mu.Lock()
	h.changed = append(h.changed, k)
	h.mu.Unlock()
}

func (h *recordingHooks) DecodeFailed(k string, _ Format, _ error) {
	h.mu.Lock()
	h.decode = append(h.decode, k)
	h.mu.Unlock()
}

func (h *recordingHooks) BackendError(op, k string, _ error) {
	h.mu.Lock()
	h.backends = append(h.backends, op+":"+k)
	h.mu.Unlock()
}

func newTestStore(t *testing.T, p pr.Provider, optsOpt func(*Options)) *Store {
	t.Helper()
	opts := Options{Backend: p}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// ==============================
// Construction
// ==============================

func TestDefaults(t *testing.T) {
	s := newTestStore(t, nil, nil)
	if s.Prefix() != "anthill_" {
		t.Fatalf("prefix = %q", s.Prefix())
	}
	if s.Format() != JSON {
		t.Fatalf("format = %q", s.Format())
	}
	if _, ok := s.backend.(*session.Provider); !ok {
		t.Fatalf("default backend = %T, want session", s.backend)
	}
	if got := s.Key("servicesMetadata"); got != "anthill_servicesMetadata" {
		t.Fatalf("Key = %q", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "yaml"})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

// ==============================
// Changed
// ==============================

func testChangedSequence(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	k := "html_sidebar_data"
	v1 := `<li class="navigation-service" data-name="login">`
	v2 := `<li class="navigation-service active" data-name="login">`

	if ok, err := s.Changed(ctx, k, v1); err != nil || ok {
		t.Fatalf("first Changed: ok=%v err=%v, want false", ok, err)
	}
	if ok, err := s.Changed(ctx, k, v2); err != nil || !ok {
		t.Fatalf("Changed to new value: ok=%v err=%v, want true", ok, err)
	}
	if ok, err := s.Changed(ctx, k, v2); err != nil || ok {
		t.Fatalf("Changed same value: ok=%v err=%v, want false", ok, err)
	}
	if ok, err := s.Changed(ctx, k, v1); err != nil || !ok {
		t.Fatalf("Changed back: ok=%v err=%v, want true", ok, err)
	}
}

func TestChangedWithGetSetBackend(t *testing.T) {
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)
	testChangedSequence(t, s)

	// Changed stores the raw string, not JSON.
	if got, _ := mp.raw("anthill_html_sidebar_data"); !strings.HasPrefix(got, "<li") {
		t.Fatalf("stored raw = %q", got)
	}
}

func TestChangedWithSwapBackend(t *testing.T) {
	testChangedSequence(t, newTestStore(t, session.New(), nil))
}

func TestChangedEmptyStringCountsAsPriorValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	if ok, _ := s.Changed(ctx, "k", ""); ok {
		t.Fatal("first write must report false")
	}
	if ok, _ := s.Changed(ctx, "k", "x"); !ok {
		t.Fatal(`"" -> "x" must report true`)
	}
}

func TestChangedFiresHook(t *testing.T) {
	ctx := context.Background()
	h := &recordingHooks{}
	s := newTestStore(t, newMemProvider(), func(o *Options) { o.Hooks = h })

	_, _ = s.Changed(ctx, "k", "a")
	_, _ = s.Changed(ctx, "k", "a")
	_, _ = s.Changed(ctx, "k", "b")

	if len(h.changed) != 1 || h.changed[0] != "anthill_k" {
		t.Fatalf("hook calls = %v", h.changed)
	}
}

func TestChangedBackendError(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.getErr = errors.New("boom")
	h := &recordingHooks{}
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = h })

	ok, err := s.Changed(ctx, "k", "a")
	if ok || err == nil {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "changed" || opErr.Key != "anthill_k" {
		t.Fatalf("unexpected error %#v", err)
	}
	if len(h.backends) != 1 || h.backends[0] != "changed:anthill_k" {
		t.Fatalf("backend hook = %v", h.backends)
	}
}

func TestChangedConcurrentWritersReportEachTransitionOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	if _, err := s.Changed(ctx, "k", "seed"); err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	trues := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Changed(ctx, "k", "same")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				trues++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if trues != 1 {
		t.Fatalf("seed -> same must be reported exactly once, got %d", trues)
	}
}

// ==============================
// SetItem / GetItem
// ==============================

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	cases := map[string]any{
		"list":   []any{map[string]any{"name": "login", "debug": true}, map[string]any{"name": "exec"}},
		"object": map[string]any{"uptime": 12.5, "tags": []any{"a", "b"}},
		"number": 42.0,
		"string": "hello",
		"bool":   false,
		"null":   nil,
		"empty":  []any{},
	}
	for k, v := range cases {
		if err := s.SetItem(ctx, k, v); err != nil {
			t.Fatalf("SetItem(%s): %v", k, err)
		}
		got, err := s.GetItem(ctx, k)
		if err != nil {
			t.Fatalf("GetItem(%s): %v", k, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Fatalf("%s: got %#v want %#v", k, got, v)
		}
	}
}

func TestSetItemStoresJSONText(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)

	if err := s.SetItem(ctx, "servicesMetadata", []string{}); err != nil {
		t.Fatal(err)
	}
	if got, ok := mp.raw("anthill_servicesMetadata"); !ok || got != "[]" {
		t.Fatalf("stored %q ok=%v", got, ok)
	}
}

func TestGetItemAbsentIsNil(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	for _, f := range []Format{JSON, Raw, Msgpack, CBOR} {
		v, err := s.GetItem(ctx, "missing", f)
		if err != nil || v != nil {
			t.Fatalf("%s: got v=%v err=%v, want nil,nil", f, v, err)
		}
	}
}

func TestRawFormat(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, func(o *Options) { o.Format = Raw })

	if err := s.SetItem(ctx, "a", "<b>x</b>"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetItem(ctx, "n", 15); err != nil {
		t.Fatal(err)
	}
	if got, _ := mp.raw("anthill_n"); got != "15" {
		t.Fatalf("raw coercion stored %q", got)
	}
	v, err := s.GetItem(ctx, "a")
	if err != nil || v != "<b>x</b>" {
		t.Fatalf("got %#v err=%v", v, err)
	}
}

func TestPerCallFormatOverridesDefault(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil) // json default

	if err := s.SetItem(ctx, "k", "plain", Raw); err != nil {
		t.Fatal(err)
	}
	if got, _ := mp.raw("anthill_k"); got != "plain" {
		t.Fatalf("stored %q", got)
	}
	// Reading raw-stored text as JSON surfaces the parse fault.
	if _, err := s.GetItem(ctx, "k"); err == nil {
		t.Fatal("expected JSON parse error")
	}
	if v, err := s.GetItem(ctx, "k", Raw); err != nil || v != "plain" {
		t.Fatalf("raw read: %v %v", v, err)
	}
}

func TestMalformedJSONPropagates(t *testing.T) {
	ctx := context.Background()
	h := &recordingHooks{}
	s := newTestStore(t, newMemProvider(), func(o *Options) { o.Hooks = h })

	// Changed writes raw; the same key read as JSON is a caller error.
	if _, err := s.Changed(ctx, "html", "<li>"); err != nil {
		t.Fatal(err)
	}
	_, err := s.GetItem(ctx, "html")
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "get" {
		t.Fatalf("expected *OpError from get, got %v", err)
	}
	if len(h.decode) != 1 {
		t.Fatalf("decode hook calls = %v", h.decode)
	}
}

func TestUnknownPerCallFormat(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	if err := s.SetItem(ctx, "k", 1, Format("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("SetItem: %v", err)
	}
	if _, err := s.GetItem(ctx, "k", Format("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("GetItem: %v", err)
	}
}

func TestBinaryFormatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)

	type svc struct {
		Name  string `json:"name" msgpack:"name" cbor:"name"`
		Debug bool   `json:"debug" msgpack:"debug" cbor:"debug"`
	}
	in := []svc{{Name: "login", Debug: true}, {Name: "exec"}}

	for _, f := range []Format{Msgpack, CBOR, JSON} {
		if err := s.SetItem(ctx, "svc", in, f); err != nil {
			t.Fatalf("%s SetItem: %v", f, err)
		}
		var out []svc
		found, err := s.Load(ctx, "svc", &out, f)
		if err != nil || !found {
			t.Fatalf("%s Load: found=%v err=%v", f, found, err)
		}
		if !reflect.DeepEqual(out, in) {
			t.Fatalf("%s: got %+v want %+v", f, out, in)
		}

		generic, err := s.GetItem(ctx, "svc", f)
		if err != nil {
			t.Fatalf("%s GetItem: %v", f, err)
		}
		list, ok := generic.([]any)
		if !ok || len(list) != 2 {
			t.Fatalf("%s GetItem shape: %#v", f, generic)
		}
		if m, ok := list[0].(map[string]any); !ok || m["name"] != "login" {
			t.Fatalf("%s GetItem first: %#v", f, list[0])
		}
	}
}

func TestLoadMissingLeavesDst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	dst := []string{"keep"}
	found, err := s.Load(ctx, "nope", &dst)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if len(dst) != 1 || dst[0] != "keep" {
		t.Fatalf("dst mutated: %v", dst)
	}
}

func TestSetItemBackendError(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.setErr = pr.ErrRejected
	h := &recordingHooks{}
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = h })

	err := s.SetItem(ctx, "k", 1)
	if !errors.Is(err, pr.ErrRejected) {
		t.Fatalf("expected ErrRejected in chain, got %v", err)
	}
	if len(h.backends) != 1 || h.backends[0] != "set:anthill_k" {
		t.Fatalf("backend hook = %v", h.backends)
	}
}

// ==============================
// Namespacing
// ==============================

func TestPrefixesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	shared := newMemProvider()
	a := newTestStore(t, shared, func(o *Options) { o.KeyPrefix = "admin_" })
	b := newTestStore(t, shared, func(o *Options) { o.KeyPrefix = "game_" })

	if err := a.SetItem(ctx, "k", "from-a"); err != nil {
		t.Fatal(err)
	}
	if err := b.SetItem(ctx, "k", "from-b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.GetItem(ctx, "k"); v != "from-a" {
		t.Fatalf("a sees %v", v)
	}
	if v, _ := b.GetItem(ctx, "k"); v != "from-b" {
		t.Fatalf("b sees %v", v)
	}

	if ok, _ := a.Changed(ctx, "html", "x"); ok {
		t.Fatal("a first write")
	}
	if ok, _ := b.Changed(ctx, "html", "y"); ok {
		t.Fatal("b first write must not see a's value")
	}
}

func TestTTLForwardedToBackend(t *testing.T) {
	ctx := context.Background()
	sp := session.New()
	s := newTestStore(t, sp, func(o *Options) { o.TTL = time.Millisecond })
	if err := s.SetItem(ctx, "k", 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if v, err := s.GetItem(ctx, "k"); err != nil || v != nil {
		t.Fatalf("expected expiry, got %v err=%v", v, err)
	}
}
