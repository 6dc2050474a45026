package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/anthillstore"
)

func newJSON(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(l), &m); err != nil {
			t.Fatalf("bad log line %q: %v", l, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRedactsKeys(t *testing.T) {
	var buf bytes.Buffer
	h := New(newJSON(&buf), Options{})
	h.BackendError("set", "anthill_servicesMetadata", errors.New("down"))

	got := lines(t, &buf)
	if len(got) != 1 {
		t.Fatalf("want 1 line, got %d", len(got))
	}
	if got[0]["msg"] != "anthillstore.backend_error" || got[0]["op"] != "set" {
		t.Fatalf("unexpected record %v", got[0])
	}
	if k, _ := got[0]["key"].(string); len(k) != 16 || strings.Contains(k, "services") {
		t.Fatalf("key not redacted: %q", k)
	}
}

func TestCustomRedactAndSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newJSON(&buf), Options{
		ChangedEvery: 3,
		Redact:       func(k string) string { return k },
	})
	for i := 0; i < 9; i++ {
		h.ValueChanged("anthill_html_sidebar_data")
	}
	h.DecodeFailed("anthill_k", anthillstore.CBOR, errors.New("eof"))

	got := lines(t, &buf)
	if len(got) != 4 {
		t.Fatalf("want 3 sampled + 1 decode line, got %d", len(got))
	}
	if got[0]["key"] != "anthill_html_sidebar_data" {
		t.Fatalf("custom redactor ignored: %v", got[0])
	}
	if got[3]["format"] != "cbor" {
		t.Fatalf("format missing: %v", got[3])
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.ValueChanged("k")
	h.DecodeFailed("k", anthillstore.JSON, errors.New("x"))
	h.BackendError("get", "k", errors.New("x"))
}
