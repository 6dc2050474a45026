package logrus

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/anthillstore"
)

func TestEntryFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)

	log := New(l, "store")
	log.Debug("dropped", nil)
	log.Error("backend write failed", anthillstore.Fields{"key": "anthill_k", "err": errors.New("down")})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("want one JSON line, got %q: %v", buf.String(), err)
	}
	if got["msg"] != "backend write failed" || got["level"] != "error" {
		t.Fatalf("unexpected entry %v", got)
	}
	if got["component"] != "store" || got["key"] != "anthill_k" || got["err"] != "down" {
		t.Fatalf("fields missing: %v", got)
	}
}
