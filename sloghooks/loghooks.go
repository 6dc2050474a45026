// Package sloghooks logs anthillstore hook events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/anthillstore"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all. Pages poll every second, so
	// ValueChanged can be noisy.
	ChangedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	changedCtr atomic.Uint64
}

var _ anthillstore.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ValueChanged(storageKey string) {
	if h.l == nil || !sample(h.opts.ChangedEvery, &h.changedCtr) {
		return
	}
	h.l.Debug("anthillstore.value_changed",
		"key", h.redact(storageKey))
}

func (h *Hooks) DecodeFailed(storageKey string, format anthillstore.Format, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("anthillstore.decode_failed",
		"key", h.redact(storageKey),
		"format", format.String(),
		"err", err)
}

func (h *Hooks) BackendError(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("anthillstore.backend_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}
