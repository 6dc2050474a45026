package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/anthillstore"
	"github.com/unkn0wn-root/anthillstore/config"
	asynchook "github.com/unkn0wn-root/anthillstore/hooks/async"
	logruslog "github.com/unkn0wn-root/anthillstore/log/logrus"
	slogadapter "github.com/unkn0wn-root/anthillstore/log/slog"
	zaplog "github.com/unkn0wn-root/anthillstore/log/zap"
	"github.com/unkn0wn-root/anthillstore/sloghooks"
)

const (
	hookWorkers = 1
	hookQueue   = 1024
)

// newLogger builds the configured adapter writing JSON lines to out.
// The returned func flushes buffered output.
func newLogger(cfg config.Config, out io.Writer) (anthillstore.Logger, func()) {
	switch cfg.Logger {
	case config.LoggerLogrus:
		l := logrus.New()
		l.SetOutput(out)
		l.SetFormatter(&logrus.JSONFormatter{})
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		l.SetLevel(lvl)
		return logruslog.New(l, "anthillstore"), func() {}
	case config.LoggerSlog:
		return slogadapter.Logger{L: newSlog(cfg.LogLevel, out)}, func() {}
	default:
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			lvl = zapcore.InfoLevel
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(out),
			lvl,
		)
		zl := zap.New(core)
		return zaplog.ZapLogger{L: zl}, func() { _ = zl.Sync() }
	}
}

// newHooks returns nil unless store events should be logged. The returned func
// drains queued events.
func newHooks(cfg config.Config, out io.Writer) (anthillstore.Hooks, func()) {
	if !cfg.LogHooks {
		return nil, func() {}
	}
	h := asynchook.New(sloghooks.New(newSlog(cfg.LogLevel, out), sloghooks.Options{}), hookWorkers, hookQueue)
	return h, h.Close
}

func newSlog(level string, out io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}
