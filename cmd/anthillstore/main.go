package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/anthillstore"
	"github.com/unkn0wn-root/anthillstore/config"
	"github.com/unkn0wn-root/anthillstore/internal/backend"
	"github.com/unkn0wn-root/anthillstore/internal/httpapi"
	pr "github.com/unkn0wn-root/anthillstore/provider"
	"github.com/unkn0wn-root/anthillstore/sidebar"
)

func main() {
	configPath := flag.String("config", os.Getenv("ANTHILL_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	logger, flush := newLogger(cfg, os.Stderr)
	defer flush()
	hooks, drain := newHooks(cfg, os.Stderr)
	defer drain()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Error("open backend", anthillstore.Fields{"backend": string(cfg.Backend), "err": err})
		return err
	}
	store, err := anthillstore.New(anthillstore.Options{
		Backend:   be,
		KeyPrefix: cfg.KeyPrefix,
		Format:    anthillstore.Format(cfg.Format),
		TTL:       cfg.TTL,
		Logger:    logger,
		Hooks:     hooks,
	})
	if err != nil {
		_ = be.Close(context.Background())
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("close store", anthillstore.Fields{"err": err})
		}
	}()
	logger.Info("store ready", anthillstore.Fields{
		"backend":   string(cfg.Backend),
		"kind":      string(cfg.Kind),
		"prefix":    store.Prefix(),
		"format":    store.Format().String(),
		"logger":    string(cfg.Logger),
		"log_hooks": cfg.LogHooks,
	})

	if purger, ok := be.(pr.Purger); ok && cfg.TTL > 0 {
		go purgeExpired(ctx, purger, cfg.TTL, logger)
	}
	if cfg.ServicesURL != "" && cfg.RefreshInterval > 0 {
		go refreshSidebar(ctx, sidebar.New(store, logger), cfg, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.Router(&httpapi.Handler{Store: store, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", anthillstore.Fields{"addr": cfg.ListenAddr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", anthillstore.Fields{"err": err})
		return err
	}
	return nil
}

// purgeExpired sweeps backends that keep expired entries, once per TTL.
func purgeExpired(ctx context.Context, p pr.Purger, every time.Duration, logger anthillstore.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			logger.Warn("purge expired", anthillstore.Fields{"err": err})
			continue
		}
		if n > 0 {
			logger.Debug("purged expired entries", anthillstore.Fields{"count": n})
		}
	}
}

func refreshSidebar(ctx context.Context, reg *sidebar.Registry, cfg config.Config, logger anthillstore.Logger) {
	fetch := sidebar.GraphQLFetcher(&http.Client{Timeout: cfg.RefreshInterval}, cfg.ServicesURL)
	t := time.NewTicker(cfg.RefreshInterval)
	defer t.Stop()
	for {
		if err := reg.Refresh(ctx, fetch); err != nil {
			logger.Warn("sidebar refresh", anthillstore.Fields{"err": err})
		} else if _, changed, err := reg.Render(ctx, ""); err != nil {
			logger.Warn("sidebar render", anthillstore.Fields{"err": err})
		} else if changed {
			logger.Info("services list changed", nil)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
