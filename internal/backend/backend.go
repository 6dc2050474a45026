// Package backend builds the provider named in config.
package backend

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/anthillstore/config"
	pr "github.com/unkn0wn-root/anthillstore/provider"
	"github.com/unkn0wn-root/anthillstore/provider/bigcache"
	"github.com/unkn0wn-root/anthillstore/provider/lru"
	"github.com/unkn0wn-root/anthillstore/provider/redis"
	"github.com/unkn0wn-root/anthillstore/provider/ristretto"
	"github.com/unkn0wn-root/anthillstore/provider/s3"
	"github.com/unkn0wn-root/anthillstore/provider/session"
	"github.com/unkn0wn-root/anthillstore/provider/sqlite"
)

func Open(ctx context.Context, cfg config.Config) (pr.Provider, error) {
	switch cfg.Backend {
	case config.BackendLRU:
		return opened(lru.New(cfg.LRUSize))
	case config.BackendRistretto:
		return opened(ristretto.New(ristretto.DefaultConfig()))
	case config.BackendBigCache:
		return opened(bigcache.New(bigcache.Config{LifeWindow: cfg.TTL}))
	case config.BackendRedis:
		return opened(redis.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
	case config.BackendSQLite:
		return opened(sqlite.Open(cfg.SQLite.Path))
	case config.BackendS3:
		return opened(s3.Dial(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}))
	case config.BackendSession, "":
		return session.New(), nil
	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}
}

// opened keeps a failed constructor from leaking a typed nil into the interface.
func opened[P pr.Provider](p P, err error) (pr.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
