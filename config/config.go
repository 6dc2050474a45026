// Package config loads anthillstore settings from a YAML file with ANTHILL_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/anthillstore"
	"github.com/unkn0wn-root/anthillstore/provider"
)

// Backend names a concrete provider.
type Backend string

const (
	BackendSession   Backend = "session"
	BackendLRU       Backend = "lru"
	BackendRistretto Backend = "ristretto"
	BackendBigCache  Backend = "bigcache"
	BackendRedis     Backend = "redis"
	BackendSQLite    Backend = "sqlite"
	BackendS3        Backend = "s3"
)

// Kind reports whether b is session-scoped or durable.
func (b Backend) Kind() provider.Kind {
	switch b {
	case BackendRedis, BackendSQLite, BackendS3:
		return provider.Durable
	default:
		return provider.Session
	}
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type S3 struct {
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Logger names the logging library the binary writes through.
type Logger string

const (
	LoggerZap    Logger = "zap"
	LoggerLogrus Logger = "logrus"
	LoggerSlog   Logger = "slog"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	Logger     Logger `yaml:"logger"`
	// LogHooks logs store events (value changes, decode and backend failures)
	// through an async slog sink.
	LogHooks bool `yaml:"log_hooks"`

	// Kind picks a family when Backend is empty: "durable" => redis, anything else => session.
	Kind      provider.Kind `yaml:"kind"`
	Backend   Backend       `yaml:"backend"`
	KeyPrefix string        `yaml:"key_prefix"`
	Format    string        `yaml:"format"`
	TTL       time.Duration `yaml:"ttl"`

	LRUSize int `yaml:"lru_size"`

	Redis  Redis  `yaml:"redis"`
	SQLite SQLite `yaml:"sqlite"`
	S3     S3     `yaml:"s3"`

	// Sidebar refresh; 0 disables the background refresher.
	ServicesURL     string        `yaml:"services_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		LogLevel:        "info",
		Logger:          LoggerZap,
		Kind:            provider.Session,
		KeyPrefix:       anthillstore.DefaultKeyPrefix,
		Format:          string(anthillstore.DefaultFormat),
		LRUSize:         4096,
		SQLite:          SQLite{Path: "anthillstore.db"},
		RefreshInterval: 10 * time.Second,
	}
}

// Load reads path (optional; "" skips the file), applies environment overrides
// and normalizes the backend selection.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.ListenAddr = getenv("ANTHILL_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getenv("ANTHILL_LOG_LEVEL", c.LogLevel)
	c.Logger = Logger(getenv("ANTHILL_LOGGER", string(c.Logger)))
	c.LogHooks = getenvBool("ANTHILL_LOG_HOOKS", c.LogHooks)
	c.Kind = provider.Kind(getenv("ANTHILL_STORAGE_KIND", string(c.Kind)))
	c.Backend = Backend(getenv("ANTHILL_STORAGE_BACKEND", string(c.Backend)))
	c.KeyPrefix = getenv("ANTHILL_KEY_PREFIX", c.KeyPrefix)
	c.Format = getenv("ANTHILL_FORMAT", c.Format)
	c.TTL = getenvDuration("ANTHILL_TTL", c.TTL)
	c.LRUSize = getenvInt("ANTHILL_LRU_SIZE", c.LRUSize)
	c.Redis.Addr = getenv("ANTHILL_REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getenvInt("ANTHILL_REDIS_DB", c.Redis.DB)
	c.Redis.Password = getenv("ANTHILL_REDIS_PASSWORD", c.Redis.Password)
	c.SQLite.Path = getenv("ANTHILL_SQLITE_PATH", c.SQLite.Path)
	c.S3.Bucket = getenv("ANTHILL_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getenv("ANTHILL_S3_REGION", c.S3.Region)
	c.S3.Endpoint = getenv("ANTHILL_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = getenv("ANTHILL_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getenv("ANTHILL_S3_SECRET_KEY", c.S3.SecretKey)
	c.ServicesURL = getenv("ANTHILL_SERVICES_URL", c.ServicesURL)
	c.RefreshInterval = getenvDuration("ANTHILL_REFRESH_INTERVAL", c.RefreshInterval)
}

// normalize resolves the backend. Unknown or empty names fall back to session.
func (c *Config) normalize() {
	c.Logger = Logger(strings.ToLower(strings.TrimSpace(string(c.Logger))))
	if c.Logger == "" {
		c.Logger = LoggerZap
	}
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	switch c.Backend {
	case BackendSession, BackendLRU, BackendRistretto, BackendBigCache,
		BackendRedis, BackendSQLite, BackendS3:
	case "":
		if provider.Kind(strings.ToLower(string(c.Kind))) == provider.Durable {
			c.Backend = BackendRedis
		} else {
			c.Backend = BackendSession
		}
	default:
		c.Backend = BackendSession
	}
	c.Kind = c.Backend.Kind()
}

func (c Config) Validate() error {
	if _, err := anthillstore.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Logger {
	case LoggerZap, LoggerLogrus, LoggerSlog:
	default:
		return fmt.Errorf("config: unknown logger %q (want zap, logrus or slog)", c.Logger)
	}
	switch c.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("config: sqlite.path is required for the sqlite backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("config: s3.bucket is required for the s3 backend")
		}
	case BackendLRU:
		if c.LRUSize <= 0 {
			return errors.New("config: lru_size must be positive")
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
