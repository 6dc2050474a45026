// Package sqlite is a durable, single-host backend: one row per key in kv_entries.
// Uses the pure Go glebarez driver, so no CGO is required.
package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	pr "github.com/unkn0wn-root/anthillstore/provider"
)

var ErrNilDB = errors.New("sqlite provider: nil db")

// Entry is the kv_entries row.
type Entry struct {
	Key       string     `gorm:"column:storage_key;primaryKey;size:512"`
	Value     []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

type Provider struct {
	db      *gorm.DB
	closeDB bool
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Swapper  = (*Provider)(nil)
	_ pr.Purger   = (*Provider)(nil)
)

// now is an indirection so tests can move the clock.
var now = time.Now

// Open opens (or creates) the database at dsn and migrates kv_entries.
// ":memory:" gives a private in-memory database.
func Open(dsn string) (*Provider, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// one writer; in-memory databases are per-connection
		sqlDB.SetMaxOpenConns(1)
	}
	p, err := New(db)
	if err != nil {
		return nil, err
	}
	p.closeDB = true
	return p, nil
}

// New wraps an existing gorm handle; the caller keeps ownership.
func New(db *gorm.DB) (*Provider, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Provider{db: db}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.get(p.db.WithContext(ctx), key)
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.put(p.db.WithContext(ctx), key, value, ttl)
}

func (p *Provider) Swap(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	var (
		old     []byte
		existed bool
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		old, existed, err = p.get(tx, key)
		if err != nil {
			return err
		}
		return p.put(tx, key, value, ttl)
	})
	if err != nil {
		return nil, false, err
	}
	return old, existed, nil
}

// PurgeExpired deletes rows whose TTL elapsed. Reads already skip them.
func (p *Provider) PurgeExpired(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now()).
		Delete(&Entry{})
	return res.RowsAffected, res.Error
}

func (p *Provider) Close(context.Context) error {
	if !p.closeDB {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Provider) get(db *gorm.DB, key string) ([]byte, bool, error) {
	var e Entry
	err := db.Where("storage_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if e.ExpiresAt != nil && !now().Before(*e.ExpiresAt) {
		return nil, false, nil
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	return e.Value, true, nil
}

func (p *Provider) put(db *gorm.DB, key string, value []byte, ttl time.Duration) error {
	e := Entry{Key: key, Value: value, UpdatedAt: now()}
	if e.Value == nil {
		e.Value = []byte{}
	}
	if ttl > 0 {
		exp := now().Add(ttl)
		e.ExpiresAt = &exp
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
}
