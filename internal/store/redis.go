package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/lockup-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache for the
// configuration. The configuration never changes after Init, so a cached
// copy cannot go stale; everything else passes through to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, prefix string) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		prefix:  prefix,
	}
}

func (s *CachedStore) Init(ctx context.Context, cfg model.Config, info model.TokenInfo) error {
	if err := s.primary.Init(ctx, cfg, info); err != nil {
		return err
	}
	s.cacheConfig(ctx, cfg)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.primary.Update(ctx, func(tx Tx) error {
		return fn(&cachedTx{Tx: tx, store: s})
	})
}

func (s *CachedStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.primary.View(ctx, func(tx Tx) error {
		return fn(&cachedTx{Tx: tx, store: s})
	})
}

// cachedTx overrides Config with a read-through lookup.
type cachedTx struct {
	Tx
	store *CachedStore
}

func (t *cachedTx) Config(ctx context.Context) (model.Config, error) {
	// Try cache.
	data, err := t.store.rdb.Get(ctx, t.store.configKey()).Bytes()
	if err == nil {
		var c model.Config
		if json.Unmarshal(data, &c) == nil {
			return c, nil
		}
	}

	// Cache miss: read from primary.
	c, err := t.Tx.Config(ctx)
	if err != nil {
		return model.Config{}, err
	}
	t.store.cacheConfig(ctx, c)
	return c, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheConfig(ctx context.Context, c model.Config) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, s.configKey(), data, s.ttl)
	}
}

func (s *CachedStore) configKey() string { return fmt.Sprintf("%s:config", s.prefix) }
