package config

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ValueStore persists runtime configuration values
type ValueStore interface {
	ConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfigValue(ctx context.Context, key, value string) error
	ConfigValues(ctx context.Context) (map[string]string, error)
}

// Cache lifetimes for runtime values
const (
	DefaultCacheTTL      = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
)

// Manager reads runtime configuration with a short lived cache in front of
// the store. Values written through Set are visible immediately.
type Manager struct {
	store ValueStore
	cache *cache.Cache
	log   *zap.SugaredLogger
}

// cached records whether a key was set, so unset keys are cached too.
type cached struct {
	value string
	ok    bool
}

// NewManager creates a manager over store
func NewManager(store ValueStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Manager{
		store: store,
		cache: cache.New(ttl, cacheCleanupInterval),
		log:   zap.S().Named("config"),
	}
}

// Get returns the value of key, or def when the key is unset or unreadable.
func (m *Manager) Get(ctx context.Context, key, def string) string {
	if hit, found := m.cache.Get(key); found {
		c := hit.(cached)
		if !c.ok {
			return def
		}
		return c.value
	}

	value, ok, err := m.store.ConfigValue(ctx, key)
	if err != nil {
		m.log.Warnw("failed to read config value", "key", key, "error", err)
		return def
	}
	m.cache.SetDefault(key, cached{value: value, ok: ok})
	if !ok {
		return def
	}
	return value
}

// Set stores value under key
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if err := m.store.SetConfigValue(ctx, key, value); err != nil {
		return err
	}
	m.cache.SetDefault(key, cached{value: value, ok: true})
	return nil
}

// All returns every stored value, bypassing the cache
func (m *Manager) All(ctx context.Context) (map[string]string, error) {
	return m.store.ConfigValues(ctx)
}

// Invalidate drops every cached value
func (m *Manager) Invalidate() {
	m.cache.Flush()
}
