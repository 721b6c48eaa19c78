package network

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"

	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
)

// DefaultCacheSize is the number of installed networks a Cache keeps.
const DefaultCacheSize = 8

// Cache keeps recently installed networks keyed by network hash.
// Concurrent installs of the same definition compile it once.
//
// Thread-safety: Cache is safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache

	single singleflight.Group // for cache misses

	metrics *metrics.Metrics
	install []InstallOption
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheSize sets the number of networks kept. Values below 1 keep
// the default.
func WithCacheSize(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.lru = lru.New(n)
		}
	}
}

// WithCacheMetrics records hits and misses in m. Installs performed by
// the cache report to m as well.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithInstallOptions sets the options used when the cache installs a
// network.
func WithInstallOptions(opts ...InstallOption) CacheOption {
	return func(c *Cache) {
		c.install = append(c.install, opts...)
	}
}

// NewCache creates a Cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{lru: lru.New(DefaultCacheSize)}
	for _, opt := range opts {
		opt(c)
	}
	c.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		slog.Debug("network evicted from cache", "hash", key)
	}
	if c.metrics != nil {
		c.install = append([]InstallOption{WithMetrics(c.metrics)}, c.install...)
	}
	return c
}

// Install returns the installed form of def, installing it on a miss.
func (c *Cache) Install(def *Definition) (*InstalledBusinessNetwork, error) {
	hash, err := def.Hash()
	if err != nil {
		return nil, err
	}
	if n, ok := c.get(hash); ok {
		c.metrics.CacheHit()
		slog.Debug("network cache hit", "network", def.Identifier(), "hash", hash)
		return n, nil
	}

	c.metrics.CacheMiss()
	n, err := c.single.Do(hash, func() (interface{}, error) {
		// A concurrent caller may have filled the entry between our miss
		// and acquiring the flight.
		if n, ok := c.get(hash); ok {
			return n, nil
		}
		n, err := Install(def, c.install...)
		if err != nil {
			return nil, err
		}
		c.add(hash, n)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return n.(*InstalledBusinessNetwork), nil
}

// Get returns the installed network with hash.
func (c *Cache) Get(hash string) (*InstalledBusinessNetwork, error) {
	n, ok := c.get(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, hash)
	}
	return n, nil
}

// Len returns the number of cached networks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear evicts every network.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
}

func (c *Cache) get(hash string) (*InstalledBusinessNetwork, bool) {
	c.mu.Lock()
	n, ok := c.lru.Get(hash)
	c.mu.Unlock()
	if n == nil {
		return nil, false
	}
	return n.(*InstalledBusinessNetwork), ok
}

func (c *Cache) add(hash string, n *InstalledBusinessNetwork) {
	c.mu.Lock()
	c.lru.Add(hash, n)
	c.mu.Unlock()
}
