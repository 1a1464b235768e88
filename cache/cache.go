package cache

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/chrisvdg/moviecache/notify"
	"github.com/chrisvdg/moviecache/storage"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPrefix namespaces cache entries inside a shared store
	DefaultPrefix = "CACHE_"
	// DefaultTTL is used when no ttl is given
	DefaultTTL = 5 * time.Minute
)

// Option configures a Cache
type Option func(*Cache)

// WithPrefix overrides the namespace prefix
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithTTL overrides the default time to live
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNotifier sets where absorbed storage failures are reported
func WithNotifier(n notify.Notifier) Option {
	return func(c *Cache) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a new Cache instance on top of store
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		prefix:   DefaultPrefix,
		ttl:      DefaultTTL,
		notifier: notify.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Cache stores TTL bound entries in a key-value store.
// Storage failures never leave the cache: they are logged, reported to
// the notifier and turned into a miss or a no-op.
type Cache struct {
	store    storage.Store
	prefix   string
	ttl      time.Duration
	notifier notify.Notifier
	now      func() time.Time
}

// TTL returns the default time to live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value for key when present and fresh.
// Expired entries are removed on read.
func Get[T any](c *Cache, key string, codec Codec[T]) (T, bool) {
	var zero T
	raw, ok := c.getRaw(key)
	if !ok {
		return zero, false
	}
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	v, err := codec.Decode(raw)
	if err != nil {
		c.report("get", "Error getting cached data", err)
		return zero, false
	}

	return v, true
}

// Set stores value for key, expiring after ttl (the cache default when ttl <= 0)
func Set[T any](c *Cache, key string, value T, codec Codec[T], ttl time.Duration) {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	raw, err := codec.Encode(value)
	if err != nil {
		c.report("set", "Error setting cached data", err)
		return
	}
	c.setRaw(key, raw, ttl)
}

// Invalidate removes the entry for key
func (c *Cache) Invalidate(key string) {
	if err := c.store.RemoveKey(c.makeKey(key)); err != nil {
		c.report("delete", "Error invalidating cache", err)
	}
}

// ClearAll removes every cache entry, other keys in the store are untouched
func (c *Cache) ClearAll() {
	keys, err := c.store.AllKeys()
	if err != nil {
		c.report("clear", "Error clearing cache", err)
		return
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, c.prefix) {
			continue
		}
		if err := c.store.RemoveKey(k); err != nil {
			c.report("clear", "Error clearing cache", err)
			return
		}
	}
}

// Keys lists the keys of every stored cache entry, fresh or not
func (c *Cache) Keys() []string {
	keys, err := c.store.AllKeys()
	if err != nil {
		c.report("keys", "Error listing cache", err)
		return nil
	}
	full := c.makeKey("")
	out := []string{}
	for _, k := range keys {
		if strings.HasPrefix(k, full) {
			out = append(out, strings.TrimPrefix(k, full))
		}
	}

	return out
}

func (c *Cache) getRaw(key string) (json.RawMessage, bool) {
	k := c.makeKey(key)
	raw, ok, err := c.store.GetItem(k)
	if err != nil {
		c.report("get", "Error getting cached data", err)
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.report("get", "Error getting cached data", err)
		return nil, false
	}
	if !e.Valid(c.now()) {
		log.Debugf("cache entry %s expired at %s", key, e.Expiry)
		if err := c.store.RemoveKey(k); err != nil {
			c.report("get", "Error getting cached data", err)
		}
		return nil, false
	}
	if e.empty() {
		return nil, false
	}

	return e.Data, true
}

func (c *Cache) setRaw(key string, data json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := Entry{
		Data:   data,
		Expiry: JSONTime(c.now().Add(ttl)),
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.report("set", "Error setting cached data", err)
		return
	}
	if err := c.store.SetItem(c.makeKey(key), string(raw)); err != nil {
		c.report("set", "Error setting cached data", err)
	}
}

// makeKey namespaces key with the cache prefix
func (c *Cache) makeKey(key string) string {
	return c.prefix + "_" + key
}

func (c *Cache) report(op, message string, err error) {
	log.Errorf("cache %s error: %s", op, err)
	c.notifier.Error(message, "")
}
