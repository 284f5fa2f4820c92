package layers

import (
	"fmt"
	"time"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/store"
	"github.com/LavishGent/propkit/internal/types"
)

// Backend selects the store behind a cache layer.
type Backend int

const (
	// BackendMap keeps values in a map and returns the identical value.
	BackendMap Backend = iota
	// BackendBigCache keeps encoded values in bigcache. Suited to keyed
	// attributes with many keys; needs a codec on the descriptor.
	BackendBigCache
)

func (b Backend) String() string {
	switch b {
	case BackendMap:
		return "map"
	case BackendBigCache:
		return "bigcache"
	default:
		return "unknown"
	}
}

// Cache short-circuits gets with a stored value and keeps the store current
// on set.
type Cache struct {
	chain.Nop
	ttl             time.Duration
	invalidateOnSet bool
	backend         Backend
}

// CacheOption configures a Cache layer.
type CacheOption func(*Cache)

// WithTTL sets the record lifetime. Zero uses the owner's default, negative
// never expires.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// InvalidateOnSet drops the record on set instead of storing the set value.
func InvalidateOnSet() CacheOption {
	return func(c *Cache) { c.invalidateOnSet = true }
}

// WithBackend selects the storage backend of the cache.
func WithBackend(b Backend) CacheOption {
	return func(c *Cache) { c.backend = b }
}

// NewCache creates a cache layer backed by a map unless configured otherwise.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (*Cache) Kind() chain.Kind { return chain.KindCache }

// Validate rejects a bigcache backend without a codec.
func (c *Cache) Validate(d *chain.Descriptor) error {
	if c.backend == BackendBigCache && d.Codec() == nil {
		return fmt.Errorf("%w: bigcache backend needs a codec", types.ErrConfiguration)
	}
	return nil
}

type cacheState struct {
	store store.Store
	err   error
}

func (c *Cache) state(a *chain.Access) *cacheState {
	return a.AttrState(func() any {
		if c.backend != BackendBigCache {
			return &cacheState{store: store.NewMapStore()}
		}
		s, err := store.NewBigStore(a.Config().Cache, a.Descriptor().Codec(), a.Root().Logger())
		return &cacheState{store: s, err: err}
	}).(*cacheState)
}

func (c *Cache) ttlFor(a *chain.Access) time.Duration {
	switch {
	case c.ttl < 0:
		return 0
	case c.ttl == 0:
		return a.Config().Cache.DefaultTTL
	default:
		return c.ttl
	}
}

func (c *Cache) BeforeGet(a *chain.Access) (any, bool, error) {
	st := c.state(a)
	if st.err != nil {
		return nil, false, a.Error(types.ErrConfiguration, chain.KindCache, st.err)
	}
	key, _ := a.Key()
	v, ok, err := st.store.Load(key)
	if err != nil {
		a.Logger().Warn("discarding unreadable cache record", "error", err)
		return nil, false, nil
	}
	return v, ok, nil
}

func (c *Cache) AfterGet(a *chain.Access, v any) (any, error) {
	if a.StoppedHere() {
		return v, nil
	}
	c.save(a, v)
	return v, nil
}

func (c *Cache) AfterSet(a *chain.Access, v any) error {
	if c.invalidateOnSet {
		c.drop(a)
		return nil
	}
	c.save(a, v)
	return nil
}

// OnSetError drops the record since the underlying value is now unknown.
func (c *Cache) OnSetError(a *chain.Access, err error) error {
	c.drop(a)
	return err
}

func (c *Cache) save(a *chain.Access, v any) {
	st := c.state(a)
	if st.err != nil {
		return
	}
	key, _ := a.Key()
	if err := st.store.Save(key, v, c.ttlFor(a)); err != nil {
		a.Logger().Warn("failed to cache value", "error", err)
	}
}

func (c *Cache) drop(a *chain.Access) {
	st := c.state(a)
	if st.err != nil {
		return
	}
	key, _ := a.Key()
	_ = st.store.Delete(key)
}

func cacheStore(d *chain.Descriptor, o registry.Owner) (store.Store, error) {
	st, err := d.AttrState(o, chain.KindCache, nil)
	if err != nil || st == nil {
		return nil, err
	}
	cs := st.(*cacheState)
	return cs.store, cs.err
}

// Recall returns the cached value of key without calling the getter.
func Recall(d *chain.Descriptor, o registry.Owner, key any) (any, bool, error) {
	s, err := cacheStore(d, o)
	if err != nil || s == nil {
		return nil, false, err
	}
	return s.Load(key)
}

// CachedKeys returns the keys with a live cache record.
func CachedKeys(d *chain.Descriptor, o registry.Owner) ([]any, error) {
	s, err := cacheStore(d, o)
	if err != nil || s == nil {
		return nil, err
	}
	var out []any
	for _, k := range s.Keys() {
		if _, ok, _ := s.Load(k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// ClearCache drops every cached record of the attribute on o.
func ClearCache(d *chain.Descriptor, o registry.Owner) error {
	s, err := cacheStore(d, o)
	if err != nil || s == nil {
		return err
	}
	return s.Clear()
}

// ClearCacheKey drops the cached record of one key.
func ClearCacheKey(d *chain.Descriptor, o registry.Owner, key any) error {
	s, err := cacheStore(d, o)
	if err != nil || s == nil {
		return err
	}
	return s.Delete(key)
}
