package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

// Entries carry their own expiry, so bigcache's window only has to outlive them.
const lifeWindow = 100 * 365 * 24 * time.Hour

var errClosed = errors.New("store: closed")

// BigStore keeps encoded values in a BigCache instance. It suits key-addressable
// attributes with many keys: memory is bounded by the cache configuration and
// loads return decoded copies.
type BigStore struct {
	cache  *bigcache.BigCache
	codec  types.Codec
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]any

	evictions atomic.Int64
	closed    atomic.Bool
}

// NewBigStore creates a BigCache-backed store. The cleanup goroutine is never
// started, so an unreachable store needs no explicit Close.
func NewBigStore(cfg config.CacheConfig, codec types.Codec, logger *slog.Logger) (*BigStore, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: bigcache store requires a codec", types.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &BigStore{
		codec:  codec,
		logger: logger.With("component", "bigcache-store"),
		now:    time.Now,
		keys:   make(map[string]any),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         lifeWindow,
		CleanWindow:        0,
		MaxEntriesInWindow: cfg.MaxEntriesInWindow,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				s.evictions.Add(1)
				s.forget(key)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	s.cache = bc
	return s, nil
}

// Load returns the value stored under key.
func (s *BigStore) Load(key any) (any, bool, error) {
	if s.closed.Load() {
		return nil, false, errClosed
	}

	k := encodeKey(key)
	data, err := s.cache.Get(k)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if len(data) < 8 {
		return nil, false, fmt.Errorf("store: corrupt entry for %s", k)
	}
	expires := int64(binary.BigEndian.Uint64(data[:8]))
	if expires != 0 && s.now().UnixNano() >= expires {
		_ = s.Delete(key)
		return nil, false, nil
	}

	v, err := s.codec.Unmarshal(data[8:])
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Save encodes and stores a value. A zero ttl sets no per-entry expiry.
func (s *BigStore) Save(key any, value any, ttl time.Duration) error {
	if s.closed.Load() {
		return errClosed
	}

	payload, err := s.codec.Marshal(value)
	if err != nil {
		return err
	}

	var expires int64
	if ttl > 0 {
		expires = s.now().Add(ttl).UnixNano()
	}
	data := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(data[:8], uint64(expires))
	copy(data[8:], payload)

	k := encodeKey(key)
	if err := s.cache.Set(k, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.keys[k] = key
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *BigStore) Delete(key any) error {
	if s.closed.Load() {
		return errClosed
	}

	k := encodeKey(key)
	if err := s.cache.Delete(k); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	s.forget(k)
	return nil
}

// Clear removes all entries.
func (s *BigStore) Clear() error {
	if s.closed.Load() {
		return errClosed
	}

	if err := s.cache.Reset(); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = make(map[string]any)
	s.mu.Unlock()
	return nil
}

// Keys returns the keys currently stored.
func (s *BigStore) Keys() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]any, 0, len(s.keys))
	for _, k := range s.keys {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries.
func (s *BigStore) Len() int {
	return s.cache.Len()
}

// Evictions returns the number of entries dropped for lack of space.
func (s *BigStore) Evictions() int64 {
	return s.evictions.Load()
}

// Close releases the underlying cache.
func (s *BigStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.cache.Close()
}

func (s *BigStore) forget(k string) {
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

func encodeKey(key any) string {
	return fmt.Sprintf("%T:%v", key, key)
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var _ Store = (*BigStore)(nil)
