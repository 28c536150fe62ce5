package store

import (
	"context"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/optional"
	"streamstate/pkg/stats"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/xerrors"
)

// CachingKeyValueStoreG puts a bounded LRU read cache in front of another
// store. Writes go through to the wrapped store before the cache is
// updated, so the wrapped store stays authoritative and its snapshot and
// batch-visibility guarantees are unchanged; Range and All bypass the cache
// entirely.
type CachingKeyValueStoreG[K comparable, V any] struct {
	wrapped CoreKeyValueStoreG[K, V]
	cache   *lru.Cache[K, V]
	size    int
	hits    stats.AtomicCounter
	misses  stats.AtomicCounter
}

var _ = CoreKeyValueStoreG[int, string](&CachingKeyValueStoreG[int, string]{})

func NewCachingKeyValueStoreG[K comparable, V any](wrapped CoreKeyValueStoreG[K, V], cacheSize int) (*CachingKeyValueStoreG[K, V], error) {
	if cacheSize <= 0 {
		return nil, xerrors.Errorf("cache size must be positive, got %d", cacheSize)
	}
	return &CachingKeyValueStoreG[K, V]{
		wrapped: wrapped,
		size:    cacheSize,
		hits:    stats.NewAtomicCounter(wrapped.Name() + "_cache_hits"),
		misses:  stats.NewAtomicCounter(wrapped.Name() + "_cache_misses"),
	}, nil
}

func (c *CachingKeyValueStoreG[K, V]) Name() string {
	return c.wrapped.Name()
}

func (c *CachingKeyValueStoreG[K, V]) TableType() TABLE_TYPE {
	return c.wrapped.TableType()
}

func (c *CachingKeyValueStoreG[K, V]) Init(ctx context.Context) error {
	if err := c.wrapped.Init(ctx); err != nil {
		return err
	}
	cache, err := lru.New[K, V](c.size)
	if err != nil {
		return xerrors.Errorf("allocate cache: %w", err)
	}
	c.cache = cache
	return nil
}

func (c *CachingKeyValueStoreG[K, V]) Flush(ctx context.Context) error {
	return c.wrapped.Flush(ctx)
}

func (c *CachingKeyValueStoreG[K, V]) Close() error {
	if c.cache != nil {
		c.cache.Purge()
		c.cache = nil
	}
	return c.wrapped.Close()
}

func (c *CachingKeyValueStoreG[K, V]) IsOpen() bool {
	return c.wrapped.IsOpen()
}

func (c *CachingKeyValueStoreG[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.hits.Tick(1)
			return v, true, nil
		}
	}
	v, ok, err := c.wrapped.Get(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.misses.Tick(1)
	if ok && c.cache != nil {
		c.cache.Add(key, v)
	}
	return v, ok, nil
}

func (c *CachingKeyValueStoreG[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := c.wrapped.Put(ctx, key, value); err != nil {
		return err
	}
	c.cache.Add(key, value)
	return nil
}

func (c *CachingKeyValueStoreG[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (optional.Option[V], error) {
	prior, err := c.wrapped.PutIfAbsent(ctx, key, value)
	if err != nil {
		return prior, err
	}
	if v, ok := prior.Take(); ok {
		c.cache.Add(key, v)
	} else {
		c.cache.Add(key, value)
	}
	return prior, nil
}

func (c *CachingKeyValueStoreG[K, V]) PutAll(ctx context.Context, entries []*commtypes.MessageG[K, V]) error {
	if err := c.wrapped.PutAll(ctx, entries); err != nil {
		return err
	}
	for _, msg := range entries {
		c.cache.Add(msg.Key, msg.Value)
	}
	return nil
}

func (c *CachingKeyValueStoreG[K, V]) Delete(ctx context.Context, key K) (optional.Option[V], error) {
	prior, err := c.wrapped.Delete(ctx, key)
	if err != nil {
		return prior, err
	}
	c.cache.Remove(key)
	return prior, nil
}

func (c *CachingKeyValueStoreG[K, V]) ApproximateNumEntries() (uint64, error) {
	return c.wrapped.ApproximateNumEntries()
}

func (c *CachingKeyValueStoreG[K, V]) Range(ctx context.Context, from K, to K) (KeyValueIterator[K, V], error) {
	return c.wrapped.Range(ctx, from, to)
}

func (c *CachingKeyValueStoreG[K, V]) All(ctx context.Context) (KeyValueIterator[K, V], error) {
	return c.wrapped.All(ctx)
}

func (c *CachingKeyValueStoreG[K, V]) ReportCacheStats() {
	c.hits.Report()
	c.misses.Report()
}
