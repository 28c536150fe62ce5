package store

import (
	"context"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/optional"
)

// CoreKeyValueStoreG is an ordered key-value state store. Keys are totally
// ordered; Range and All yield entries in ascending key order through
// iterators that must be closed by the caller.
//
// The engine runs no threads of its own. The caller guarantees a single
// writer drives Put/PutIfAbsent/PutAll/Delete while any number of readers
// may call Get/Range/All/ApproximateNumEntries concurrently.
//
// Nil keys, and nil values on writes, fail with an invalid-argument error.
// Any data operation outside the OPEN state fails with an illegal-state
// error. An absent value is a result, not an error: Get reports it through
// its bool, PutIfAbsent and Delete through optional.Option.
type CoreKeyValueStoreG[K, V any] interface {
	StateStore
	Get(ctx context.Context, key K) (V, bool, error)
	Put(ctx context.Context, key K, value V) error
	PutIfAbsent(ctx context.Context, key K, value V) (optional.Option[V], error)
	PutAll(ctx context.Context, entries []*commtypes.MessageG[K, V]) error
	Delete(ctx context.Context, key K) (optional.Option[V], error)
	Range(ctx context.Context, from K, to K) (KeyValueIterator[K, V], error)
	All(ctx context.Context) (KeyValueIterator[K, V], error)
	ApproximateNumEntries() (uint64, error)
	TableType() TABLE_TYPE
}
