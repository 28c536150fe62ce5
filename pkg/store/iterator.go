package store

import (
	"streamstate/pkg/common_errors"
	"sync/atomic"

	"github.com/zhangyunhao116/skipset"
)

type KeyValueG[K, V any] struct {
	Key   K
	Value V
}

// KeyValueIterator is an ascending cursor over a range of entries. It
// observes a consistent view established at creation time; mutations applied
// afterwards are invisible to it.
//
// Every iterator must be closed by the caller that obtained it. Close is
// idempotent. Next and PeekNextKey fail with an illegal-state error once the
// iterator is exhausted, closed, or its store has been closed; HasNext
// reports false in all of those cases instead of erroring.
type KeyValueIterator[K, V any] interface {
	HasNext() bool
	Next() (KeyValueG[K, V], error)
	PeekNextKey() (K, error)
	Close()
}

// iterRegistry tracks the ids of open iterators on one store, so a store
// can report leaked iterators when it closes and tests can assert none
// remain open. Lock-free so readers creating iterators never contend here.
type iterRegistry struct {
	ids    *skipset.Uint64Set
	nextID uint64
}

func newIterRegistry() *iterRegistry {
	return &iterRegistry{ids: skipset.NewUint64()}
}

func (r *iterRegistry) register() uint64 {
	id := atomic.AddUint64(&r.nextID, 1)
	r.ids.Add(id)
	return id
}

func (r *iterRegistry) unregister(id uint64) {
	r.ids.Remove(id)
}

func (r *iterRegistry) numOpen() int {
	return r.ids.Len()
}

type emptyKeyValueIterator[K, V any] struct{}

func (e emptyKeyValueIterator[K, V]) HasNext() bool {
	return false
}

func (e emptyKeyValueIterator[K, V]) Next() (KeyValueG[K, V], error) {
	return KeyValueG[K, V]{}, common_errors.ErrIteratorExhausted
}

func (e emptyKeyValueIterator[K, V]) PeekNextKey() (K, error) {
	var k K
	return k, common_errors.ErrIteratorExhausted
}

func (e emptyKeyValueIterator[K, V]) Close() {}
