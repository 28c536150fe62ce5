package store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/optional"
	"streamstate/pkg/utils"
	"streamstate/pkg/utils/syncutils"

	"github.com/google/btree"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

type kvPairG[K, V any] struct {
	key K
	val V
}

// InMemoryBTreeKeyValueStoreG keeps entries in a B-tree ordered by lessFunc.
// Writers take the exclusive lock, readers share it. Iterators are served
// from a copy-on-write clone taken at creation, so they see a stable
// snapshot without blocking later writers.
type InMemoryBTreeKeyValueStoreG[K, V any] struct {
	mux        syncutils.RWMutex
	store      *btree.BTreeG[kvPairG[K, V]]
	name       string
	less       LessFunc[K]
	status     StoreStatus
	numEntries uint64
	iters      *iterRegistry
}

var _ = CoreKeyValueStoreG[int, string](&InMemoryBTreeKeyValueStoreG[int, string]{})

func NewInMemoryBTreeKeyValueStoreG[K, V any](name string, lessFunc LessFunc[K]) *InMemoryBTreeKeyValueStoreG[K, V] {
	return &InMemoryBTreeKeyValueStoreG[K, V]{
		name:  name,
		less:  lessFunc,
		iters: newIterRegistry(),
	}
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Name() string {
	return st.name
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) TableType() TABLE_TYPE {
	return IN_MEM
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Init(ctx context.Context) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if st.status != CREATED {
		return xerrors.Errorf("init %s while %v: %w",
			st.name, st.status, common_errors.ErrInvalidStateTransition)
	}
	st.store = btree.NewG(2, btree.LessFunc[kvPairG[K, V]](
		func(a, b kvPairG[K, V]) bool {
			return st.less(a.key, b.key)
		}))
	st.numEntries = 0
	st.status = OPEN
	return nil
}

// Flush is a no-op beyond the state check: nothing is buffered in memory.
func (st *InMemoryBTreeKeyValueStoreG[K, V]) Flush(ctx context.Context) error {
	st.mux.RLock()
	defer st.mux.RUnlock()
	return st.checkOpen()
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Close() error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if st.status == CLOSED {
		return nil
	}
	if n := st.iters.numOpen(); n > 0 {
		log.Warn().Str("store", st.name).Int("open_iterators", n).
			Msg("closing store with unreleased iterators")
	}
	st.store = nil
	st.status = CLOSED
	return nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) IsOpen() bool {
	st.mux.RLock()
	defer st.mux.RUnlock()
	return st.status == OPEN
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) checkOpen() error {
	switch st.status {
	case OPEN:
		return nil
	case CLOSED:
		return common_errors.ErrStoreClosed
	default:
		return common_errors.ErrStoreNotOpen
	}
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	st.mux.RLock()
	defer st.mux.RUnlock()
	if err := st.checkOpen(); err != nil {
		return zero, false, err
	}
	if utils.IsNil(key) {
		return zero, false, common_errors.ErrNilKey
	}
	ret, exists := st.store.Get(kvPairG[K, V]{key: key})
	return ret.val, exists, nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Put(ctx context.Context, key K, value V) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	if err := validateKV(key, value); err != nil {
		return err
	}
	st.putLocked(key, value)
	return nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) putLocked(key K, value V) {
	_, had := st.store.ReplaceOrInsert(kvPairG[K, V]{key: key, val: value})
	if !had {
		st.numEntries += 1
	}
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (optional.Option[V], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return optional.None[V](), err
	}
	if err := validateKV(key, value); err != nil {
		return optional.None[V](), err
	}
	original, exists := st.store.Get(kvPairG[K, V]{key: key})
	if exists {
		return optional.Some(original.val), nil
	}
	st.store.ReplaceOrInsert(kvPairG[K, V]{key: key, val: value})
	st.numEntries += 1
	return optional.None[V](), nil
}

// PutAll validates the whole batch before applying any of it; a batch with a
// nil key or value is rejected without touching the store. The batch is
// applied under one writer critical section, so no reader observes a
// partially applied batch. Later entries win for duplicate keys.
func (st *InMemoryBTreeKeyValueStoreG[K, V]) PutAll(ctx context.Context, entries []*commtypes.MessageG[K, V]) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	for i, msg := range entries {
		if err := validateKV(msg.Key, msg.Value); err != nil {
			return xerrors.Errorf("entry %d: %w", i, err)
		}
	}
	for _, msg := range entries {
		st.putLocked(msg.Key, msg.Value)
	}
	return nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Delete(ctx context.Context, key K) (optional.Option[V], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return optional.None[V](), err
	}
	if utils.IsNil(key) {
		return optional.None[V](), common_errors.ErrNilKey
	}
	prev, had := st.store.Delete(kvPairG[K, V]{key: key})
	if !had {
		return optional.None[V](), nil
	}
	st.numEntries -= 1
	return optional.Some(prev.val), nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) ApproximateNumEntries() (uint64, error) {
	st.mux.RLock()
	defer st.mux.RUnlock()
	if err := st.checkOpen(); err != nil {
		return 0, err
	}
	return st.numEntries, nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) Range(ctx context.Context, from K, to K) (KeyValueIterator[K, V], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	if utils.IsNil(from) || utils.IsNil(to) {
		return nil, common_errors.ErrNilKey
	}
	// Reversed bounds yield an empty cursor, not an error.
	if st.less(to, from) {
		return emptyKeyValueIterator[K, V]{}, nil
	}
	return newBtreeKeyValueIterator(st, st.store.Clone(),
		optional.Some(from), optional.Some(to)), nil
}

func (st *InMemoryBTreeKeyValueStoreG[K, V]) All(ctx context.Context) (KeyValueIterator[K, V], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	return newBtreeKeyValueIterator(st, st.store.Clone(),
		optional.None[K](), optional.None[K]()), nil
}

// NumOpenIterators reports iterators issued by this store and not yet
// closed. Zero after a well-behaved unit of work.
func (st *InMemoryBTreeKeyValueStoreG[K, V]) NumOpenIterators() int {
	return st.iters.numOpen()
}

func validateKV[K, V any](key K, value V) error {
	if utils.IsNil(key) {
		return common_errors.ErrNilKey
	}
	if utils.IsNil(value) {
		return common_errors.ErrNilValue
	}
	return nil
}
