package store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/optional"
	"streamstate/pkg/utils"
	"streamstate/pkg/utils/syncutils"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
	"github.com/zhangyunhao116/skipmap"
	"golang.org/x/xerrors"
)

// InMemorySkipmapKeyValueStoreG keeps entries in a lock-free skip list.
// Point operations never block readers. The entry counter and the
// read-then-write sequences in Put/Delete lean on the single-writer
// discipline the caller guarantees.
//
// Unlike the btree store, PutAll applies entry by entry: a concurrent reader
// may observe a prefix of the batch. Use the btree store when all-or-nothing
// batch visibility matters.
type InMemorySkipmapKeyValueStoreG[K, V any] struct {
	store      *skipmap.FuncMap[K, V]
	name       string
	less       LessFunc[K]
	transition syncutils.Mutex
	status     uint32
	numEntries int64
	iters      *iterRegistry
}

var _ = CoreKeyValueStoreG[int, string](&InMemorySkipmapKeyValueStoreG[int, string]{})

func NewInMemorySkipmapKeyValueStoreG[K, V any](name string, lessFunc LessFunc[K]) *InMemorySkipmapKeyValueStoreG[K, V] {
	return &InMemorySkipmapKeyValueStoreG[K, V]{
		name:  name,
		less:  lessFunc,
		iters: newIterRegistry(),
	}
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Name() string {
	return st.name
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) TableType() TABLE_TYPE {
	return IN_MEM
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Init(ctx context.Context) error {
	st.transition.Lock()
	defer st.transition.Unlock()
	if StoreStatus(atomic.LoadUint32(&st.status)) != CREATED {
		return xerrors.Errorf("init %s while %v: %w", st.name,
			StoreStatus(atomic.LoadUint32(&st.status)), common_errors.ErrInvalidStateTransition)
	}
	st.store = skipmap.NewFunc[K, V](st.less)
	atomic.StoreInt64(&st.numEntries, 0)
	atomic.StoreUint32(&st.status, uint32(OPEN))
	return nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Flush(ctx context.Context) error {
	return st.checkOpen()
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Close() error {
	st.transition.Lock()
	defer st.transition.Unlock()
	if StoreStatus(atomic.LoadUint32(&st.status)) == CLOSED {
		return nil
	}
	if n := st.iters.numOpen(); n > 0 {
		log.Warn().Str("store", st.name).Int("open_iterators", n).
			Msg("closing store with unreleased iterators")
	}
	atomic.StoreUint32(&st.status, uint32(CLOSED))
	st.store = nil
	return nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) IsOpen() bool {
	return StoreStatus(atomic.LoadUint32(&st.status)) == OPEN
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) checkOpen() error {
	switch StoreStatus(atomic.LoadUint32(&st.status)) {
	case OPEN:
		return nil
	case CLOSED:
		return common_errors.ErrStoreClosed
	default:
		return common_errors.ErrStoreNotOpen
	}
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := st.checkOpen(); err != nil {
		return zero, false, err
	}
	if utils.IsNil(key) {
		return zero, false, common_errors.ErrNilKey
	}
	ret, exists := st.store.Load(key)
	return ret, exists, nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := st.checkOpen(); err != nil {
		return err
	}
	if err := validateKV(key, value); err != nil {
		return err
	}
	st.put(key, value)
	return nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) put(key K, value V) {
	// load-then-store is safe under the single-writer discipline
	_, exists := st.store.Load(key)
	st.store.Store(key, value)
	if !exists {
		atomic.AddInt64(&st.numEntries, 1)
	}
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (optional.Option[V], error) {
	if err := st.checkOpen(); err != nil {
		return optional.None[V](), err
	}
	if err := validateKV(key, value); err != nil {
		return optional.None[V](), err
	}
	val, loaded := st.store.LoadOrStore(key, value)
	if loaded {
		return optional.Some(val), nil
	}
	atomic.AddInt64(&st.numEntries, 1)
	return optional.None[V](), nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) PutAll(ctx context.Context, entries []*commtypes.MessageG[K, V]) error {
	if err := st.checkOpen(); err != nil {
		return err
	}
	for i, msg := range entries {
		if err := validateKV(msg.Key, msg.Value); err != nil {
			return xerrors.Errorf("entry %d: %w", i, err)
		}
	}
	for _, msg := range entries {
		st.put(msg.Key, msg.Value)
	}
	return nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Delete(ctx context.Context, key K) (optional.Option[V], error) {
	if err := st.checkOpen(); err != nil {
		return optional.None[V](), err
	}
	if utils.IsNil(key) {
		return optional.None[V](), common_errors.ErrNilKey
	}
	prev, exists := st.store.Load(key)
	if !exists {
		return optional.None[V](), nil
	}
	st.store.Delete(key)
	atomic.AddInt64(&st.numEntries, -1)
	return optional.Some(prev), nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) ApproximateNumEntries() (uint64, error) {
	if err := st.checkOpen(); err != nil {
		return 0, err
	}
	return uint64(atomic.LoadInt64(&st.numEntries)), nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) Range(ctx context.Context, from K, to K) (KeyValueIterator[K, V], error) {
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	if utils.IsNil(from) || utils.IsNil(to) {
		return nil, common_errors.ErrNilKey
	}
	if st.less(to, from) {
		return emptyKeyValueIterator[K, V]{}, nil
	}
	return newSkipmapKeyValueIterator(st, optional.Some(from), optional.Some(to)), nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) All(ctx context.Context) (KeyValueIterator[K, V], error) {
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	return newSkipmapKeyValueIterator(st, optional.None[K](), optional.None[K]()), nil
}

func (st *InMemorySkipmapKeyValueStoreG[K, V]) NumOpenIterators() int {
	return st.iters.numOpen()
}

// skipmapKeyValueIterator materializes its view of the range at creation
// time into a queue and drains it. The skip list has no clone operation, so
// snapshot visibility is bought with memory proportional to the range.
type skipmapKeyValueIterator[K, V any] struct {
	st     *InMemorySkipmapKeyValueStoreG[K, V]
	dq     *deque.Deque[KeyValueG[K, V]]
	id     uint64
	closed syncutils.AtomicBool
}

var _ = KeyValueIterator[int, string](&skipmapKeyValueIterator[int, string]{})

func newSkipmapKeyValueIterator[K, V any](
	st *InMemorySkipmapKeyValueStoreG[K, V],
	lo optional.Option[K], hi optional.Option[K],
) *skipmapKeyValueIterator[K, V] {
	dq := deque.New[KeyValueG[K, V]]()
	loK, hasLo := lo.Take()
	hiK, hasHi := hi.Take()
	st.store.Range(func(key K, value V) bool {
		if hasLo && st.less(key, loK) {
			return true
		}
		if hasHi && st.less(hiK, key) {
			return false
		}
		dq.PushBack(KeyValueG[K, V]{Key: key, Value: value})
		return true
	})
	return &skipmapKeyValueIterator[K, V]{
		st: st,
		dq: dq,
		id: st.iters.register(),
	}
}

func (it *skipmapKeyValueIterator[K, V]) invalid() error {
	if it.closed.Get() {
		return common_errors.ErrIteratorClosed
	}
	return it.st.checkOpen()
}

func (it *skipmapKeyValueIterator[K, V]) HasNext() bool {
	if it.invalid() != nil {
		return false
	}
	return it.dq.Len() > 0
}

func (it *skipmapKeyValueIterator[K, V]) Next() (KeyValueG[K, V], error) {
	if err := it.invalid(); err != nil {
		return KeyValueG[K, V]{}, err
	}
	if it.dq.Len() == 0 {
		return KeyValueG[K, V]{}, common_errors.ErrIteratorExhausted
	}
	return it.dq.PopFront(), nil
}

func (it *skipmapKeyValueIterator[K, V]) PeekNextKey() (K, error) {
	var zero K
	if err := it.invalid(); err != nil {
		return zero, err
	}
	if it.dq.Len() == 0 {
		return zero, common_errors.ErrIteratorExhausted
	}
	return it.dq.Front().Key, nil
}

func (it *skipmapKeyValueIterator[K, V]) Close() {
	if !it.closed.Swap(true) {
		it.st.iters.unregister(it.id)
		it.dq = nil
	}
}
