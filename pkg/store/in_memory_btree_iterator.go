package store

import (
	"streamstate/pkg/common_errors"
	"streamstate/pkg/optional"
	"streamstate/pkg/utils/syncutils"

	"github.com/google/btree"
)

// btreeKeyValueIterator walks a copy-on-write clone of the store's tree.
// Each advance re-seeks the clone in O(log n), so the cursor stays lazy and
// holds no lock while the caller drains it.
type btreeKeyValueIterator[K, V any] struct {
	st      *InMemoryBTreeKeyValueStoreG[K, V]
	snap    *btree.BTreeG[kvPairG[K, V]]
	hi      optional.Option[K]
	id      uint64
	closed  syncutils.AtomicBool
	next    kvPairG[K, V]
	hasNext bool
}

var _ = KeyValueIterator[int, string](&btreeKeyValueIterator[int, string]{})

func newBtreeKeyValueIterator[K, V any](
	st *InMemoryBTreeKeyValueStoreG[K, V],
	snap *btree.BTreeG[kvPairG[K, V]],
	lo optional.Option[K], hi optional.Option[K],
) *btreeKeyValueIterator[K, V] {
	it := &btreeKeyValueIterator[K, V]{
		st:   st,
		snap: snap,
		hi:   hi,
		id:   st.iters.register(),
	}
	if loK, ok := lo.Take(); ok {
		it.seekGE(loK)
	} else {
		it.next, it.hasNext = snap.Min()
	}
	it.clampHi()
	return it
}

func (it *btreeKeyValueIterator[K, V]) seekGE(k K) {
	it.hasNext = false
	it.snap.AscendGreaterOrEqual(kvPairG[K, V]{key: k}, func(item kvPairG[K, V]) bool {
		it.next = item
		it.hasNext = true
		return false
	})
}

func (it *btreeKeyValueIterator[K, V]) seekGT(k K) {
	it.hasNext = false
	it.snap.AscendGreaterOrEqual(kvPairG[K, V]{key: k}, func(item kvPairG[K, V]) bool {
		if !it.st.less(k, item.key) {
			// still on the pivot key itself
			return true
		}
		it.next = item
		it.hasNext = true
		return false
	})
}

func (it *btreeKeyValueIterator[K, V]) clampHi() {
	if !it.hasNext {
		return
	}
	if hiK, ok := it.hi.Take(); ok && it.st.less(hiK, it.next.key) {
		it.hasNext = false
	}
}

func (it *btreeKeyValueIterator[K, V]) invalid() error {
	if it.closed.Get() {
		return common_errors.ErrIteratorClosed
	}
	it.st.mux.RLock()
	defer it.st.mux.RUnlock()
	return it.st.checkOpen()
}

func (it *btreeKeyValueIterator[K, V]) HasNext() bool {
	if it.invalid() != nil {
		return false
	}
	return it.hasNext
}

func (it *btreeKeyValueIterator[K, V]) Next() (KeyValueG[K, V], error) {
	if err := it.invalid(); err != nil {
		return KeyValueG[K, V]{}, err
	}
	if !it.hasNext {
		return KeyValueG[K, V]{}, common_errors.ErrIteratorExhausted
	}
	ret := KeyValueG[K, V]{Key: it.next.key, Value: it.next.val}
	it.seekGT(ret.Key)
	it.clampHi()
	return ret, nil
}

func (it *btreeKeyValueIterator[K, V]) PeekNextKey() (K, error) {
	var zero K
	if err := it.invalid(); err != nil {
		return zero, err
	}
	if !it.hasNext {
		return zero, common_errors.ErrIteratorExhausted
	}
	return it.next.key, nil
}

func (it *btreeKeyValueIterator[K, V]) Close() {
	if !it.closed.Swap(true) {
		it.st.iters.unregister(it.id)
		it.snap = nil
	}
}
