package store

import (
	"streamstate/pkg/common_errors"
	"streamstate/pkg/utils/syncutils"

	"github.com/cockroachdb/pebble"
	"golang.org/x/xerrors"
)

// pebbleKeyValueIterator wraps a pebble iterator over the batch and the
// tree beneath it. Pebble iterators pin the view that existed when they were
// created, which gives the snapshot visibility the contract asks for.
//
// The store force-closes the underlying iterator when it shuts down
// (invalidated flag, written under the store lock); the wrapper then fails
// every subsequent call instead of touching freed resources.
type pebbleKeyValueIterator struct {
	st          *PebbleKeyValueStore
	iter        *pebble.Iterator
	batch       *pebble.Batch
	id          uint64
	closed      syncutils.AtomicBool
	invalidated bool
	hasNext     bool
}

var _ = KeyValueIterator[[]byte, []byte](&pebbleKeyValueIterator{})

func (it *pebbleKeyValueIterator) HasNext() bool {
	if it.closed.Get() {
		return false
	}
	it.st.mux.RLock()
	defer it.st.mux.RUnlock()
	if it.st.checkOpen() != nil || it.invalidated {
		return false
	}
	return it.hasNext
}

func (it *pebbleKeyValueIterator) Next() (KeyValueG[[]byte, []byte], error) {
	var zero KeyValueG[[]byte, []byte]
	if it.closed.Get() {
		return zero, common_errors.ErrIteratorClosed
	}
	it.st.mux.RLock()
	defer it.st.mux.RUnlock()
	if err := it.st.checkOpen(); err != nil {
		return zero, err
	}
	if it.invalidated {
		return zero, common_errors.ErrIteratorClosed
	}
	if !it.hasNext {
		return zero, common_errors.ErrIteratorExhausted
	}
	// strip the data prefix; copy out before the iterator moves
	rawKey := it.iter.Key()
	key := make([]byte, len(rawKey)-1)
	copy(key, rawKey[1:])
	rawVal, err := it.iter.ValueAndErr()
	if err != nil {
		return zero, xerrors.Errorf("pebble iterator value: %w", err)
	}
	val := make([]byte, len(rawVal))
	copy(val, rawVal)
	it.hasNext = it.iter.Next()
	return KeyValueG[[]byte, []byte]{Key: key, Value: val}, nil
}

func (it *pebbleKeyValueIterator) PeekNextKey() ([]byte, error) {
	if it.closed.Get() {
		return nil, common_errors.ErrIteratorClosed
	}
	it.st.mux.RLock()
	defer it.st.mux.RUnlock()
	if err := it.st.checkOpen(); err != nil {
		return nil, err
	}
	if it.invalidated {
		return nil, common_errors.ErrIteratorClosed
	}
	if !it.hasNext {
		return nil, common_errors.ErrIteratorExhausted
	}
	rawKey := it.iter.Key()
	key := make([]byte, len(rawKey)-1)
	copy(key, rawKey[1:])
	return key, nil
}

func (it *pebbleKeyValueIterator) Close() {
	if it.closed.Swap(true) {
		return
	}
	it.st.mux.Lock()
	defer it.st.mux.Unlock()
	if !it.invalidated {
		_ = it.iter.Close()
		it.st.releaseBatchLocked(it.batch)
	}
	delete(it.st.openIters, it.id)
	it.st.iters.unregister(it.id)
}
