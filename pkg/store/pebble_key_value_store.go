package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/env_config"
	"streamstate/pkg/optional"
	"streamstate/pkg/utils/syncutils"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const (
	dataKeyPrefix byte = 'd'
	metaKeyPrefix byte = 'm'
)

var metaNumEntriesKey = append([]byte{metaKeyPrefix}, "num_entries"...)

// PebbleKeyValueStore is the durable backend, holding raw byte keys and
// values in a pebble LSM tree. Mutations accumulate in an indexed batch that
// reads and iterators see immediately; Flush commits the batch with a sync
// write, which is the durability point Init recovers to after a crash. The
// maintained entry counter is persisted in the same batch, so data and
// counter always recover together. With STORE_SYNC_WRITE set, every
// mutation commits as it lands instead of waiting for Flush.
//
// A committed batch stays readable until it is closed, so cursors created
// from it pin it (batchPins) and the batch is released only when the last
// of them closes. Flush therefore never invalidates an open cursor.
//
// Keys live under a one-byte prefix so store metadata never leaks into
// range scans.
type PebbleKeyValueStore struct {
	mux        syncutils.RWMutex
	db         *pebble.DB
	batch      *pebble.Batch
	name       string
	dir        string
	syncWrite  bool
	status     StoreStatus
	numEntries uint64
	iters      *iterRegistry
	openIters  map[uint64]*pebbleKeyValueIterator
	batchPins  map[*pebble.Batch]int
}

var _ = CoreKeyValueStoreG[[]byte, []byte](&PebbleKeyValueStore{})

func NewPebbleKeyValueStore(name string, dir string) *PebbleKeyValueStore {
	return &PebbleKeyValueStore{
		name:      name,
		dir:       dir,
		syncWrite: env_config.STORE_SYNC_WRITE,
		iters:     newIterRegistry(),
		openIters: make(map[uint64]*pebbleKeyValueIterator),
		batchPins: make(map[*pebble.Batch]int),
	}
}

func (st *PebbleKeyValueStore) Name() string {
	return st.name
}

func (st *PebbleKeyValueStore) TableType() TABLE_TYPE {
	return PEBBLE
}

func (st *PebbleKeyValueStore) Init(ctx context.Context) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if st.status != CREATED {
		return xerrors.Errorf("init %s while %v: %w",
			st.name, st.status, common_errors.ErrInvalidStateTransition)
	}
	db, err := pebble.Open(st.dir, &pebble.Options{})
	if err != nil {
		return xerrors.Errorf("open pebble at %s: %w", st.dir, err)
	}
	numEntries, err := loadNumEntries(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	st.db = db
	st.batch = db.NewIndexedBatch()
	st.numEntries = numEntries
	st.status = OPEN
	return nil
}

func loadNumEntries(db *pebble.DB) (uint64, error) {
	val, closer, err := db.Get(metaNumEntriesKey)
	if xerrors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Errorf("load entry counter: %w", err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, xerrors.Errorf("entry counter is %d bytes: %w",
			len(val), common_errors.ErrSnapshotCorrupted)
	}
	return binary.BigEndian.Uint64(val), nil
}

// Flush commits every buffered mutation with a synced write. Entries
// present at the last successful Flush survive a crash.
func (st *PebbleKeyValueStore) Flush(ctx context.Context) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	return st.flushLocked()
}

func (st *PebbleKeyValueStore) flushLocked() error {
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], st.numEntries)
	if err := st.batch.Set(metaNumEntriesKey, counter[:], nil); err != nil {
		return xerrors.Errorf("stage entry counter: %w", err)
	}
	if err := st.batch.Commit(pebble.Sync); err != nil {
		return xerrors.Errorf("commit batch: %w", err)
	}
	// cursors created from this batch keep it pinned; releaseBatchLocked
	// closes it once the last one is released
	if st.batchPins[st.batch] == 0 {
		_ = st.batch.Close()
	}
	st.batch = st.db.NewIndexedBatch()
	return nil
}

func (st *PebbleKeyValueStore) releaseBatchLocked(b *pebble.Batch) {
	st.batchPins[b] -= 1
	if st.batchPins[b] <= 0 {
		delete(st.batchPins, b)
		if b != st.batch {
			_ = b.Close()
		}
	}
}

// Close flushes pending mutations, force-closes any iterators the caller
// leaked, and releases the database. Idempotent.
func (st *PebbleKeyValueStore) Close() error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if st.status == CLOSED {
		return nil
	}
	if st.status == CREATED {
		st.status = CLOSED
		return nil
	}
	if n := len(st.openIters); n > 0 {
		log.Warn().Str("store", st.name).Int("open_iterators", n).
			Msg("closing store with unreleased iterators")
	}
	for id, it := range st.openIters {
		it.invalidated = true
		_ = it.iter.Close()
		st.releaseBatchLocked(it.batch)
		st.iters.unregister(id)
		delete(st.openIters, id)
	}
	flushErr := st.flushLocked()
	_ = st.batch.Close()
	closeErr := st.db.Close()
	st.db = nil
	st.batch = nil
	st.status = CLOSED
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (st *PebbleKeyValueStore) IsOpen() bool {
	st.mux.RLock()
	defer st.mux.RUnlock()
	return st.status == OPEN
}

func (st *PebbleKeyValueStore) checkOpen() error {
	switch st.status {
	case OPEN:
		return nil
	case CLOSED:
		return common_errors.ErrStoreClosed
	default:
		return common_errors.ErrStoreNotOpen
	}
}

func dataKey(key []byte) []byte {
	dkey := make([]byte, 0, len(key)+1)
	dkey = append(dkey, dataKeyPrefix)
	return append(dkey, key...)
}

// upperBoundInclusive returns the smallest key strictly greater than dkey,
// turning pebble's exclusive upper bound into an inclusive one.
func upperBoundInclusive(dkey []byte) []byte {
	return append(dkey, 0x00)
}

func (st *PebbleKeyValueStore) getLocked(dkey []byte) ([]byte, bool, error) {
	val, closer, err := st.batch.Get(dkey)
	if xerrors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Errorf("pebble get: %w", err)
	}
	ret := make([]byte, len(val))
	copy(ret, val)
	_ = closer.Close()
	return ret, true, nil
}

func (st *PebbleKeyValueStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	st.mux.RLock()
	defer st.mux.RUnlock()
	if err := st.checkOpen(); err != nil {
		return nil, false, err
	}
	if key == nil {
		return nil, false, common_errors.ErrNilKey
	}
	return st.getLocked(dataKey(key))
}

func (st *PebbleKeyValueStore) Put(ctx context.Context, key []byte, value []byte) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	if err := validateBytesKV(key, value); err != nil {
		return err
	}
	if err := st.putLocked(key, value); err != nil {
		return err
	}
	return st.maybeSyncLocked()
}

func (st *PebbleKeyValueStore) maybeSyncLocked() error {
	if !st.syncWrite {
		return nil
	}
	return st.flushLocked()
}

func (st *PebbleKeyValueStore) putLocked(key []byte, value []byte) error {
	dkey := dataKey(key)
	_, exists, err := st.getLocked(dkey)
	if err != nil {
		return err
	}
	if err := st.batch.Set(dkey, value, nil); err != nil {
		return xerrors.Errorf("pebble set: %w", err)
	}
	if !exists {
		st.numEntries += 1
	}
	return nil
}

func (st *PebbleKeyValueStore) PutIfAbsent(ctx context.Context, key []byte, value []byte) (optional.Option[[]byte], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return optional.None[[]byte](), err
	}
	if err := validateBytesKV(key, value); err != nil {
		return optional.None[[]byte](), err
	}
	dkey := dataKey(key)
	prev, exists, err := st.getLocked(dkey)
	if err != nil {
		return optional.None[[]byte](), err
	}
	if exists {
		return optional.Some(prev), nil
	}
	if err := st.batch.Set(dkey, value, nil); err != nil {
		return optional.None[[]byte](), xerrors.Errorf("pebble set: %w", err)
	}
	st.numEntries += 1
	if err := st.maybeSyncLocked(); err != nil {
		return optional.None[[]byte](), err
	}
	return optional.None[[]byte](), nil
}

// PutAll validates the whole batch before applying any of it. A storage
// failure mid-apply is reported with the index of the failing entry; earlier
// entries stay staged in the write batch.
func (st *PebbleKeyValueStore) PutAll(ctx context.Context, entries []*commtypes.MessageG[[]byte, []byte]) error {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	for i, msg := range entries {
		if err := validateBytesKV(msg.Key, msg.Value); err != nil {
			return xerrors.Errorf("entry %d: %w", i, err)
		}
	}
	for i, msg := range entries {
		if err := st.putLocked(msg.Key, msg.Value); err != nil {
			return xerrors.Errorf("entry %d: %w", i, err)
		}
	}
	return st.maybeSyncLocked()
}

func (st *PebbleKeyValueStore) Delete(ctx context.Context, key []byte) (optional.Option[[]byte], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return optional.None[[]byte](), err
	}
	if key == nil {
		return optional.None[[]byte](), common_errors.ErrNilKey
	}
	dkey := dataKey(key)
	prev, exists, err := st.getLocked(dkey)
	if err != nil {
		return optional.None[[]byte](), err
	}
	if !exists {
		return optional.None[[]byte](), nil
	}
	if err := st.batch.Delete(dkey, nil); err != nil {
		return optional.None[[]byte](), xerrors.Errorf("pebble delete: %w", err)
	}
	st.numEntries -= 1
	if err := st.maybeSyncLocked(); err != nil {
		return optional.None[[]byte](), err
	}
	return optional.Some(prev), nil
}

func (st *PebbleKeyValueStore) ApproximateNumEntries() (uint64, error) {
	st.mux.RLock()
	defer st.mux.RUnlock()
	if err := st.checkOpen(); err != nil {
		return 0, err
	}
	return st.numEntries, nil
}

func (st *PebbleKeyValueStore) Range(ctx context.Context, from []byte, to []byte) (KeyValueIterator[[]byte, []byte], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, common_errors.ErrNilKey
	}
	if bytes.Compare(from, to) > 0 {
		return emptyKeyValueIterator[[]byte, []byte]{}, nil
	}
	return st.newIterLocked(dataKey(from), upperBoundInclusive(dataKey(to)))
}

func (st *PebbleKeyValueStore) All(ctx context.Context) (KeyValueIterator[[]byte, []byte], error) {
	st.mux.Lock()
	defer st.mux.Unlock()
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	return st.newIterLocked([]byte{dataKeyPrefix}, []byte{dataKeyPrefix + 1})
}

func (st *PebbleKeyValueStore) newIterLocked(lower, upper []byte) (KeyValueIterator[[]byte, []byte], error) {
	iter, err := st.batch.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, xerrors.Errorf("pebble iterator: %w", err)
	}
	it := &pebbleKeyValueIterator{
		st:      st,
		iter:    iter,
		batch:   st.batch,
		id:      st.iters.register(),
		hasNext: iter.First(),
	}
	st.batchPins[st.batch] += 1
	st.openIters[it.id] = it
	return it, nil
}

func (st *PebbleKeyValueStore) NumOpenIterators() int {
	return st.iters.numOpen()
}

func validateBytesKV(key []byte, value []byte) error {
	if key == nil {
		return common_errors.ErrNilKey
	}
	if value == nil {
		return common_errors.ErrNilValue
	}
	return nil
}
