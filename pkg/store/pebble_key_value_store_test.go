package store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPebbleStore(t *testing.T, dir string) *PebbleKeyValueStore {
	st := NewPebbleKeyValueStore("test1", dir)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPebblePutGetDelete(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	_, exists, err := st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))
	v, exists, err := st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, []byte("1"), v)

	prior, err := st.Delete(ctx, []byte("a"))
	require.NoError(t, err)
	pv, ok := prior.Take()
	require.True(t, ok)
	assert.Equal(t, []byte("1"), pv)

	_, exists, err = st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPebbleRejectsNilKeyAndValue(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	err := st.Put(ctx, nil, []byte("1"))
	assert.True(t, common_errors.IsInvalidArgument(err))
	err = st.Put(ctx, []byte("a"), nil)
	assert.True(t, common_errors.IsInvalidArgument(err))
	_, _, err = st.Get(ctx, nil)
	assert.True(t, common_errors.IsInvalidArgument(err))
	_, err = st.Delete(ctx, nil)
	assert.True(t, common_errors.IsInvalidArgument(err))
	_, err = st.Range(ctx, nil, []byte("z"))
	assert.True(t, common_errors.IsInvalidArgument(err))
}

func TestPebblePutAllValidatesWholeBatch(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	err := st.PutAll(ctx, []*commtypes.MessageG[[]byte, []byte]{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: nil, Value: []byte("2")},
	})
	require.True(t, common_errors.IsInvalidArgument(err))

	// nothing from the rejected batch may be visible
	_, exists, err := st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPebbleRangeInclusiveAscending(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	for _, k := range []string{"d", "b", "a", "c", "e"} {
		require.NoError(t, st.Put(ctx, []byte(k), []byte("v"+k)))
	}

	it, err := st.Range(ctx, []byte("b"), []byte("d"))
	require.NoError(t, err)
	var keys []string
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		keys = append(keys, string(kv.Key))
	}
	it.Close()
	assert.Equal(t, []string{"b", "c", "d"}, keys)

	// reversed bounds yield an empty cursor
	it, err = st.Range(ctx, []byte("d"), []byte("b"))
	require.NoError(t, err)
	assert.False(t, it.HasNext())
	it.Close()

	assert.Equal(t, 0, st.NumOpenIterators())
}

func TestPebbleIteratorSeesSnapshotAtCreation(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))
	it, err := st.All(ctx)
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, []byte("b"), []byte("2")))

	var keys []string
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		keys = append(keys, string(kv.Key))
	}
	it.Close()
	assert.Equal(t, []string{"a"}, keys)
}

func TestPebbleFlushKeepsOpenIteratorsValid(t *testing.T) {
	ctx := context.Background()
	st := openPebbleStore(t, t.TempDir())

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, st.Put(ctx, []byte(k), []byte("v"+k)))
	}
	it, err := st.All(ctx)
	require.NoError(t, err)

	kv, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), kv.Key)

	// the flush retires the batch the cursor reads from; the cursor must
	// stay valid and keep its creation-time view
	require.NoError(t, st.Flush(ctx))
	require.NoError(t, st.Put(ctx, []byte("d"), []byte("vd")))

	var rest []string
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		rest = append(rest, string(kv.Key))
	}
	it.Close()
	assert.Equal(t, []string{"b", "c"}, rest)
	assert.Equal(t, 0, st.NumOpenIterators())

	// flushing again after the cursor released the retired batch is fine
	require.NoError(t, st.Flush(ctx))
}

func TestPebbleSyncWriteCommitsEachMutation(t *testing.T) {
	ctx := context.Background()
	st := NewPebbleKeyValueStore("test1", t.TempDir())
	st.syncWrite = true
	require.NoError(t, st.Init(ctx))
	defer func() { require.NoError(t, st.Close()) }()

	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))

	// the mutation must already be in the database, not just the batch
	val, closer, err := st.db.Get(dataKey([]byte("a")))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)
	require.NoError(t, closer.Close())

	_, err = st.Delete(ctx, []byte("a"))
	require.NoError(t, err)
	_, _, err = st.db.Get(dataKey([]byte("a")))
	assert.Error(t, err)
}

func TestPebbleReopenRestoresFlushedEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st := NewPebbleKeyValueStore("test1", dir)
	require.NoError(t, st.Init(ctx))
	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, st.Put(ctx, []byte("b"), []byte("2")))
	require.NoError(t, st.Flush(ctx))
	require.NoError(t, st.Put(ctx, []byte("c"), []byte("3")))
	require.NoError(t, st.Close())

	reopened := NewPebbleKeyValueStore("test1", dir)
	require.NoError(t, reopened.Init(ctx))
	defer func() { require.NoError(t, reopened.Close()) }()

	v, exists, err := reopened.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, []byte("1"), v)

	// close performs a final flush, so "c" survived the clean shutdown too
	_, exists, err = reopened.Get(ctx, []byte("c"))
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := reopened.ApproximateNumEntries()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestPebbleCloseInvalidatesOpenIterators(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := NewPebbleKeyValueStore("test1", dir)
	require.NoError(t, st.Init(ctx))
	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))

	it, err := st.All(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	assert.False(t, it.HasNext())
	_, err = it.Next()
	assert.True(t, common_errors.IsIllegalState(err))
	it.Close()
}

func TestPebbleLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := NewPebbleKeyValueStore("test1", dir)

	err := st.Put(ctx, []byte("a"), []byte("1"))
	assert.True(t, common_errors.IsIllegalState(err))

	require.NoError(t, st.Init(ctx))
	err = st.Init(ctx)
	assert.True(t, common_errors.IsIllegalState(err))

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	_, _, err = st.Get(ctx, []byte("a"))
	assert.True(t, common_errors.IsIllegalState(err))
}
