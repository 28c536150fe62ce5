package snapshot_store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/store"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

func snapshotSourceStore(t *testing.T) *store.InMemoryBTreeKeyValueStoreG[uint64, string] {
	ctx := context.Background()
	st := store.NewInMemoryBTreeKeyValueStoreG[uint64, string]("src", store.IntegerLess[uint64])
	require.NoError(t, st.Init(ctx))
	require.NoError(t, st.Put(ctx, 3, "three"))
	require.NoError(t, st.Put(ctx, 1, "one"))
	require.NoError(t, st.Put(ctx, 2, "two"))
	return st
}

func TestSnapshotRoundtrip(t *testing.T) {
	ctx := context.Background()
	src := snapshotSourceStore(t)

	blob, err := EncodeKVSnapshot[uint64, string](ctx, src, commtypes.Uint64SerdeG{}, commtypes.StringSerdeG{})
	require.NoError(t, err)

	entries, err := DecodeKVSnapshot(blob)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	dst := store.NewInMemoryBTreeKeyValueStoreG[uint64, string]("dst", store.IntegerLess[uint64])
	require.NoError(t, dst.Init(ctx))
	require.NoError(t, RestoreKVSnapshot[uint64, string](ctx, dst, entries, commtypes.Uint64SerdeG{}, commtypes.StringSerdeG{}))

	for k, expected := range map[uint64]string{1: "one", 2: "two", 3: "three"} {
		v, exists, err := dst.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, exists)
		assert.Equal(t, expected, v)
	}
	n, err := dst.ApproximateNumEntries()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestSnapshotEmptyStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryBTreeKeyValueStoreG[uint64, string]("src", store.IntegerLess[uint64])
	require.NoError(t, st.Init(ctx))

	blob, err := EncodeKVSnapshot[uint64, string](ctx, st, commtypes.Uint64SerdeG{}, commtypes.StringSerdeG{})
	require.NoError(t, err)
	entries, err := DecodeKVSnapshot(blob)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshotDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	src := snapshotSourceStore(t)
	blob, err := EncodeKVSnapshot[uint64, string](ctx, src, commtypes.Uint64SerdeG{}, commtypes.StringSerdeG{})
	require.NoError(t, err)

	// flip one byte in the middle of the payload
	blob[len(blob)/2] ^= 0xff
	_, err = DecodeKVSnapshot(blob)
	assert.Error(t, err)

	// truncated blob must not decode either
	_, err = DecodeKVSnapshot(blob[:len(blob)-4])
	assert.Error(t, err)

	_, err = DecodeKVSnapshot(nil)
	assert.ErrorIs(t, err, common_errors.ErrSnapshotTruncated)
}

func TestSnapshotRejectsForgedEntryCount(t *testing.T) {
	// an entry count far beyond what the blob could hold must fail, not
	// drive the allocation
	blob := msgp.AppendUint64(nil, 1<<60)
	blob = append(blob, 0x00, 0x00)
	_, err := DecodeKVSnapshot(blob)
	assert.ErrorIs(t, err, common_errors.ErrSnapshotCorrupted)
}
