package store

import (
	"context"
	"streamstate/pkg/commtypes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerdeWrappedPebbleKeepsNumericOrder(t *testing.T) {
	ctx := context.Background()
	st := NewSerdeWrappedKeyValueStoreG[uint64, string](
		NewPebbleKeyValueStore("test1", t.TempDir()),
		commtypes.Uint64SerdeG{}, commtypes.StringSerdeG{})
	require.NoError(t, st.Init(ctx))
	defer func() { require.NoError(t, st.Close()) }()

	// big-endian keys keep byte order aligned with numeric order even when
	// the values straddle a byte boundary
	for _, k := range []uint64{300, 2, 1000, 255, 256} {
		require.NoError(t, st.Put(ctx, k, "v"))
	}

	it, err := st.Range(ctx, 2, 300)
	require.NoError(t, err)
	var keys []uint64
	for it.HasNext() {
		kv, err := it.Next()
		require.NoError(t, err)
		keys = append(keys, kv.Key)
	}
	it.Close()
	assert.Equal(t, []uint64{2, 255, 256, 300}, keys)

	prior, err := st.Delete(ctx, 256)
	require.NoError(t, err)
	v, ok := prior.Take()
	require.True(t, ok)
	assert.Equal(t, "v", v)

	n, err := st.ApproximateNumEntries()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
}
