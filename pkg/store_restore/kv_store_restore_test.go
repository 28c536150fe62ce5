package store_restore

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/optional"
	"streamstate/pkg/store"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceChangelogSource[K, V any] struct {
	topic   string
	batches [][]ChangelogRecord[K, V]
	pos     int
}

func (s *sliceChangelogSource[K, V]) TopicName() string {
	return s.topic
}

func (s *sliceChangelogSource[K, V]) Consume(ctx context.Context) ([]ChangelogRecord[K, V], error) {
	if s.pos >= len(s.batches) {
		return nil, common_errors.ErrChangelogEmpty
	}
	batch := s.batches[s.pos]
	s.pos += 1
	return batch, nil
}

func TestRestoreReplaysPutsAndTombstones(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryBTreeKeyValueStoreG[int, string]("test1", store.IntegerLess[int])
	require.NoError(t, st.Init(ctx))

	src := &sliceChangelogSource[int, string]{
		topic: "test1-changelog",
		batches: [][]ChangelogRecord[int, string]{
			{
				{Key: 1, Value: optional.Some("one")},
				{Key: 2, Value: optional.Some("two")},
			},
			{
				{Key: 1, Value: optional.Some("one-v2")},
				{Key: 2, Value: optional.None[string]()},
				{Key: 3, Value: optional.Some("three")},
			},
		},
	}
	require.NoError(t, RestoreChangelogKVStateStore(ctx, NewKVStoreChangelog[int, string](st, src)))

	v, exists, err := st.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "one-v2", v)

	_, exists, err = st.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)

	v, exists, err = st.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "three", v)

	n, err := st.ApproximateNumEntries()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestRestoreEmptyChangelogIsNoop(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryBTreeKeyValueStoreG[int, string]("test1", store.IntegerLess[int])
	require.NoError(t, st.Init(ctx))

	src := &sliceChangelogSource[int, string]{topic: "test1-changelog"}
	require.NoError(t, RestoreChangelogKVStateStore(ctx, NewKVStoreChangelog[int, string](st, src)))

	n, err := st.ApproximateNumEntries()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestRestoreAllSequential(t *testing.T) {
	ctx := context.Background()
	var kvcs []*KVStoreChangelog[int, string]
	stores := make([]*store.InMemoryBTreeKeyValueStoreG[int, string], 3)
	for i := range stores {
		st := store.NewInMemoryBTreeKeyValueStoreG[int, string]("st", store.IntegerLess[int])
		require.NoError(t, st.Init(ctx))
		stores[i] = st
		kvcs = append(kvcs, NewKVStoreChangelog[int, string](st, &sliceChangelogSource[int, string]{
			topic: "st-changelog",
			batches: [][]ChangelogRecord[int, string]{
				{{Key: i, Value: optional.Some("v")}},
			},
		}))
	}
	require.NoError(t, RestoreAll(ctx, kvcs))
	for i, st := range stores {
		_, exists, err := st.Get(ctx, i)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}
