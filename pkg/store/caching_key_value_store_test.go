package store

import (
	"context"
	"testing"
)

func openCachingStore(t testing.TB) kvStoreUnderTest {
	inner := NewInMemoryBTreeKeyValueStoreG[int, string]("test1", IntegerLess[int])
	st, err := NewCachingKeyValueStoreG[int, string](inner, 16)
	if err != nil {
		t.Fatal(err.Error())
	}
	if err := st.Init(context.Background()); err != nil {
		t.Fatal(err.Error())
	}
	return cachingUnderTest{st, inner}
}

// cachingUnderTest exposes the wrapped store's iterator accounting so the
// shared cases can check for leaks through the caching layer.
type cachingUnderTest struct {
	*CachingKeyValueStoreG[int, string]
	inner *InMemoryBTreeKeyValueStoreG[int, string]
}

func (c cachingUnderTest) NumOpenIterators() int {
	return c.inner.NumOpenIterators()
}

func TestCachingPutGetRange(t *testing.T) {
	PutGetRange(context.Background(), openCachingStore(t), t)
}

func TestCachingShouldNotIncludeDeletedFromRangeResult(t *testing.T) {
	ShouldNotIncludeDeletedFromRangeResult(context.Background(), openCachingStore(t), t)
}

func TestCachingPutIfAbsentKeepsExistingValue(t *testing.T) {
	PutIfAbsentKeepsExistingValue(context.Background(), openCachingStore(t), t)
}

func TestCachingDeleteReturnsPriorValue(t *testing.T) {
	DeleteReturnsPriorValue(context.Background(), openCachingStore(t), t)
}

func TestCachingApproximateNumEntriesTracksMutations(t *testing.T) {
	ApproximateNumEntriesTracksMutations(context.Background(), openCachingStore(t), t)
}

func TestCachingPutAllLastWriteWinsPerKey(t *testing.T) {
	PutAllLastWriteWinsPerKey(context.Background(), openCachingStore(t), t)
}

func TestCachingGetAfterDeleteMissesCache(t *testing.T) {
	ctx := context.Background()
	st := openCachingStore(t)
	checkErr(st.Put(ctx, 1, "a"), t)
	checkGet(ctx, st, t, 1, "a")
	_, err := st.Delete(ctx, 1)
	checkErr(err, t)
	checkAbsent(ctx, st, t, 1)
}

func TestCachingEvictionFallsBackToWrappedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewInMemoryBTreeKeyValueStoreG[int, string]("test1", IntegerLess[int])
	cached, err := NewCachingKeyValueStoreG[int, string](inner, 2)
	checkErr(err, t)
	st := cachingUnderTest{cached, inner}
	checkErr(st.Init(ctx), t)
	checkErr(st.Put(ctx, 1, "a"), t)
	checkErr(st.Put(ctx, 2, "b"), t)
	checkErr(st.Put(ctx, 3, "c"), t)
	// key 1 was evicted from the cache but must still come from the store
	checkGet(ctx, st, t, 1, "a")
	checkGet(ctx, st, t, 2, "b")
	checkGet(ctx, st, t, 3, "c")
}

func TestCachingRejectsNonPositiveSize(t *testing.T) {
	inner := NewInMemoryBTreeKeyValueStoreG[int, string]("test1", IntegerLess[int])
	if _, err := NewCachingKeyValueStoreG[int, string](inner, 0); err == nil {
		t.Fatal("expected error for zero cache size")
	}
}
