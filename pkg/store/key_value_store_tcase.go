package store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"testing"
)

// Shared contract checks, run against every backend that serves typed
// keys and values.

type kvStoreUnderTest interface {
	CoreKeyValueStoreG[int, string]
	NumOpenIterators() int
}

func checkErr(err error, t testing.TB) {
	t.Helper()
	if err != nil {
		t.Fatal(err.Error())
	}
}

func checkGet(ctx context.Context, st kvStoreUnderTest, t testing.TB, key int, expected string) {
	t.Helper()
	ret, exists, err := st.Get(ctx, key)
	checkErr(err, t)
	if !exists {
		t.Fatalf("key %d should exist", key)
	}
	if ret != expected {
		t.Fatalf("key %d: expected %v, got %v", key, expected, ret)
	}
}

func checkAbsent(ctx context.Context, st kvStoreUnderTest, t testing.TB, key int) {
	t.Helper()
	_, exists, err := st.Get(ctx, key)
	checkErr(err, t)
	if exists {
		t.Fatalf("key %d should be absent", key)
	}
}

func drain(it KeyValueIterator[int, string], t testing.TB) []KeyValueG[int, string] {
	t.Helper()
	var out []KeyValueG[int, string]
	for it.HasNext() {
		kv, err := it.Next()
		checkErr(err, t)
		out = append(out, kv)
	}
	return out
}

func checkEntries(t testing.TB, expected []KeyValueG[int, string], got []KeyValueG[int, string]) {
	t.Helper()
	if len(expected) != len(got) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if expected[i] != got[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func PutGetRange(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 0, "zero"), t)
	checkErr(st.Put(ctx, 1, "one"), t)
	checkErr(st.Put(ctx, 2, "two"), t)
	checkErr(st.Put(ctx, 4, "four"), t)
	checkErr(st.Put(ctx, 5, "five"), t)

	checkGet(ctx, st, t, 0, "zero")
	checkGet(ctx, st, t, 1, "one")
	checkGet(ctx, st, t, 2, "two")
	checkAbsent(ctx, st, t, 3)
	checkGet(ctx, st, t, 4, "four")
	checkGet(ctx, st, t, 5, "five")

	it, err := st.Range(ctx, 1, 4)
	checkErr(err, t)
	got := drain(it, t)
	it.Close()
	checkEntries(t, []KeyValueG[int, string]{
		{Key: 1, Value: "one"},
		{Key: 2, Value: "two"},
		{Key: 4, Value: "four"},
	}, got)

	all, err := st.All(ctx)
	checkErr(err, t)
	got = drain(all, t)
	all.Close()
	checkEntries(t, []KeyValueG[int, string]{
		{Key: 0, Value: "zero"},
		{Key: 1, Value: "one"},
		{Key: 2, Value: "two"},
		{Key: 4, Value: "four"},
		{Key: 5, Value: "five"},
	}, got)

	if n := st.NumOpenIterators(); n != 0 {
		t.Fatalf("%d iterators leaked", n)
	}
}

func ShouldNotIncludeDeletedFromRangeResult(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 0, "zero"), t)
	checkErr(st.Put(ctx, 1, "one"), t)
	checkErr(st.Put(ctx, 2, "two"), t)
	if _, err := st.Delete(ctx, 0); err != nil {
		t.Fatal(err.Error())
	}
	if _, err := st.Delete(ctx, 1); err != nil {
		t.Fatal(err.Error())
	}

	checkGet(ctx, st, t, 2, "two")
	it, err := st.Range(ctx, 0, 2)
	checkErr(err, t)
	got := drain(it, t)
	it.Close()
	checkEntries(t, []KeyValueG[int, string]{{Key: 2, Value: "two"}}, got)
}

func PutIfAbsentKeepsExistingValue(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	prior, err := st.PutIfAbsent(ctx, 7, "first")
	checkErr(err, t)
	if prior.IsSome() {
		t.Fatalf("expected no prior value, got %v", prior.Unwrap())
	}
	prior, err = st.PutIfAbsent(ctx, 7, "second")
	checkErr(err, t)
	v, ok := prior.Take()
	if !ok || v != "first" {
		t.Fatalf("expected prior value first, got %v (present: %v)", v, ok)
	}
	checkGet(ctx, st, t, 7, "first")
}

func DeleteReturnsPriorValue(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 3, "three"), t)
	prior, err := st.Delete(ctx, 3)
	checkErr(err, t)
	v, ok := prior.Take()
	if !ok || v != "three" {
		t.Fatalf("expected prior value three, got %v (present: %v)", v, ok)
	}
	checkAbsent(ctx, st, t, 3)

	// deleting an absent key is a no-op
	prior, err = st.Delete(ctx, 3)
	checkErr(err, t)
	if prior.IsSome() {
		t.Fatalf("expected no prior value, got %v", prior.Unwrap())
	}
}

func ApproximateNumEntriesTracksMutations(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	for i := 0; i < 10; i++ {
		checkErr(st.Put(ctx, i, "v"), t)
	}
	// overwrite must not bump the count
	checkErr(st.Put(ctx, 0, "v2"), t)
	for i := 0; i < 4; i++ {
		if _, err := st.Delete(ctx, i); err != nil {
			t.Fatal(err.Error())
		}
	}
	n, err := st.ApproximateNumEntries()
	checkErr(err, t)
	if n != 6 {
		t.Fatalf("expected 6 entries, got %d", n)
	}
}

func ReversedRangeYieldsNothing(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 1, "one"), t)
	checkErr(st.Put(ctx, 2, "two"), t)
	it, err := st.Range(ctx, 2, 1)
	checkErr(err, t)
	defer it.Close()
	if it.HasNext() {
		t.Fatal("reversed bounds should yield an empty cursor")
	}
	if _, err := it.Next(); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state, got %v", err)
	}
}

func PutAllLastWriteWinsPerKey(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	err := st.PutAll(ctx, []*commtypes.MessageG[int, string]{
		{Key: 1, Value: "a"},
		{Key: 2, Value: "b"},
		{Key: 1, Value: "c"},
	})
	checkErr(err, t)
	checkGet(ctx, st, t, 1, "c")
	checkGet(ctx, st, t, 2, "b")
	n, err := st.ApproximateNumEntries()
	checkErr(err, t)
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}

func IteratorSeesSnapshotAtCreation(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 1, "one"), t)
	checkErr(st.Put(ctx, 3, "three"), t)

	it, err := st.All(ctx)
	checkErr(err, t)
	defer it.Close()

	// mutations after cursor creation stay invisible to it
	checkErr(st.Put(ctx, 2, "two"), t)
	if _, err := st.Delete(ctx, 3); err != nil {
		t.Fatal(err.Error())
	}

	got := drain(it, t)
	checkEntries(t, []KeyValueG[int, string]{
		{Key: 1, Value: "one"},
		{Key: 3, Value: "three"},
	}, got)
}

func IteratorCloseIsIdempotent(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 1, "one"), t)
	it, err := st.All(ctx)
	checkErr(err, t)
	it.Close()
	it.Close()
	if n := st.NumOpenIterators(); n != 0 {
		t.Fatalf("%d iterators still registered", n)
	}
	if _, err := it.Next(); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state after close, got %v", err)
	}
}

func AdvancePastExhaustionFails(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 1, "one"), t)
	it, err := st.All(ctx)
	checkErr(err, t)
	defer it.Close()
	_, err = it.Next()
	checkErr(err, t)
	if it.HasNext() {
		t.Fatal("iterator should be exhausted")
	}
	if _, err := it.Next(); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state past exhaustion, got %v", err)
	}
}

func ClosingStoreInvalidatesOpenIterators(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 1, "one"), t)
	it, err := st.All(ctx)
	checkErr(err, t)
	checkErr(st.Close(), t)
	if it.HasNext() {
		t.Fatal("iterator should be invalid after store close")
	}
	if _, err := it.Next(); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state after store close, got %v", err)
	}
	it.Close()
}

func LifecycleTransitions(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	// already OPEN here; a second init must fail
	if err := st.Init(ctx); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state on double init, got %v", err)
	}
	checkErr(st.Flush(ctx), t)
	checkErr(st.Close(), t)
	// close is idempotent
	checkErr(st.Close(), t)
	if _, _, err := st.Get(ctx, 1); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state after close, got %v", err)
	}
	if err := st.Put(ctx, 1, "one"); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state after close, got %v", err)
	}
	if err := st.Init(ctx); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state on init after close, got %v", err)
	}
}

func OpsBeforeInitFail(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	if err := st.Put(ctx, 1, "one"); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state before init, got %v", err)
	}
	if _, _, err := st.Get(ctx, 1); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state before init, got %v", err)
	}
	if _, err := st.All(ctx); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state before init, got %v", err)
	}
}

// The end-to-end scenario from the store contract: point writes, inclusive
// range, full scan, delete, count, close.
func PutRangeDeleteCloseScenario(ctx context.Context, st kvStoreUnderTest, t testing.TB) {
	checkErr(st.Put(ctx, 10, "a"), t)
	checkErr(st.Put(ctx, 20, "b"), t)
	checkErr(st.Put(ctx, 30, "c"), t)

	it, err := st.Range(ctx, 10, 20)
	checkErr(err, t)
	got := drain(it, t)
	it.Close()
	checkEntries(t, []KeyValueG[int, string]{
		{Key: 10, Value: "a"},
		{Key: 20, Value: "b"},
	}, got)

	all, err := st.All(ctx)
	checkErr(err, t)
	got = drain(all, t)
	all.Close()
	checkEntries(t, []KeyValueG[int, string]{
		{Key: 10, Value: "a"},
		{Key: 20, Value: "b"},
		{Key: 30, Value: "c"},
	}, got)

	if _, err := st.Delete(ctx, 20); err != nil {
		t.Fatal(err.Error())
	}
	n, err := st.ApproximateNumEntries()
	checkErr(err, t)
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}

	checkErr(st.Close(), t)
	if _, _, err := st.Get(ctx, 10); !common_errors.IsIllegalState(err) {
		t.Fatalf("expected illegal state after close, got %v", err)
	}
}
