package store

import (
	"context"
	"testing"
)

func getBtreeStore(t testing.TB) kvStoreUnderTest {
	st := NewInMemoryBTreeKeyValueStoreG[int, string]("test1", IntegerLess[int])
	return st
}

func openBtreeStore(t testing.TB) kvStoreUnderTest {
	st := getBtreeStore(t)
	if err := st.Init(context.Background()); err != nil {
		t.Fatal(err.Error())
	}
	return st
}

func TestBtreePutGetRange(t *testing.T) {
	PutGetRange(context.Background(), openBtreeStore(t), t)
}

func TestBtreeShouldNotIncludeDeletedFromRangeResult(t *testing.T) {
	ShouldNotIncludeDeletedFromRangeResult(context.Background(), openBtreeStore(t), t)
}

func TestBtreePutIfAbsentKeepsExistingValue(t *testing.T) {
	PutIfAbsentKeepsExistingValue(context.Background(), openBtreeStore(t), t)
}

func TestBtreeDeleteReturnsPriorValue(t *testing.T) {
	DeleteReturnsPriorValue(context.Background(), openBtreeStore(t), t)
}

func TestBtreeApproximateNumEntriesTracksMutations(t *testing.T) {
	ApproximateNumEntriesTracksMutations(context.Background(), openBtreeStore(t), t)
}

func TestBtreeReversedRangeYieldsNothing(t *testing.T) {
	ReversedRangeYieldsNothing(context.Background(), openBtreeStore(t), t)
}

func TestBtreePutAllLastWriteWinsPerKey(t *testing.T) {
	PutAllLastWriteWinsPerKey(context.Background(), openBtreeStore(t), t)
}

func TestBtreeIteratorSeesSnapshotAtCreation(t *testing.T) {
	IteratorSeesSnapshotAtCreation(context.Background(), openBtreeStore(t), t)
}

func TestBtreeIteratorCloseIsIdempotent(t *testing.T) {
	IteratorCloseIsIdempotent(context.Background(), openBtreeStore(t), t)
}

func TestBtreeAdvancePastExhaustionFails(t *testing.T) {
	AdvancePastExhaustionFails(context.Background(), openBtreeStore(t), t)
}

func TestBtreeClosingStoreInvalidatesOpenIterators(t *testing.T) {
	ClosingStoreInvalidatesOpenIterators(context.Background(), openBtreeStore(t), t)
}

func TestBtreeLifecycleTransitions(t *testing.T) {
	LifecycleTransitions(context.Background(), openBtreeStore(t), t)
}

func TestBtreeOpsBeforeInitFail(t *testing.T) {
	OpsBeforeInitFail(context.Background(), getBtreeStore(t), t)
}

func TestBtreePutRangeDeleteCloseScenario(t *testing.T) {
	PutRangeDeleteCloseScenario(context.Background(), openBtreeStore(t), t)
}

func TestBtreeRangeIsInclusiveOnBothBounds(t *testing.T) {
	ctx := context.Background()
	st := openBtreeStore(t)
	for i := 0; i < 10; i++ {
		checkErr(st.Put(ctx, i, "v"), t)
	}
	it, err := st.Range(ctx, 3, 6)
	checkErr(err, t)
	got := drain(it, t)
	it.Close()
	if len(got) != 4 || got[0].Key != 3 || got[3].Key != 6 {
		t.Fatalf("expected keys 3..6 inclusive, got %v", got)
	}
}
