package store_restore

import (
	"context"
	"fmt"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/env_config"
	"streamstate/pkg/optional"
	"streamstate/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ChangelogRecord is one replayable mutation. A record with no value is a
// tombstone and deletes the key during replay.
type ChangelogRecord[K, V any] struct {
	Key   K
	Value optional.Option[V]
}

// ChangelogSource feeds records for one store in the order they were
// produced. Consume returns ErrChangelogEmpty once the log is drained.
type ChangelogSource[K, V any] interface {
	TopicName() string
	Consume(ctx context.Context) ([]ChangelogRecord[K, V], error)
}

type KVStoreChangelog[K, V any] struct {
	kvStore store.CoreKeyValueStoreG[K, V]
	src     ChangelogSource[K, V]
}

func NewKVStoreChangelog[K, V any](
	kvStore store.CoreKeyValueStoreG[K, V],
	src ChangelogSource[K, V],
) *KVStoreChangelog[K, V] {
	return &KVStoreChangelog[K, V]{
		kvStore: kvStore,
		src:     src,
	}
}

func (kvc *KVStoreChangelog[K, V]) TableType() store.TABLE_TYPE {
	return kvc.kvStore.TableType()
}

func (kvc *KVStoreChangelog[K, V]) ChangelogTopicName() string {
	return kvc.src.TopicName()
}

// RestoreChangelogKVStateStore replays the changelog into the store until
// the source reports empty. Replay applies writes in log order, so the
// store ends at the same state the log's producer last observed.
func RestoreChangelogKVStateStore[K, V any](
	ctx context.Context,
	kvc *KVStoreChangelog[K, V],
) error {
	for {
		records, err := kvc.src.Consume(ctx)
		// nothing left to restore
		if common_errors.IsChangelogEmptyError(err) {
			return nil
		} else if err != nil {
			return fmt.Errorf("consume %s failed: %v", kvc.src.TopicName(), err)
		}
		for _, rec := range records {
			if v, ok := rec.Value.Take(); ok {
				if err := kvc.kvStore.Put(ctx, rec.Key, v); err != nil {
					return fmt.Errorf("kv store put failed: %v", err)
				}
			} else {
				if _, err := kvc.kvStore.Delete(ctx, rec.Key); err != nil {
					return fmt.Errorf("kv store delete failed: %v", err)
				}
			}
		}
	}
}

// RestoreAll restores a set of stores, in parallel when PARALLEL_RESTORE
// is set. Each store owns its changelog, so replays never contend.
func RestoreAll[K, V any](ctx context.Context, kvcs []*KVStoreChangelog[K, V]) error {
	if env_config.PARALLEL_RESTORE {
		bg, gctx := errgroup.WithContext(ctx)
		for _, kvc := range kvcs {
			kvc := kvc
			bg.Go(func() error {
				return RestoreChangelogKVStateStore(gctx, kvc)
			})
		}
		return bg.Wait()
	}
	for _, kvc := range kvcs {
		if err := RestoreChangelogKVStateStore(ctx, kvc); err != nil {
			return err
		}
	}
	return nil
}
