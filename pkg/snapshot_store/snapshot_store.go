package snapshot_store

import (
	"context"
	"fmt"
	"os"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/hashfuncs"
	"streamstate/pkg/redis_client"

	"github.com/go-redis/redis/v9"
)

// SnapshotStore keeps encoded store snapshots in external storage, keyed
// by store name and the changelog sequence number the snapshot covers.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, snapshot []byte, storeName string, seqNum uint64) error
	GetSnapshot(ctx context.Context, storeName string, seqNum uint64) ([]byte, error)
}

type RedisSnapshotStore struct {
	rdb_arr []*redis.Client
}

var _ = SnapshotStore(&RedisSnapshotStore{})

func NewRedisSnapshotStore(createSnapshot bool) RedisSnapshotStore {
	if createSnapshot {
		return RedisSnapshotStore{rdb_arr: redis_client.GetRedisClients()}
	} else {
		return RedisSnapshotStore{}
	}
}

func snapshotKey(storeName string, seqNum uint64) string {
	return fmt.Sprintf("%s_%#x", storeName, seqNum)
}

func snapshotShard(key string, numShards uint64) uint64 {
	return hashfuncs.NameHash(key) % numShards
}

func (rs *RedisSnapshotStore) StoreSnapshot(ctx context.Context, snapshot []byte, storeName string, seqNum uint64) error {
	if len(rs.rdb_arr) == 0 {
		return common_errors.ErrSnapshotStoreDisabled
	}
	key := snapshotKey(storeName, seqNum)
	idx := snapshotShard(key, uint64(len(rs.rdb_arr)))
	fmt.Fprintf(os.Stderr, "store snapshot key: %s at redis[%d]\n", key, idx)
	return rs.rdb_arr[idx].Set(ctx, key, snapshot, 0).Err()
}

func (rs *RedisSnapshotStore) GetSnapshot(ctx context.Context, storeName string, seqNum uint64) ([]byte, error) {
	if len(rs.rdb_arr) == 0 {
		return nil, common_errors.ErrSnapshotStoreDisabled
	}
	key := snapshotKey(storeName, seqNum)
	idx := snapshotShard(key, uint64(len(rs.rdb_arr)))
	fmt.Fprintf(os.Stderr, "get snapshot key: %s at redis[%d]\n", key, idx)
	return rs.rdb_arr[idx].Get(ctx, key).Bytes()
}
