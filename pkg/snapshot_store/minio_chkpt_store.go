package snapshot_store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"streamstate/pkg/debug"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

type MinioChkptStore struct {
	minioClients []*minio.Client
}

const (
	accessKey       = "Q3AM3UQ867SPQQA43P2F"
	secretAccessKey = "zuf+tfteSlswRu7BJ86wekitnifILbZam1KYY3TG"
)

var _ = SnapshotStore(&MinioChkptStore{})

func NewMinioChkptStore() (*MinioChkptStore, error) {
	raw_addr := os.Getenv("MINIO_ADDR")
	addr_arr := strings.Split(raw_addr, ",")
	fmt.Fprintf(os.Stderr, "minio addr is %v\n", addr_arr)
	mcs := make([]*minio.Client, len(addr_arr))
	for i := 0; i < len(addr_arr); i++ {
		mc, err := minio.New(addr_arr[i], &minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretAccessKey, ""),
			Secure: true,
		})
		if err != nil {
			return nil, err
		}
		mcs[i] = mc
	}
	return &MinioChkptStore{
		minioClients: mcs,
	}, nil
}

const CHKPT_BUCKET_NAME = "workload"

func (mc *MinioChkptStore) CreateWorkloadBucket(ctx context.Context) error {
	for i := 0; i < len(mc.minioClients); i++ {
		err := mc.minioClients[i].MakeBucket(ctx, CHKPT_BUCKET_NAME, minio.MakeBucketOptions{})
		if err != nil {
			return err
		}
	}
	return nil
}

func (mc *MinioChkptStore) clientFor(key string) *minio.Client {
	// each snapshot key is pinned to one client so gets find what puts wrote
	return mc.minioClients[snapshotShard(key, uint64(len(mc.minioClients)))]
}

func (mc *MinioChkptStore) StoreSnapshot(ctx context.Context, snapshot []byte, storeName string, seqNum uint64) error {
	key := snapshotKey(storeName, seqNum)
	debug.Fprintf(os.Stderr, "store snapshot key: %s\n", key)
	_, err := mc.clientFor(key).PutObject(ctx, CHKPT_BUCKET_NAME, key, bytes.NewReader(snapshot),
		int64(len(snapshot)), minio.PutObjectOptions{})
	return err
}

func (mc *MinioChkptStore) GetSnapshot(ctx context.Context, storeName string, seqNum uint64) ([]byte, error) {
	key := snapshotKey(storeName, seqNum)
	debug.Fprintf(os.Stderr, "get snapshot key: %s\n", key)
	object, err := mc.clientFor(key).GetObject(ctx, CHKPT_BUCKET_NAME, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()
	return io.ReadAll(object)
}

// SnapshotBlob is one store's encoded snapshot within a task checkpoint.
type SnapshotBlob struct {
	StoreName string
	SeqNum    uint64
	Payload   []byte
}

// StoreCheckpoint uploads the snapshots of every store a task owns; the
// blobs are independent objects, so the uploads fan out.
func (mc *MinioChkptStore) StoreCheckpoint(ctx context.Context, blobs []SnapshotBlob) error {
	bg, gctx := errgroup.WithContext(ctx)
	for _, blob := range blobs {
		blob := blob
		bg.Go(func() error {
			return mc.StoreSnapshot(gctx, blob.Payload, blob.StoreName, blob.SeqNum)
		})
	}
	return bg.Wait()
}
