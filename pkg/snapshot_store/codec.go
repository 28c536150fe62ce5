package snapshot_store

import (
	"context"
	"streamstate/pkg/common_errors"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/store"

	"github.com/cespare/xxhash/v2"
	"github.com/tinylib/msgp/msgp"
)

// Snapshot wire layout: entry count, then key/value byte pairs in key
// order, then an xxhash64 of everything before it. The trailing hash lets
// the restore path reject blobs that were cut short or bit-flipped in
// transit.

func EncodeKVSnapshot[K, V any](
	ctx context.Context,
	st store.CoreKeyValueStoreG[K, V],
	kSerde commtypes.SerdeG[K],
	vSerde commtypes.SerdeG[V],
) ([]byte, error) {
	it, err := st.All(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var entries []commtypes.KeyValuePair[[]byte, []byte]
	for it.HasNext() {
		kv, err := it.Next()
		if err != nil {
			return nil, err
		}
		kBytes, err := kSerde.Encode(kv.Key)
		if err != nil {
			return nil, err
		}
		vBytes, err := vSerde.Encode(kv.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, commtypes.KeyValuePair[[]byte, []byte]{Key: kBytes, Value: vBytes})
	}

	out := msgp.AppendUint64(nil, uint64(len(entries)))
	for _, entry := range entries {
		out = msgp.AppendBytes(out, entry.Key)
		out = msgp.AppendBytes(out, entry.Value)
	}
	return msgp.AppendUint64(out, xxhash.Sum64(out)), nil
}

func DecodeKVSnapshot(data []byte) ([]commtypes.KeyValuePair[[]byte, []byte], error) {
	count, rem, err := msgp.ReadUint64Bytes(data)
	if err != nil {
		return nil, common_errors.ErrSnapshotTruncated
	}
	// every entry carries at least two bytes of framing, so a count the
	// remaining bytes cannot hold is forged; check before trusting it as an
	// allocation size
	if count > uint64(len(rem))/2 {
		return nil, common_errors.ErrSnapshotCorrupted
	}
	entries := make([]commtypes.KeyValuePair[[]byte, []byte], 0, count)
	for i := uint64(0); i < count; i++ {
		var k, v []byte
		k, rem, err = msgp.ReadBytesBytes(rem, nil)
		if err != nil {
			return nil, common_errors.ErrSnapshotTruncated
		}
		v, rem, err = msgp.ReadBytesBytes(rem, nil)
		if err != nil {
			return nil, common_errors.ErrSnapshotTruncated
		}
		entries = append(entries, commtypes.KeyValuePair[[]byte, []byte]{Key: k, Value: v})
	}
	payload := data[:len(data)-len(rem)]
	sum, rem, err := msgp.ReadUint64Bytes(rem)
	if err != nil {
		return nil, common_errors.ErrSnapshotTruncated
	}
	if len(rem) != 0 || sum != xxhash.Sum64(payload) {
		return nil, common_errors.ErrSnapshotCorrupted
	}
	return entries, nil
}

// RestoreKVSnapshot loads a decoded snapshot into an empty store.
func RestoreKVSnapshot[K, V any](
	ctx context.Context,
	st store.CoreKeyValueStoreG[K, V],
	entries []commtypes.KeyValuePair[[]byte, []byte],
	kSerde commtypes.SerdeG[K],
	vSerde commtypes.SerdeG[V],
) error {
	msgs := make([]*commtypes.MessageG[K, V], 0, len(entries))
	for _, entry := range entries {
		k, err := kSerde.Decode(entry.Key)
		if err != nil {
			return err
		}
		v, err := vSerde.Decode(entry.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, &commtypes.MessageG[K, V]{Key: k, Value: v})
	}
	return st.PutAll(ctx, msgs)
}
