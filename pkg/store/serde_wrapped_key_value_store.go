package store

import (
	"context"
	"streamstate/pkg/commtypes"
	"streamstate/pkg/optional"
)

// SerdeWrappedKeyValueStoreG presents a typed view over a byte-keyed store
// such as the pebble backend. The key serde must be order preserving
// (big-endian integers, raw strings) or range scans come back in the wrong
// order.
type SerdeWrappedKeyValueStoreG[K, V any] struct {
	inner  CoreKeyValueStoreG[[]byte, []byte]
	kSerde commtypes.SerdeG[K]
	vSerde commtypes.SerdeG[V]
}

var _ = CoreKeyValueStoreG[uint64, string](&SerdeWrappedKeyValueStoreG[uint64, string]{})

func NewSerdeWrappedKeyValueStoreG[K, V any](
	inner CoreKeyValueStoreG[[]byte, []byte],
	kSerde commtypes.SerdeG[K],
	vSerde commtypes.SerdeG[V],
) *SerdeWrappedKeyValueStoreG[K, V] {
	return &SerdeWrappedKeyValueStoreG[K, V]{
		inner:  inner,
		kSerde: kSerde,
		vSerde: vSerde,
	}
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Name() string {
	return s.inner.Name()
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) TableType() TABLE_TYPE {
	return s.inner.TableType()
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Init(ctx context.Context) error {
	return s.inner.Init(ctx)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Close() error {
	return s.inner.Close()
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) IsOpen() bool {
	return s.inner.IsOpen()
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	kBytes, err := s.kSerde.Encode(key)
	if err != nil {
		return zero, false, err
	}
	vBytes, exists, err := s.inner.Get(ctx, kBytes)
	if err != nil || !exists {
		return zero, false, err
	}
	v, err := s.vSerde.Decode(vBytes)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Put(ctx context.Context, key K, value V) error {
	kBytes, err := s.kSerde.Encode(key)
	if err != nil {
		return err
	}
	vBytes, err := s.vSerde.Encode(value)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, kBytes, vBytes)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (optional.Option[V], error) {
	kBytes, err := s.kSerde.Encode(key)
	if err != nil {
		return optional.None[V](), err
	}
	vBytes, err := s.vSerde.Encode(value)
	if err != nil {
		return optional.None[V](), err
	}
	prior, err := s.inner.PutIfAbsent(ctx, kBytes, vBytes)
	if err != nil {
		return optional.None[V](), err
	}
	return s.decodePrior(prior)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) PutAll(ctx context.Context, entries []*commtypes.MessageG[K, V]) error {
	encoded := make([]*commtypes.MessageG[[]byte, []byte], 0, len(entries))
	for _, msg := range entries {
		kBytes, err := s.kSerde.Encode(msg.Key)
		if err != nil {
			return err
		}
		vBytes, err := s.vSerde.Encode(msg.Value)
		if err != nil {
			return err
		}
		encoded = append(encoded, &commtypes.MessageG[[]byte, []byte]{
			Key:       kBytes,
			Value:     vBytes,
			Timestamp: msg.Timestamp,
		})
	}
	return s.inner.PutAll(ctx, encoded)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Delete(ctx context.Context, key K) (optional.Option[V], error) {
	kBytes, err := s.kSerde.Encode(key)
	if err != nil {
		return optional.None[V](), err
	}
	prior, err := s.inner.Delete(ctx, kBytes)
	if err != nil {
		return optional.None[V](), err
	}
	return s.decodePrior(prior)
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) decodePrior(prior optional.Option[[]byte]) (optional.Option[V], error) {
	pBytes, ok := prior.Take()
	if !ok {
		return optional.None[V](), nil
	}
	v, err := s.vSerde.Decode(pBytes)
	if err != nil {
		return optional.None[V](), err
	}
	return optional.Some(v), nil
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) ApproximateNumEntries() (uint64, error) {
	return s.inner.ApproximateNumEntries()
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) Range(ctx context.Context, from K, to K) (KeyValueIterator[K, V], error) {
	fromBytes, err := s.kSerde.Encode(from)
	if err != nil {
		return nil, err
	}
	toBytes, err := s.kSerde.Encode(to)
	if err != nil {
		return nil, err
	}
	it, err := s.inner.Range(ctx, fromBytes, toBytes)
	if err != nil {
		return nil, err
	}
	return &serdeWrappedIterator[K, V]{inner: it, kSerde: s.kSerde, vSerde: s.vSerde}, nil
}

func (s *SerdeWrappedKeyValueStoreG[K, V]) All(ctx context.Context) (KeyValueIterator[K, V], error) {
	it, err := s.inner.All(ctx)
	if err != nil {
		return nil, err
	}
	return &serdeWrappedIterator[K, V]{inner: it, kSerde: s.kSerde, vSerde: s.vSerde}, nil
}

type serdeWrappedIterator[K, V any] struct {
	inner  KeyValueIterator[[]byte, []byte]
	kSerde commtypes.SerdeG[K]
	vSerde commtypes.SerdeG[V]
}

func (it *serdeWrappedIterator[K, V]) HasNext() bool {
	return it.inner.HasNext()
}

func (it *serdeWrappedIterator[K, V]) Next() (KeyValueG[K, V], error) {
	kv, err := it.inner.Next()
	if err != nil {
		return KeyValueG[K, V]{}, err
	}
	k, err := it.kSerde.Decode(kv.Key)
	if err != nil {
		return KeyValueG[K, V]{}, err
	}
	v, err := it.vSerde.Decode(kv.Value)
	if err != nil {
		return KeyValueG[K, V]{}, err
	}
	return KeyValueG[K, V]{Key: k, Value: v}, nil
}

func (it *serdeWrappedIterator[K, V]) PeekNextKey() (K, error) {
	var zero K
	kBytes, err := it.inner.PeekNextKey()
	if err != nil {
		return zero, err
	}
	return it.kSerde.Decode(kBytes)
}

func (it *serdeWrappedIterator[K, V]) Close() {
	it.inner.Close()
}
