package commtypes

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

var ErrSizeNotMatch = xerrors.New("size of the bytes to decode does not match")

// SerdeG converts typed keys and values to and from bytes for the durable
// backends and the snapshot encoder. Application record serialization
// stays with the runtime; these cover the store's own needs.
type SerdeG[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(value []byte) (T, error)
}

type StringSerdeG struct{}

var _ = SerdeG[string](StringSerdeG{})

func (s StringSerdeG) Encode(value string) ([]byte, error) {
	return []byte(value), nil
}

func (s StringSerdeG) Decode(value []byte) (string, error) {
	return string(value), nil
}

type BytesSerdeG struct{}

var _ = SerdeG[[]byte](BytesSerdeG{})

func (s BytesSerdeG) Encode(value []byte) ([]byte, error) {
	return value, nil
}

func (s BytesSerdeG) Decode(value []byte) ([]byte, error) {
	return value, nil
}

// Uint64SerdeG encodes big-endian so that the byte order matches the
// numeric order, which keeps range scans correct on byte-ordered backends.
type Uint64SerdeG struct{}

var _ = SerdeG[uint64](Uint64SerdeG{})

func (s Uint64SerdeG) Encode(value uint64) ([]byte, error) {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, value)
	return bs, nil
}

func (s Uint64SerdeG) Decode(value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, ErrSizeNotMatch
	}
	return binary.BigEndian.Uint64(value), nil
}
