package store

import "context"

// StoreStatus is the lifecycle state of a state store. A store starts in
// CREATED with no storage allocated, holds data only while OPEN, and CLOSED
// is terminal.
type StoreStatus uint8

const (
	CREATED StoreStatus = 0
	OPEN    StoreStatus = 1
	CLOSED  StoreStatus = 2
)

func (s StoreStatus) String() string {
	switch s {
	case CREATED:
		return "CREATED"
	case OPEN:
		return "OPEN"
	case CLOSED:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// StateStore is the lifecycle surface the processing runtime drives. Init
// allocates or recovers storage, Flush forces buffered mutations to the
// backing medium, Close releases resources and invalidates outstanding
// iterators. Close is idempotent; every other transition out of order fails
// with an illegal-state error.
type StateStore interface {
	Name() string
	Init(ctx context.Context) error
	Flush(ctx context.Context) error
	Close() error
	IsOpen() bool
}

type TABLE_TYPE uint8

const (
	IN_MEM TABLE_TYPE = 0
	PEBBLE TABLE_TYPE = 1
)
