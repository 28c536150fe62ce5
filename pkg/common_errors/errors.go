package common_errors

import (
	"golang.org/x/xerrors"
)

// The two error classes every store operation can surface. The concrete
// sentinels below wrap one of them, so callers can classify with
// IsInvalidArgument / IsIllegalState and still match the precise cause
// with xerrors.Is.
var (
	ErrInvalidArgument = xerrors.New("invalid argument")
	ErrIllegalState    = xerrors.New("illegal state")
)

var (
	ErrNilKey   = xerrors.Errorf("key cannot be nil: %w", ErrInvalidArgument)
	ErrNilValue = xerrors.Errorf("value cannot be nil: %w", ErrInvalidArgument)

	ErrStoreNotOpen           = xerrors.Errorf("store is not open: %w", ErrIllegalState)
	ErrStoreClosed            = xerrors.Errorf("store is closed: %w", ErrIllegalState)
	ErrInvalidStateTransition = xerrors.Errorf("invalid state transition: %w", ErrIllegalState)
	ErrIteratorClosed         = xerrors.Errorf("iterator used after close: %w", ErrIllegalState)
	ErrIteratorExhausted      = xerrors.Errorf("iterator advanced past exhaustion: %w", ErrIllegalState)

	// Backing medium failure. Never retried by the engine; within a single
	// put or delete the prior state stays untouched.
	ErrResourceExhausted = xerrors.New("storage resource exhausted")

	ErrChangelogEmpty        = xerrors.New("changelog empty")
	ErrSnapshotCorrupted     = xerrors.New("snapshot corrupted")
	ErrSnapshotTruncated     = xerrors.New("snapshot truncated")
	ErrSnapshotStoreDisabled = xerrors.New("snapshot store disabled")
	ErrUnknownStoreConfig    = xerrors.New("unknown store config")
)

func IsInvalidArgument(err error) bool {
	return xerrors.Is(err, ErrInvalidArgument)
}

func IsIllegalState(err error) bool {
	return xerrors.Is(err, ErrIllegalState)
}

func IsChangelogEmptyError(err error) bool {
	return xerrors.Is(err, ErrChangelogEmpty)
}
