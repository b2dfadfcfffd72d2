package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks, and adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These describe the state of a resource, not validation failures:
// - ErrNotFound: record does not exist in the catalog
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrInvalidState: record is in the wrong state for the requested operation
// - ErrUnavailable: dependency temporarily unavailable
// - ErrLocked: another holder owns the advisory lock
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrLocked       = errors.New("locked")
)
