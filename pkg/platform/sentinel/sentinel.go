package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors or validation results.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: optimistic concurrency check failed (stale version)
//   - ErrAlreadyUsed: identifier already registered (message ID, transaction ID)
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
