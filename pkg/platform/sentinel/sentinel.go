package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors.
//
//   - ErrNotFound: no record with the given id or key
//   - ErrAlreadyUsed: a unique key (business slug, application link) is taken
//   - ErrConflict: a concurrent writer won; the caller may retry the unit of work
//   - ErrInvalidState: record is in the wrong lifecycle state for the operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
