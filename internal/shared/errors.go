package shared

import "errors"

// Error classes for the ledger engine. Domain packages wrap these with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is
// without depending on the originating package.
var (
	// ErrConflict indicates a uniqueness or concurrency conflict, e.g. a
	// second open day. Callers may retry once.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates caller-correctable validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a consumption request exceeding the
	// eligible batch quantity. Nothing is mutated when this is returned.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidState indicates an operation against an entity in a terminal
	// or incompatible state, e.g. recording a sale into a closed day.
	ErrInvalidState = errors.New("invalid state")
)
