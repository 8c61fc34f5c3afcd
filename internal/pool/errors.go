package pool

import "errors"

// Sentinel errors for the taxonomy in SPEC_FULL.md Part A §7, following the
// package-level var block idiom oriys-nova/internal/pool uses instead of
// custom error types for the hot-path cases.
var (
	// errBusy names capacity exhaustion. get() represents Busy internally
	// as fpBusy and retries on it, so this value is never returned: a
	// caller of GetAction/GetByImageName either gets a container or a
	// terminal error.
	errBusy = errors.New("pool: capacity exhausted")

	// ErrInvariantViolation is returned when a caller breaks the pool's
	// contract (e.g. PutBack on a container the pool never issued, or a
	// backend reporting Busy, which only the Acquirer may produce).
	ErrInvariantViolation = errors.New("pool: invariant violation")

	// ErrPoolClosed names use of a pool after Close. No operation returns
	// it: GetAction, GetByImageName and PutBack do not check whether Close
	// has been called.
	ErrPoolClosed = errors.New("pool: closed")
)
