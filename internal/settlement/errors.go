package settlement

import "errors"

var (
	// ErrValidation rejects bad input (negative price, out-of-range cycle
	// time) before any write happens.
	ErrValidation = errors.New("settlement: validation failed")

	// ErrBillNotFound means the bill id does not exist within the caller's
	// (software, agent) scope.
	ErrBillNotFound = errors.New("settlement: bill not found")

	// ErrAlreadySettled is a soft outcome: completing a settled bill is a
	// no-op, reported as a notice rather than a failure.
	ErrAlreadySettled = errors.New("settlement: bill already settled")

	// ErrPendingBillExists is returned by stores when the at-most-one-pending
	// constraint rejects an insert. Callers treat it as "someone else just
	// created the bill" and re-read.
	ErrPendingBillExists = errors.New("settlement: pending bill already exists")
)
