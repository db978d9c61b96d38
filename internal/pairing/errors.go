package pairing

import "errors"

var (
	// ErrPersistenceFailed wraps storage errors. Callers treat it as a
	// warning: the in-memory state remains valid.
	ErrPersistenceFailed = errors.New("pairing: persistence failed")

	// ErrCodeGeneration means the system randomness source failed while
	// creating a new pairing code. Unlike persistence errors this one is
	// fatal to the operation; a predictable code must never be issued.
	ErrCodeGeneration = errors.New("pairing: generating code failed")
)
