package services

import "errors"

// Error taxonomy shared by the spawn and MMR services. Expected business
// outcomes (failed claim/catch) are returned as booleans, not errors;
// these sentinels cover the genuinely failing paths. Handlers map them
// with errors.Is.
var (
	// ErrValidation rejects malformed input before any store interaction.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing target where absence is an error
	// rather than a business outcome.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a transition attempt against stale state.
	ErrConflict = errors.New("conflict")

	// ErrPersistence wraps store/transaction failures. Not retried here;
	// surfaced to the caller as fatal for the request.
	ErrPersistence = errors.New("persistence failure")
)
