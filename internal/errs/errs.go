// Package errs defines the error taxonomy exposed to callers. Components
// wrap a sentinel with context via fmt.Errorf("...: %w", Sentinel) so
// errors.Is/errors.As work end to end, instead of the source system's
// exception-class hierarchy.
package errs

import "errors"

var (
	// ErrExtractionFailed means neither the LLM extractor nor the heuristic
	// fallback could produce a usable ExtractionResult.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrResolutionFailed means entity resolution could not complete (the
	// cache, vector store, or LLM catalog call itself errored, as opposed
	// to simply finding no match).
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrPersistenceFailed means a storage batch write returned an error.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrLLMUnavailable means every model in the fallback chain failed.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrInvalidInput means a record was missing a required field or used
	// an unrecognized enum value.
	ErrInvalidInput = errors.New("invalid input")
)
