package ai

import "errors"

var (
	// ErrEmptyInput is returned when an embedding is requested for blank text.
	ErrEmptyInput = errors.New("empty embedding input")

	// ErrWrongDimension is returned when the gateway produced a vector of an unexpected length.
	ErrWrongDimension = errors.New("embedding has wrong dimension")

	// ErrCountMismatch is returned when a batch produced a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding count does not match input count")

	// ErrCircuitOpen is returned while the gateway circuit breaker is open.
	ErrCircuitOpen = errors.New("embedding gateway circuit open")

	// ErrEmbedderRequired is returned when a wrapper is constructed without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)
