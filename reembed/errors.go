package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when a capability repository is not provided.
	ErrRepositoryRequired = errors.New("capability repository required")

	// ErrVectorizerRequired is returned when a vectorizer is not provided.
	ErrVectorizerRequired = errors.New("vectorizer required")
)
