package registrar

import "errors"

var (
	// ErrRepositoryRequired is returned when a capability repository is not provided.
	ErrRepositoryRequired = errors.New("capability repository required")

	// ErrVectorizerRequired is returned when a vectorizer is not provided.
	ErrVectorizerRequired = errors.New("vectorizer required")

	// ErrMalformedRecord indicates raw fields that do not decode into the kind's descriptor.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingNaturalKey indicates a record with neither an id nor the fields its id derives from.
	ErrMissingNaturalKey = errors.New("record has no id and no natural key")
)
