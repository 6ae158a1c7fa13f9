package similarity

import "errors"

var (
	// ErrNativeScorerRequired is returned when the native strategy is selected without a scorer.
	ErrNativeScorerRequired = errors.New("native scorer required for native strategy")

	// ErrUnknownStrategy is returned for an unrecognized Strategy value.
	ErrUnknownStrategy = errors.New("unknown similarity strategy")
)
