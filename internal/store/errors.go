package store

import "errors"

// Error taxonomy shared by the stores and the managers built on top of them.
// Callers branch with errors.Is; implementations wrap these with context.
var (
	// ErrNotFound: no enrolled person with the given name.
	ErrNotFound = errors.New("person not found")

	// ErrDuplicateName: enrollment attempted with an already-taken name.
	ErrDuplicateName = errors.New("person already enrolled")

	// ErrValidation: malformed input, e.g. a schedule time outside HH:MM.
	ErrValidation = errors.New("validation failed")

	// ErrExtractionFailure: no usable face embedding could be produced.
	ErrExtractionFailure = errors.New("no usable face in capture")

	// ErrAuthorization: wrong administrative credential. Recoverable;
	// the session continues on the main screen.
	ErrAuthorization = errors.New("authorization failed")
)
