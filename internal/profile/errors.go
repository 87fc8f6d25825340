package profile

import "errors"

var (
	// ErrUnknownProfile is returned for a curve kind the generator does not know.
	ErrUnknownProfile = errors.New("profile: unknown profile")

	// ErrInvalidResolution is returned when fewer than two or too many points are requested.
	ErrInvalidResolution = errors.New("profile: invalid resolution")

	// ErrInvalidOptions is returned for non-positive plateau counts or shape constants.
	ErrInvalidOptions = errors.New("profile: invalid options")
)
