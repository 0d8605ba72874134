package game

import "errors"

// Domain errors. These form a closed taxonomy: every mutation on the
// aggregate fails with exactly one of them, and the API boundary maps them
// to status codes (409, 404, 400).
var (
	// ErrAlreadyExists is returned when a name or uuid collides with an
	// existing team, service, env key, or inject.
	ErrAlreadyExists = errors.New("game: already exists")
	// ErrDoesNotExist is returned when the referenced entity is absent.
	ErrDoesNotExist = errors.New("game: does not exist")
	// ErrBadValue is returned when a payload fails validation.
	ErrBadValue = errors.New("game: bad value")
	// ErrInvalidName is returned for empty or otherwise unusable names.
	ErrInvalidName = errors.New("game: invalid name")
)
