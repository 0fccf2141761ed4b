package match

import "errors"

var (
	// ErrNotFound is returned when a user id does not resolve to a profile.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers self-swipes and unknown decision kinds.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict means the store could not isolate two writers on the same pair.
	ErrConflict = errors.New("conflict")

	// ErrMatchExists is returned by Tx.CreateMatch when an active match for the
	// pair was inserted first. The engine treats it as "already matched".
	ErrMatchExists = errors.New("active match already exists")
)
