package modern

import (
	"errors"

	serialpkg "github.com/CK6170/Manocal-go/serial"
)

var (
	// ErrPortUnavailable is returned when the serial port could not be opened
	// within the retry budget. No output file exists at that point.
	ErrPortUnavailable = errors.New("port unavailable")

	// ErrIOFailure ends a session: the output file could not be written or the
	// link stopped answering reads.
	ErrIOFailure = errors.New("i/o failure")

	ErrInvalidInput = errors.New("invalid input")

	ErrMalformedRecord = serialpkg.ErrMalformedRecord

	ErrEmptyRead = errors.New("no data received")
)
