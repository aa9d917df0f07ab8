package ring

import "errors"

var (
	// ErrRingAbsent indicates the ring file does not exist at the expected
	// path.
	ErrRingAbsent = errors.New("ring file absent")

	// ErrRingTooSmall indicates the backing file is smaller than the ring
	// header. Expected while the external process is still truncating the
	// file; fatal outside the open-polling window.
	ErrRingTooSmall = errors.New("ring file smaller than header")

	// ErrRingMalformed indicates the header violates the layout invariants.
	// Expected while the external process is still initializing the header;
	// fatal outside the open-polling window.
	ErrRingMalformed = errors.New("ring header malformed")
)
