// Package id provides centralized ID generation for streaming sessions.
//
// Session IDs name every per-session artifact — ring files, process logs —
// so a crashed session's leftovers are attributable and cleanable. The
// type wrapper keeps session IDs from being confused with arbitrary
// strings at call sites.
package id

import (
	"github.com/google/uuid"
)

// SessionID identifies one streaming session.
type SessionID string

// NewSessionID generates a unique session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// String returns the raw identifier.
func (s SessionID) String() string {
	return string(s)
}
