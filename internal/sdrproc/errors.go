package sdrproc

import (
	"errors"
	"fmt"
)

var (
	// ErrOpenTimeout indicates the ring never became well-formed within the
	// startup deadline.
	ErrOpenTimeout = errors.New("timed out waiting for ring")

	// ErrChannelMismatch indicates the ring header's channel count does not
	// match the requested count.
	ErrChannelMismatch = errors.New("ring channel count mismatch")

	// ErrProcessExitedEarly indicates the external process died with a
	// nonzero status while streaming was still in progress.
	ErrProcessExitedEarly = errors.New("streaming process exited early")
)

// StartError reports that the external process exited before its ring was
// usable. It carries the tail of the captured log so the failure is
// diagnosable without chasing files.
type StartError struct {
	ExitCode int
	LogTail  string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("streaming process failed to start (exit code %d): %s", e.ExitCode, e.LogTail)
}
