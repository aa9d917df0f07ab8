package sdrproc

import (
	"errors"
	"fmt"
	"time"

	"github.com/radioforge/iqbridge/internal/ring"
)

// Ring-open polling bounds. The external process creates and initializes
// the ring after probing hardware, which can take seconds on a cold DMA
// engine; anything past the deadline is treated as a hung start.
const (
	awaitDeadline = 10 * time.Second
	awaitInterval = 10 * time.Millisecond
)

// AwaitRing polls path until the ring opens and validates, the process
// exits, or the deadline elapses. An absent, undersized, or half-written
// ring is expected while the process is still initializing and is retried;
// any other open failure is terminal. wantChannels of zero skips the
// channel-count check.
func AwaitRing(path string, h *Handle, wantChannels int) (*ring.Ring, error) {
	deadline := time.Now().Add(awaitDeadline)

	for {
		r, err := ring.Open(path)
		if err == nil {
			if wantChannels != 0 && r.NumChannels() != wantChannels {
				got := r.NumChannels()
				r.Close()
				return nil, fmt.Errorf("%w: requested %d, ring has %d", ErrChannelMismatch, wantChannels, got)
			}
			return r, nil
		}
		if !retryableOpenError(err) {
			return nil, err
		}

		select {
		case <-h.Exited():
			return nil, &StartError{ExitCode: h.ExitCode(), LogTail: h.LogTail()}
		default:
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrOpenTimeout, path)
		}
		time.Sleep(awaitInterval)
	}
}

// retryableOpenError reports whether an open failure is an expected
// in-progress state of ring creation.
func retryableOpenError(err error) bool {
	return errors.Is(err, ring.ErrRingAbsent) ||
		errors.Is(err, ring.ErrRingTooSmall) ||
		errors.Is(err, ring.ErrRingMalformed)
}
