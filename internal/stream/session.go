package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/logging"
	"github.com/radioforge/iqbridge/internal/monitoring"
	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// pollInterval is the backoff while the ring is empty (RX) or full (TX).
const pollInterval = time.Millisecond

// Env carries the ambient collaborators every session uses.
type Env struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// withDefaults fills missing collaborators so sessions never nil-check.
func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = logging.NewNop()
	}
	if e.Metrics == nil {
		e.Metrics = monitoring.NewMetrics()
	}
	return e
}

// stopReason records why a task's hot loop ended.
type stopReason int

const (
	// reasonWriterDone: the producer set the done flag and all published
	// slots were drained (RX).
	reasonWriterDone stopReason = iota
	// reasonDrained: the input channel closed and every frame reached the
	// ring (TX).
	reasonDrained
	// reasonPipeClosed: the caller closed the session, or (TX) a frame
	// could not be placed in the ring.
	reasonPipeClosed
	// reasonProcessExited: the external process died mid-stream.
	reasonProcessExited
	// reasonInterrupted: the context was cancelled.
	reasonInterrupted
)

func (r stopReason) String() string {
	switch r {
	case reasonWriterDone:
		return "writer_done"
	case reasonDrained:
		return "drained"
	case reasonPipeClosed:
		return "pipe_closed"
	case reasonProcessExited:
		return "process_exited"
	case reasonInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// session is the state shared by RX and TX tasks: one ring, one external
// process handle (possibly shared with a sibling task), one warnings
// channel (ditto), and the stop/done plumbing.
type session struct {
	ring *ring.Ring
	proc *sdrproc.Handle
	env  Env

	warnings       chan Warning
	sharedWarnings bool

	stop     chan struct{}
	stopOnce sync.Once

	// finished closes after the terminal error is recorded and resources
	// are released, just before the output channels close; done closes
	// when the task goroutine has fully returned.
	finished chan struct{}
	done     chan struct{}

	err error
}

func newSession(r *ring.Ring, proc *sdrproc.Handle, warnings chan Warning, shared bool, env Env) session {
	return session{
		ring:           r,
		proc:           proc,
		env:            env,
		warnings:       warnings,
		sharedWarnings: shared,
		stop:           make(chan struct{}),
		finished:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// signalStop requests cooperative termination. Idempotent.
func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Warnings returns the out-of-band warning stream. It closes when the
// session finishes (for duplex, when both directions have finished).
func (s *session) Warnings() <-chan Warning {
	return s.warnings
}

// Err reports the session's terminal error. Valid once the output
// channels have closed; nil means clean completion.
func (s *session) Err() error {
	select {
	case <-s.finished:
		return s.err
	default:
		return nil
	}
}

// cleanup releases the session's share of the resources in the fixed
// order: process termination (when this is the last task holding it),
// ring unmap, ring file deletion. Runs on every exit path.
func (s *session) cleanup() {
	killed := s.proc.Release()

	path := s.ring.Path()
	if err := s.ring.Close(); err != nil {
		s.env.Logger.Warn("unmap ring", zap.String("path", path), zap.Error(err))
	}
	if err := ring.Delete(path); err != nil {
		s.env.Logger.Warn("delete ring", zap.String("path", path), zap.Error(err))
	}

	s.env.Metrics.SessionsActive.Dec()
	s.env.Logger.Info("ring released",
		zap.String("path", path),
		zap.Bool("terminated_process", killed),
	)
}
