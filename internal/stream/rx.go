package stream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// RXConfig parameterizes a receive session.
type RXConfig struct {
	// Params hold the radio settings and the ring path the external
	// process creates.
	Params sdrproc.Params

	// Binary is the external streaming executable.
	Binary string

	// LogPath receives the external process's combined output.
	LogPath string

	// Invocation, when non-nil, replaces the composed command line.
	// Tests use it to run without hardware.
	Invocation *sdrproc.Invocation

	// ChunkCapacity bounds the delivery channel and sizes the reuse pool
	// (capacity + 2).
	ChunkCapacity int

	// WarningCapacity bounds the warnings channel; publication never
	// blocks, excess warnings are dropped.
	WarningCapacity int
}

// RXSession is a live receive stream. Chunks are delivered in slot order
// with backpressure; Close stops the stream and tears everything down.
type RXSession struct {
	session
	chunks chan *Chunk
	start  time.Time
}

// StartRX deletes any stale ring file, launches the external process,
// waits for it to create the ring, and starts the receive task. On
// success the returned session owns all resources; on error everything
// acquired so far has been released.
func StartRX(ctx context.Context, channels int, cfg RXConfig, env Env) (*RXSession, error) {
	env = env.withDefaults()

	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", channels)
	}

	path := cfg.Params.ShmPath
	if err := ring.Delete(path); err != nil {
		return nil, err
	}

	inv := cfg.Params.Invocation(cfg.Binary, sdrproc.ModeRX)
	if cfg.Invocation != nil {
		inv = *cfg.Invocation
	}

	proc, err := sdrproc.Spawn(inv, cfg.LogPath, env.Logger)
	if err != nil {
		return nil, err
	}

	r, err := sdrproc.AwaitRing(path, proc, channels)
	if err != nil {
		proc.Terminate()
		ring.Delete(path)
		return nil, err
	}

	s := &RXSession{
		session: newSession(r, proc, make(chan Warning, cfg.WarningCapacity), false, env),
		chunks:  make(chan *Chunk, cfg.ChunkCapacity),
		start:   time.Now(),
	}

	env.Metrics.SessionsActive.Inc()
	env.Metrics.SessionsTotal.WithLabelValues("rx").Inc()
	env.Logger.Info("rx session started",
		zap.String("ring", path),
		zap.Int("channels", r.NumChannels()),
		zap.Int("chunk_size", r.ChunkSize()),
		zap.Int("num_slots", r.NumSlots()),
	)

	go s.run(ctx)
	return s, nil
}

// startRXTask attaches a receive task to an already opened ring and an
// already running process. Used by duplex, where the warnings channel and
// the process handle are shared with the transmit task.
func startRXTask(ctx context.Context, r *ring.Ring, proc *sdrproc.Handle, warnings chan Warning, chunkCapacity int, env Env) *RXSession {
	s := &RXSession{
		session: newSession(r, proc, warnings, true, env),
		chunks:  make(chan *Chunk, chunkCapacity),
		start:   time.Now(),
	}
	env.Metrics.SessionsActive.Inc()
	go s.run(ctx)
	return s
}

// Chunks returns the delivery channel. It closes when no more chunks will
// arrive; check Err afterwards to distinguish completion from failure.
func (s *RXSession) Chunks() <-chan *Chunk {
	return s.chunks
}

// Close stops the session and blocks until every resource is released.
func (s *RXSession) Close() error {
	s.signalStop()
	<-s.done
	return nil
}

// elapsedLabel renders the session-relative time for warnings.
func (s *RXSession) elapsedLabel() string {
	return fmt.Sprintf("%.1fs", time.Since(s.start).Seconds())
}

// run is the receive hot loop. Single goroutine; the only intended
// suspension point is the bounded chunk channel.
func (s *RXSession) run(ctx context.Context) {
	defer close(s.done)

	r := s.ring
	pool := newChunkPool(cap(s.chunks)+2, r.NumChannels(), r.ChunkSize())
	chunkSamples := r.ChunkSamples()
	var lastOverflows uint64

	reason := reasonWriterDone

loop:
	for {
		select {
		case <-ctx.Done():
			reason = reasonInterrupted
			break loop
		case <-s.stop:
			reason = reasonPipeClosed
			break loop
		default:
		}

		if ec := r.ErrorCount(); ec > lastOverflows {
			s.tryWarn(Warning{
				Kind:      KindOverflow,
				TimeLabel: s.elapsedLabel(),
				Detail:    fmt.Sprintf("%d overflow events", ec-lastOverflows),
			})
			s.env.Metrics.Overflows.Add(float64(ec - lastOverflows))
			lastOverflows = ec
		}

		switch {
		case r.CanRead():
			idx := r.ReadIndex()
			chunk := pool.get()
			copy(chunk.Data, r.SlotIQ(idx))

			// The only blocking point: downstream backpressure.
			select {
			case s.chunks <- chunk:
			case <-ctx.Done():
				reason = reasonInterrupted
				break loop
			case <-s.stop:
				reason = reasonPipeClosed
				break loop
			}

			r.SetReadIndex(idx + 1)
			s.env.Metrics.ChunksDelivered.WithLabelValues("rx").Inc()
			s.env.Metrics.SamplesMoved.WithLabelValues("rx").Add(float64(chunkSamples))

		case r.WriterDone():
			// A slot published just before the flag may have been missed
			// by the CanRead check above; drain it before stopping.
			if r.CanRead() {
				continue
			}
			break loop

		case !s.proc.Alive():
			reason = reasonProcessExited
			break loop

		default:
			time.Sleep(pollInterval)
		}
	}

	s.finish(reason)
}

// finish surfaces the termination reason and releases everything in the
// fixed cleanup order.
func (s *RXSession) finish(reason stopReason) {
	if reason == reasonProcessExited {
		code := s.proc.Wait()
		if code != 0 {
			s.err = fmt.Errorf("%w: exit code %d", sdrproc.ErrProcessExitedEarly, code)
			s.tryWarn(Warning{
				Kind:      KindError,
				TimeLabel: s.elapsedLabel(),
				Detail:    fmt.Sprintf("streaming process exited with code %d", code),
			})
		} else {
			s.env.Logger.Info("streaming process finished before setting writer done")
		}
	}

	s.env.Logger.Info("rx session stopped", zap.String("reason", reason.String()))
	s.cleanup()

	close(s.finished)
	close(s.chunks)
	if !s.sharedWarnings {
		close(s.warnings)
	}
}
