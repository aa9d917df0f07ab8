package stream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// DefaultDrainGrace is how long a finished transmit task waits after
// setting the writer-done flag before tearing the ring down, so the
// external consumer can flush the slots it has already buffered into DMA.
const DefaultDrainGrace = 500 * time.Millisecond

// TXConfig parameterizes a transmit session.
type TXConfig struct {
	// Params hold the radio settings and the ring path.
	Params sdrproc.Params

	// Binary is the external streaming executable.
	Binary string

	// LogPath receives the external process's combined output.
	LogPath string

	// Invocation, when non-nil, replaces the composed command line.
	Invocation *sdrproc.Invocation

	// StatsCapacity bounds the statistics channel.
	StatsCapacity int

	// WarningCapacity bounds the warnings channel.
	WarningCapacity int

	// DrainGrace overrides DefaultDrainGrace; zero keeps the default.
	DrainGrace time.Duration
}

// TXSession is a live transmit stream. It drains the input channel into
// the ring until the channel closes, then flags the stream done and tears
// everything down.
type TXSession struct {
	session
	in         <-chan *Frame
	stats      chan TxStats
	grace      time.Duration
	sampleRate int

	totalSamples uint64
}

// StartTX deletes any stale ring file, launches the external process,
// waits for it to create the ring, and starts the transmit task feeding
// from in.
func StartTX(ctx context.Context, in <-chan *Frame, cfg TXConfig, env Env) (*TXSession, error) {
	env = env.withDefaults()

	path := cfg.Params.ShmPath
	if err := ring.Delete(path); err != nil {
		return nil, err
	}

	inv := cfg.Params.Invocation(cfg.Binary, sdrproc.ModeTX)
	if cfg.Invocation != nil {
		inv = *cfg.Invocation
	}

	proc, err := sdrproc.Spawn(inv, cfg.LogPath, env.Logger)
	if err != nil {
		return nil, err
	}

	r, err := sdrproc.AwaitRing(path, proc, 0)
	if err != nil {
		proc.Terminate()
		ring.Delete(path)
		return nil, err
	}

	s := newTXSession(r, proc, in, make(chan Warning, cfg.WarningCapacity), false, cfg, env)

	env.Metrics.SessionsTotal.WithLabelValues("tx").Inc()
	env.Logger.Info("tx session started",
		zap.String("ring", path),
		zap.Int("channels", r.NumChannels()),
		zap.Int("chunk_size", r.ChunkSize()),
		zap.Int("num_slots", r.NumSlots()),
	)

	go s.run(ctx)
	return s, nil
}

// newTXSession wires a transmit task onto an open ring and running
// process. Duplex passes sharedWarnings=true and a host-created ring.
func newTXSession(r *ring.Ring, proc *sdrproc.Handle, in <-chan *Frame, warnings chan Warning, sharedWarnings bool, cfg TXConfig, env Env) *TXSession {
	grace := cfg.DrainGrace
	if grace == 0 {
		grace = DefaultDrainGrace
	}
	s := &TXSession{
		session:    newSession(r, proc, warnings, sharedWarnings, env),
		in:         in,
		stats:      make(chan TxStats, cfg.StatsCapacity),
		grace:      grace,
		sampleRate: cfg.Params.SampleRateHz,
	}
	env.Metrics.SessionsActive.Inc()
	return s
}

// Stats returns the per-chunk transmit statistics channel. Updates are
// published without blocking and dropped when the channel is full.
func (s *TXSession) Stats() <-chan TxStats {
	return s.stats
}

// Close stops the session without waiting for the input channel to drain
// and blocks until every resource is released.
func (s *TXSession) Close() error {
	s.signalStop()
	<-s.done
	return nil
}

// sampleLabel renders the stream position in seconds of transmitted
// samples for warnings.
func (s *TXSession) sampleLabel() string {
	if s.sampleRate <= 0 {
		return fmt.Sprintf("%d samples", s.totalSamples)
	}
	return fmt.Sprintf("%.4fs", float64(s.totalSamples)/float64(s.sampleRate))
}

// pollCounters surfaces underflow and stall increments as warnings.
func (s *TXSession) pollCounters(lastUnderflows, lastStalls *uint64) {
	r := s.ring
	if u := r.ErrorCount(); u > *lastUnderflows {
		s.tryWarn(Warning{
			Kind:      KindUnderflow,
			TimeLabel: s.sampleLabel(),
			Detail:    fmt.Sprintf("%d underflow events", u-*lastUnderflows),
		})
		s.env.Metrics.Underflows.Add(float64(u - *lastUnderflows))
		*lastUnderflows = u
	}
	if st := r.BufferStallCount(); st > *lastStalls {
		s.tryWarn(Warning{
			Kind:      KindBufferEmpty,
			TimeLabel: s.sampleLabel(),
			Detail:    fmt.Sprintf("%d empty-buffer events", st-*lastStalls),
		})
		s.env.Metrics.BufferStalls.Add(float64(st - *lastStalls))
		*lastStalls = st
	}
}

// run is the transmit hot loop: one frame from the input channel becomes
// one published ring slot, in order.
func (s *TXSession) run(ctx context.Context) {
	defer close(s.done)

	r := s.ring
	chunkSize := uint64(r.ChunkSize())
	var lastUnderflows, lastStalls uint64

	reason := reasonDrained

loop:
	for {
		var frame *Frame
		select {
		case <-ctx.Done():
			reason = reasonInterrupted
			break loop
		case <-s.stop:
			reason = reasonPipeClosed
			break loop
		case f, ok := <-s.in:
			if !ok {
				break loop
			}
			frame = f
		}

		s.pollCounters(&lastUnderflows, &lastStalls)

		// Wait for a free slot, watching the consumer's liveness.
		for !r.CanWrite() {
			if !s.proc.Alive() {
				s.tryWarn(Warning{
					Kind:      KindError,
					TimeLabel: s.sampleLabel(),
					Detail:    "streaming process died while ring was full",
				})
				reason = reasonProcessExited
				break loop
			}
			select {
			case <-ctx.Done():
				reason = reasonInterrupted
				break loop
			case <-s.stop:
				reason = reasonPipeClosed
				break loop
			default:
			}
			time.Sleep(pollInterval)
		}

		idx := r.WriteIndex()
		if err := copyFrame(r.SlotIQ(idx), frame, r.ChunkSize(), r.NumChannels()); err != nil {
			s.err = err
			s.tryWarn(Warning{Kind: KindError, TimeLabel: s.sampleLabel(), Detail: err.Error()})
			reason = reasonPipeClosed
			break loop
		}
		r.SetWriteIndex(idx + 1)

		s.totalSamples += chunkSize
		tryStats(s.stats, TxStats{TotalSamples: s.totalSamples})
		s.env.Metrics.ChunksDelivered.WithLabelValues("tx").Inc()
		s.env.Metrics.SamplesMoved.WithLabelValues("tx").Add(float64(r.ChunkSamples()))
	}

	s.finish(reason)
}

// finish flags the stream done, gives the external consumer time to
// flush, then releases everything in the fixed cleanup order.
func (s *TXSession) finish(reason stopReason) {
	s.ring.SetWriterDone()
	if reason != reasonProcessExited {
		// Let the peer drain the slots it has already claimed for DMA.
		time.Sleep(s.grace)
	}

	s.env.Logger.Info("tx session stopped",
		zap.String("reason", reason.String()),
		zap.Uint64("total_samples", s.totalSamples),
	)
	s.cleanup()

	close(s.finished)
	close(s.stats)
	if !s.sharedWarnings {
		close(s.warnings)
	}
}

// copyFrame places one frame into a ring slot in the wire layout:
// channel-interleaved complex int16, sample by sample.
func copyFrame(dst []IQ, f *Frame, chunkSize, channels int) error {
	if f.Samples != chunkSize || f.Channels != channels {
		return fmt.Errorf("frame shape (%d, %d) does not match ring chunk (%d, %d)",
			f.Samples, f.Channels, chunkSize, channels)
	}

	switch {
	case f.IsReal():
		// Widen real int16 to complex with zero imaginary part.
		for ch := 0; ch < channels; ch++ {
			src := f.Real[ch*f.Samples : (ch+1)*f.Samples]
			for i, v := range src {
				dst[i*channels+ch] = IQ{I: v}
			}
		}
	case channels == 1:
		copy(dst, f.Data)
	default:
		// Transpose from per-channel planes to sample interleaving.
		for ch := 0; ch < channels; ch++ {
			src := f.Data[ch*f.Samples : (ch+1)*f.Samples]
			for i, v := range src {
				dst[i*channels+ch] = v
			}
		}
	}
	return nil
}
