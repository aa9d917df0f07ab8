package stream

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// DuplexConfig parameterizes a full-duplex session: one external process
// acting as both the RX producer and the TX consumer, over two rings.
type DuplexConfig struct {
	// Params hold both directions' radio settings and the two ring paths.
	Params sdrproc.Params

	// Binary is the external streaming executable.
	Binary string

	// LogPath receives the external process's combined output.
	LogPath string

	// Invocation, when non-nil, replaces the composed command line.
	Invocation *sdrproc.Invocation

	// TXChunkSize is the samples per chunk per channel of the host-created
	// transmit ring.
	TXChunkSize int

	ChunkCapacity   int
	StatsCapacity   int
	WarningCapacity int
	DrainGrace      time.Duration
}

// DuplexSession couples an RX task and a TX task over one external
// process. The tasks are independent except for the shared process handle
// and the shared warnings channel.
type DuplexSession struct {
	rx *RXSession
	tx *TXSession

	warnings chan Warning
	done     chan struct{}
}

// StartDuplex creates the transmit ring, launches the external process in
// full-duplex mode, waits for it to create the receive ring, and starts
// both tasks. The process terminates when the last task finishes; each
// task unmaps and deletes its own ring.
func StartDuplex(ctx context.Context, channels int, in <-chan *Frame, cfg DuplexConfig, env Env) (*DuplexSession, error) {
	env = env.withDefaults()

	if channels != 1 && channels != 2 {
		return nil, errors.New("channels must be 1 or 2")
	}

	rxPath := cfg.Params.RXShmPath
	txPath := cfg.Params.TXShmPath
	if err := ring.Delete(rxPath); err != nil {
		return nil, err
	}
	if err := ring.Delete(txPath); err != nil {
		return nil, err
	}

	// Host is the TX producer, so it creates the TX ring; the external
	// process is started with the wait-for-peer-ring switch and opens it.
	txSlots := ringSlots(cfg.Params.TXBufferTime, cfg.Params.SampleRateHz, cfg.TXChunkSize)
	txRing, err := ring.Create(txPath, uint32(cfg.TXChunkSize), txSlots, uint16(channels))
	if err != nil {
		return nil, err
	}

	inv := cfg.Params.Invocation(cfg.Binary, sdrproc.ModeDuplex)
	if cfg.Invocation != nil {
		inv = *cfg.Invocation
	}

	proc, err := sdrproc.Spawn(inv, cfg.LogPath, env.Logger)
	if err != nil {
		txRing.Close()
		ring.Delete(txPath)
		return nil, err
	}

	rxRing, err := sdrproc.AwaitRing(rxPath, proc, channels)
	if err != nil {
		proc.Terminate()
		txRing.Close()
		ring.Delete(txPath)
		ring.Delete(rxPath)
		return nil, err
	}

	// Two tasks share the handle; the last to finish performs the kill.
	proc.Retain()

	warnings := make(chan Warning, cfg.WarningCapacity)

	s := &DuplexSession{
		warnings: warnings,
		done:     make(chan struct{}),
	}
	s.rx = startRXTask(ctx, rxRing, proc, warnings, cfg.ChunkCapacity, env)
	s.tx = newTXSession(txRing, proc, in, warnings, true, TXConfig{
		Params:        cfg.Params,
		StatsCapacity: cfg.StatsCapacity,
		DrainGrace:    cfg.DrainGrace,
	}, env)
	go s.tx.run(ctx)

	env.Metrics.SessionsTotal.WithLabelValues("duplex").Inc()
	env.Logger.Info("duplex session started",
		zap.String("rx_ring", rxPath),
		zap.String("tx_ring", txPath),
		zap.Int("channels", channels),
	)

	// The shared warnings channel closes only after both directions are
	// finished.
	go func() {
		<-s.rx.done
		<-s.tx.done
		close(warnings)
		close(s.done)
	}()

	return s, nil
}

// ringSlots derives a slot count from the requested buffering duration,
// with a floor that keeps the ring usable when the duration is tiny.
func ringSlots(bufferTime float64, sampleRateHz, chunkSize int) uint32 {
	if bufferTime <= 0 || sampleRateHz <= 0 || chunkSize <= 0 {
		return 4
	}
	slots := uint32(bufferTime * float64(sampleRateHz) / float64(chunkSize))
	if slots < 4 {
		slots = 4
	}
	return slots
}

// Chunks returns the receive delivery channel.
func (s *DuplexSession) Chunks() <-chan *Chunk {
	return s.rx.Chunks()
}

// Stats returns the transmit statistics channel.
func (s *DuplexSession) Stats() <-chan TxStats {
	return s.tx.Stats()
}

// Warnings returns the warning stream shared by both directions.
func (s *DuplexSession) Warnings() <-chan Warning {
	return s.warnings
}

// Close stops both directions and blocks until every resource is
// released.
func (s *DuplexSession) Close() error {
	s.rx.signalStop()
	s.tx.signalStop()
	<-s.done
	return nil
}

// Err reports the terminal error of either direction once the session has
// finished.
func (s *DuplexSession) Err() error {
	select {
	case <-s.rx.finished:
	default:
		return nil
	}
	select {
	case <-s.tx.finished:
	default:
		return nil
	}
	return errors.Join(s.rx.err, s.tx.err)
}
