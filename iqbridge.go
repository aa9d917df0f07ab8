package iqbridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/radioforge/iqbridge/internal/bridge"
	"github.com/radioforge/iqbridge/internal/config"
	"github.com/radioforge/iqbridge/internal/logging"
	"github.com/radioforge/iqbridge/internal/monitoring"
	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
	"github.com/radioforge/iqbridge/internal/shared/id"
	"github.com/radioforge/iqbridge/internal/shared/paths"
	"github.com/radioforge/iqbridge/internal/stream"
)

// Re-exported streaming types; see the stream package for details.
type (
	// IQ is one complex int16 sample.
	IQ = stream.IQ
	// Chunk is a received matrix shaped (channels, samples).
	Chunk = stream.Chunk
	// Frame is a transmit matrix shaped (samples, channels).
	Frame = stream.Frame
	// Warning is an out-of-band streaming notification.
	Warning = stream.Warning
	// TxStats is the running transmit sample count.
	TxStats = stream.TxStats
	// RXSession is a live receive stream.
	RXSession = stream.RXSession
	// TXSession is a live transmit stream.
	TXSession = stream.TXSession
	// DuplexSession is a live bidirectional stream.
	DuplexSession = stream.DuplexSession
	// RingStats is a snapshot of a ring file's counters.
	RingStats = ring.Stats
)

var (
	envOnce    sync.Once
	sharedEnv  stream.Env
	sharedCfg  *config.Config
	metricsSrv *monitoring.Server
)

// env lazily builds the ambient collaborators shared by all sessions:
// one logger, one metrics collector, and (when configured) one debug
// server.
func env() (stream.Env, *config.Config) {
	envOnce.Do(func() {
		sharedCfg = config.LoadOrDefault()

		logger, err := logging.New(logging.Config{
			Level:       sharedCfg.Logging.Level,
			Development: sharedCfg.Logging.Development,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			logger = logging.NewNop()
		}

		metrics := monitoring.NewMetrics()
		sharedEnv = stream.Env{Logger: logger, Metrics: metrics}

		if sharedCfg.Metrics.Addr != "" {
			metricsSrv = monitoring.NewServer(sharedCfg.Metrics.Addr, metrics, logger)
			metricsSrv.Start()
		}
	})
	return sharedEnv, sharedCfg
}

// StartRX launches the external process in receive mode and returns a
// session delivering chunks shaped (channels, samples). Startup errors
// are returned synchronously; once the session exists, its channels are
// the only failure surface.
func StartRX(ctx context.Context, channels int, p RXParams) (*RXSession, error) {
	e, cfg := env()

	if p.SampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.SampleRateHz)
	}
	sessionID := id.NewSessionID()
	fillRXDefaults(&p, cfg, sessionID)

	return stream.StartRX(ctx, channels, stream.RXConfig{
		Params: sdrproc.Params{
			DeviceIndex:  p.DeviceIndex,
			SampleRateHz: p.SampleRateHz,
			RXFreqHz:     p.FrequencyHz,
			RXGainDB:     p.GainDB,
			AGC:          p.AGC,
			BandwidthHz:  p.BandwidthHz,
			Channels:     channels,
			ShmPath:      p.RingPath,
			BufferTime:   p.BufferTime,
			NumSamples:   p.SampleCap,
			Quiet:        p.Quiet,
		},
		Binary:          p.Binary,
		LogPath:         paths.ProcessLog(cfg.Paths.LogDir, "rx", sessionID),
		Invocation:      p.Invocation,
		ChunkCapacity:   p.ChunkCapacity,
		WarningCapacity: p.WarningCapacity,
	}, e)
}

// StartTX launches the external process in transmit mode and returns a
// session draining in until it closes. Frames carry complex or real
// int16 samples shaped (samples, channels); real samples are widened to
// complex with zero imaginary part.
func StartTX(ctx context.Context, in <-chan *Frame, p TXParams) (*TXSession, error) {
	e, cfg := env()

	if p.SampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.SampleRateHz)
	}
	sessionID := id.NewSessionID()
	fillTXDefaults(&p, cfg, sessionID)

	return stream.StartTX(ctx, in, stream.TXConfig{
		Params: sdrproc.Params{
			DeviceIndex:  p.DeviceIndex,
			SampleRateHz: p.SampleRateHz,
			TXFreqHz:     p.FrequencyHz,
			TXGainDB:     p.GainDB,
			BandwidthHz:  p.BandwidthHz,
			ShmPath:      p.RingPath,
			BufferTime:   p.BufferTime,
			Quiet:        p.Quiet,
		},
		Binary:          p.Binary,
		LogPath:         paths.ProcessLog(cfg.Paths.LogDir, "tx", sessionID),
		Invocation:      p.Invocation,
		StatsCapacity:   p.StatsCapacity,
		WarningCapacity: p.WarningCapacity,
		DrainGrace:      p.DrainGrace,
	}, e)
}

// StartDuplex launches one external process serving both directions and
// returns a session coupling a receive task and a transmit task.
func StartDuplex(ctx context.Context, channels int, in <-chan *Frame, p DuplexParams) (*DuplexSession, error) {
	e, cfg := env()

	if p.RX.SampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.RX.SampleRateHz)
	}
	if p.TXChunkSize <= 0 {
		p.TXChunkSize = DefaultDuplexParams().TXChunkSize
	}
	sessionID := id.NewSessionID()
	fillRXDefaults(&p.RX, cfg, sessionID)
	fillTXDefaults(&p.TX, cfg, sessionID)

	return stream.StartDuplex(ctx, channels, in, stream.DuplexConfig{
		Params: sdrproc.Params{
			DeviceIndex:  p.RX.DeviceIndex,
			SampleRateHz: p.RX.SampleRateHz,
			RXFreqHz:     p.RX.FrequencyHz,
			TXFreqHz:     p.TX.FrequencyHz,
			RXGainDB:     p.RX.GainDB,
			TXGainDB:     p.TX.GainDB,
			AGC:          p.RX.AGC,
			BandwidthHz:  p.RX.BandwidthHz,
			Channels:     channels,
			RXShmPath:    p.RX.RingPath,
			TXShmPath:    p.TX.RingPath,
			RXBufferTime: p.RX.BufferTime,
			TXBufferTime: p.TX.BufferTime,
			NumSamples:   p.RX.SampleCap,
			Quiet:        p.RX.Quiet,
		},
		Binary:          p.RX.Binary,
		LogPath:         paths.ProcessLog(cfg.Paths.LogDir, "duplex", sessionID),
		Invocation:      p.RX.Invocation,
		TXChunkSize:     p.TXChunkSize,
		ChunkCapacity:   p.RX.ChunkCapacity,
		StatsCapacity:   p.TX.StatsCapacity,
		WarningCapacity: p.RX.WarningCapacity,
		DrainGrace:      p.TX.DrainGrace,
	}, e)
}

// Frames repackages a receive chunk stream into the (samples, channels)
// shape downstream signal consumers take, using a frame pool of
// capacity+2. The returned channel closes when the chunk stream closes.
func Frames(chunks <-chan *Chunk, capacity int) <-chan *Frame {
	return bridge.Frames(chunks, capacity)
}

// ReadStats snapshots the counters of an existing ring file without
// disturbing the stream.
func ReadStats(path string) (RingStats, error) {
	return ring.ReadStats(path)
}

// DeleteRing removes a ring file; removing an absent file is a no-op.
func DeleteRing(path string) error {
	return ring.Delete(path)
}

// fillRXDefaults resolves the structural zero values against the ambient
// configuration.
func fillRXDefaults(p *RXParams, cfg *config.Config, sessionID id.SessionID) {
	if p.BandwidthHz == 0 {
		p.BandwidthHz = p.SampleRateHz
	}
	if p.RingPath == "" {
		p.RingPath = paths.Ring(cfg.Paths.ShmDir, "rx", sessionID)
	}
	if p.Binary == "" {
		p.Binary = cfg.Process.Binary
	}
	if p.ChunkCapacity == 0 {
		p.ChunkCapacity = 100
	}
	if p.WarningCapacity == 0 {
		p.WarningCapacity = 16
	}
	if p.AGC == "" {
		p.AGC = AGCManual
	}
	if p.BufferTime == 0 {
		p.BufferTime = 3
	}
}

// fillTXDefaults resolves the structural zero values against the ambient
// configuration.
func fillTXDefaults(p *TXParams, cfg *config.Config, sessionID id.SessionID) {
	if p.BandwidthHz == 0 {
		p.BandwidthHz = p.SampleRateHz
	}
	if p.RingPath == "" {
		p.RingPath = paths.Ring(cfg.Paths.ShmDir, "tx", sessionID)
	}
	if p.Binary == "" {
		p.Binary = cfg.Process.Binary
	}
	if p.StatsCapacity == 0 {
		p.StatsCapacity = 1000
	}
	if p.WarningCapacity == 0 {
		p.WarningCapacity = 16
	}
	if p.BufferTime == 0 {
		p.BufferTime = 3
	}
}
