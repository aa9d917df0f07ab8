package iqbridge

import (
	"time"

	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// AGCMode selects the radio's automatic gain control behaviour.
type AGCMode = sdrproc.AGCMode

// Supported AGC modes.
const (
	AGCManual     = sdrproc.AGCManual
	AGCFastAttack = sdrproc.AGCFastAttack
	AGCSlowAttack = sdrproc.AGCSlowAttack
	AGCHybrid     = sdrproc.AGCHybrid
)

// Invocation overrides the external process command line; tests use it to
// run without hardware.
type Invocation = sdrproc.Invocation

// RXParams configure a receive session. Start from DefaultRXParams and
// adjust; zero-valued structural fields (paths, bandwidth, capacities)
// are filled in at start.
type RXParams struct {
	SampleRateHz int
	FrequencyHz  int
	GainDB       int
	AGC          AGCMode

	// BandwidthHz defaults to the sample rate.
	BandwidthHz int

	// BufferTime is the ring depth in seconds; the external process
	// derives the slot count from it.
	BufferTime float64

	// SampleCap bounds the total samples streamed; zero means unbounded.
	SampleCap uint64

	// RingPath defaults to a unique file under the configured
	// shared-memory directory.
	RingPath string

	DeviceIndex int

	// ChunkCapacity bounds the delivery channel; the chunk reuse pool is
	// two larger.
	ChunkCapacity int

	// WarningCapacity bounds the warnings channel.
	WarningCapacity int

	Quiet bool

	// Binary defaults to the configured external streaming executable.
	Binary string

	// Invocation, when non-nil, replaces the composed command line.
	Invocation *Invocation
}

// DefaultRXParams returns the standard receive configuration.
func DefaultRXParams() RXParams {
	return RXParams{
		SampleRateHz:    40_000_000,
		FrequencyHz:     5_000_000_000,
		GainDB:          20,
		AGC:             AGCManual,
		BufferTime:      3,
		ChunkCapacity:   100,
		WarningCapacity: 16,
	}
}

// TXParams configure a transmit session.
type TXParams struct {
	SampleRateHz int
	FrequencyHz  int

	// GainDB is signed; negative values are attenuation.
	GainDB int

	BandwidthHz int
	BufferTime  float64
	RingPath    string
	DeviceIndex int

	StatsCapacity   int
	WarningCapacity int

	Quiet bool

	// DrainGrace is how long the session waits after flagging the stream
	// done before tearing the ring down, so the external consumer can
	// flush DMA-buffered slots. Zero keeps the default of 500 ms.
	DrainGrace time.Duration

	Binary     string
	Invocation *Invocation
}

// DefaultTXParams returns the standard transmit configuration.
func DefaultTXParams() TXParams {
	return TXParams{
		SampleRateHz:    40_000_000,
		FrequencyHz:     5_000_000_000,
		GainDB:          -10,
		BufferTime:      3,
		StatsCapacity:   1000,
		WarningCapacity: 16,
	}
}

// DuplexParams configure a full-duplex session: one external process,
// two rings, two tasks.
type DuplexParams struct {
	RX RXParams
	TX TXParams

	// TXChunkSize is the samples per chunk per channel of the
	// host-created transmit ring.
	TXChunkSize int
}

// DefaultDuplexParams returns the standard full-duplex configuration.
func DefaultDuplexParams() DuplexParams {
	return DuplexParams{
		RX:          DefaultRXParams(),
		TX:          DefaultTXParams(),
		TXChunkSize: 8192,
	}
}
