package sdrproc

import (
	"fmt"
	"strconv"
)

// AGCMode selects the automatic gain control behaviour of the radio
// front end.
type AGCMode string

// Supported AGC modes, passed verbatim to the external process.
const (
	AGCManual     AGCMode = "manual"
	AGCFastAttack AGCMode = "fast_attack"
	AGCSlowAttack AGCMode = "slow_attack"
	AGCHybrid     AGCMode = "hybrid"
)

// Valid reports whether the mode is one the external process accepts.
func (m AGCMode) Valid() bool {
	switch m {
	case AGCManual, AGCFastAttack, AGCSlowAttack, AGCHybrid:
		return true
	}
	return false
}

// Mode selects which direction(s) the external process streams.
type Mode int

// Streaming modes.
const (
	ModeRX Mode = iota
	ModeTX
	ModeDuplex
)

// Params are the typed parameters the external process invocation is
// composed from. Frequencies and rates are integer hertz, gains are signed
// integer decibels (attenuation permitted), buffer times are fractional
// seconds.
type Params struct {
	DeviceIndex  int
	SampleRateHz int
	RXFreqHz     int
	TXFreqHz     int
	RXGainDB     int
	TXGainDB     int
	AGC          AGCMode
	BandwidthHz  int
	Channels     int

	// Simplex ring path, or the per-direction pair for duplex.
	ShmPath   string
	RXShmPath string
	TXShmPath string

	// Ring depth in seconds; the external process derives slot counts
	// from these.
	BufferTime   float64
	RXBufferTime float64
	TXBufferTime float64

	// Total samples to stream; zero means unbounded.
	NumSamples uint64

	Quiet bool
}

// Invocation is a fully composed external process command line. Tests
// inject their own to run without hardware.
type Invocation struct {
	Path string
	Args []string
}

// Invocation composes the command line for the given binary and mode.
func (p Params) Invocation(binary string, mode Mode) Invocation {
	args := []string{
		"-c", strconv.Itoa(p.DeviceIndex),
		"-samplerate", strconv.Itoa(p.SampleRateHz),
	}

	switch mode {
	case ModeRX:
		args = append(args,
			"-rx_freq", strconv.Itoa(p.RXFreqHz),
			"-rx_gain", strconv.Itoa(p.RXGainDB),
			"-agc_mode", string(p.AGC),
			"-bandwidth", strconv.Itoa(p.BandwidthHz),
			"-channels", strconv.Itoa(p.Channels),
			"-shm_path", p.ShmPath,
			"-buffer_time", formatSeconds(p.BufferTime),
			"-num_samples", strconv.FormatUint(p.NumSamples, 10),
		)
	case ModeTX:
		args = append(args,
			"-tx_freq", strconv.Itoa(p.TXFreqHz),
			"-tx_gain", strconv.Itoa(p.TXGainDB),
			"-bandwidth", strconv.Itoa(p.BandwidthHz),
			"-shm_path", p.ShmPath,
			"-buffer_time", formatSeconds(p.BufferTime),
			"-num_samples", strconv.FormatUint(p.NumSamples, 10),
		)
	case ModeDuplex:
		args = append(args,
			"-rx_freq", strconv.Itoa(p.RXFreqHz),
			"-tx_freq", strconv.Itoa(p.TXFreqHz),
			"-rx_gain", strconv.Itoa(p.RXGainDB),
			"-tx_gain", strconv.Itoa(p.TXGainDB),
			"-agc_mode", string(p.AGC),
			"-bandwidth", strconv.Itoa(p.BandwidthHz),
			"-channels", strconv.Itoa(p.Channels),
			"-rx_shm_path", p.RXShmPath,
			"-tx_shm_path", p.TXShmPath,
			"-rx_buffer_time", formatSeconds(p.RXBufferTime),
			"-tx_buffer_time", formatSeconds(p.TXBufferTime),
			"-num_samples", strconv.FormatUint(p.NumSamples, 10),
			"-w",
		)
	}

	if p.Quiet {
		args = append(args, "-q")
	}

	return Invocation{Path: binary, Args: args}
}

// formatSeconds renders a fractional-second flag value without trailing
// zeros, matching what the external process parses.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'g', -1, 64)
}

// Validate checks the parameter combinations shared by all modes.
func (p Params) Validate(mode Mode) error {
	if p.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRateHz)
	}
	if mode != ModeTX {
		if p.Channels != 1 && p.Channels != 2 {
			return fmt.Errorf("channels must be 1 or 2, got %d", p.Channels)
		}
		if !p.AGC.Valid() {
			return fmt.Errorf("unknown agc mode %q", p.AGC)
		}
	}
	return nil
}
