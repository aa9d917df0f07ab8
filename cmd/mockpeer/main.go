package main

import (
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/logging"
	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/stream"
)

// counterMax is the wrap point of the deterministic sample sequence.
const counterMax = 32000

type options struct {
	device     int
	sampleRate int
	rxFreq     int
	txFreq     int
	rxGain     int
	txGain     int
	agcMode    string
	bandwidth  int
	channels   int

	shmPath   string
	rxShmPath string
	txShmPath string

	bufferTime   float64
	rxBufferTime float64
	txBufferTime float64

	numSamples uint64
	chunkSize  uint
	quiet      bool
	waitPeer   bool
}

func main() {
	var opts options
	flag.IntVar(&opts.device, "c", 0, "device index")
	flag.IntVar(&opts.sampleRate, "samplerate", 40_000_000, "sample rate in hertz")
	flag.IntVar(&opts.rxFreq, "rx_freq", 0, "receive centre frequency in hertz")
	flag.IntVar(&opts.txFreq, "tx_freq", 0, "transmit centre frequency in hertz")
	flag.IntVar(&opts.rxGain, "rx_gain", 0, "receive gain in dB")
	flag.IntVar(&opts.txGain, "tx_gain", 0, "transmit gain in dB (attenuation permitted)")
	flag.StringVar(&opts.agcMode, "agc_mode", "manual", "AGC mode")
	flag.IntVar(&opts.bandwidth, "bandwidth", 0, "analog bandwidth in hertz")
	flag.IntVar(&opts.channels, "channels", 1, "channel count (1 or 2)")
	flag.StringVar(&opts.shmPath, "shm_path", "", "ring file path (simplex)")
	flag.StringVar(&opts.rxShmPath, "rx_shm_path", "", "receive ring file path (duplex)")
	flag.StringVar(&opts.txShmPath, "tx_shm_path", "", "transmit ring file path (duplex)")
	flag.Float64Var(&opts.bufferTime, "buffer_time", 3, "ring depth in seconds (simplex)")
	flag.Float64Var(&opts.rxBufferTime, "rx_buffer_time", 3, "receive ring depth in seconds (duplex)")
	flag.Float64Var(&opts.txBufferTime, "tx_buffer_time", 3, "transmit ring depth in seconds (duplex)")
	flag.Uint64Var(&opts.numSamples, "num_samples", 0, "total samples to stream, 0 = unbounded")
	flag.UintVar(&opts.chunkSize, "chunk_size", 256, "samples per chunk per channel")
	flag.BoolVar(&opts.quiet, "q", false, "suppress output")
	flag.BoolVar(&opts.waitPeer, "w", false, "wait for the peer to create the transmit ring")
	flag.Parse()

	logger := logging.NewDefault()
	if opts.quiet {
		logger = logging.NewNop()
	}

	// Which flags were given decides the mode, as with the hardware
	// binary: both duplex paths, or a simplex path plus the direction
	// implied by the frequency flags.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	switch {
	case opts.rxShmPath != "" && opts.txShmPath != "":
		runDuplex(opts, logger)
	case opts.shmPath == "":
		log.Fatal("one of -shm_path or -rx_shm_path/-tx_shm_path is required")
	case set["tx_freq"] && !set["rx_freq"]:
		runTX(opts, opts.shmPath, true, logger)
	default:
		runRX(opts, opts.shmPath, opts.bufferTime, logger)
	}
}

// runRX creates the ring and produces the deterministic counter sequence,
// the same one the streaming test suites expect: both sample parts follow
// c' = (c mod 32000) + 1, advancing once per (sample, channel) pair.
func runRX(opts options, path string, bufferTime float64, logger *logging.Logger) {
	slots := deriveSlots(bufferTime, opts.sampleRate, int(opts.chunkSize))
	r, err := ring.Create(path, uint32(opts.chunkSize), slots, uint16(opts.channels))
	if err != nil {
		log.Fatalf("create ring: %v", err)
	}
	defer r.Close()

	logger.Info("producing",
		zap.String("ring", path),
		zap.Uint("chunk_size", opts.chunkSize),
		zap.Uint32("slots", slots),
		zap.Int("channels", opts.channels),
	)

	chunkSamples := uint64(opts.chunkSize)
	v := int16(1)
	var produced uint64
	for opts.numSamples == 0 || produced < opts.numSamples {
		for !r.CanWrite() {
			time.Sleep(time.Millisecond)
		}
		idx := r.WriteIndex()
		slot := r.SlotIQ(idx)
		for i := range slot {
			slot[i] = ring.IQ{I: v, Q: v}
			v = v%counterMax + 1
		}
		r.SetWriteIndex(idx + 1)
		produced += chunkSamples
	}
	r.SetWriterDone()

	logger.Info("producer finished", zap.Uint64("samples", produced))
}

// runTX drains the ring the host produces into until the writer-done flag
// is set, reporting the mean power of what it consumed. In simplex mode
// (create) it creates the ring itself, as the host open-polls for it; in
// duplex mode it opens the ring the host created.
func runTX(opts options, path string, create bool, logger *logging.Logger) {
	var r *ring.Ring
	if create {
		slots := deriveSlots(opts.bufferTime, opts.sampleRate, int(opts.chunkSize))
		var err error
		r, err = ring.Create(path, uint32(opts.chunkSize), slots, uint16(opts.channels))
		if err != nil {
			log.Fatalf("create ring: %v", err)
		}
	} else {
		r = openWithRetry(path)
	}
	defer r.Close()

	chunk := stream.NewChunk(r.NumChannels(), r.ChunkSize())
	var drained uint64
	var power float64
	var chunks int

	for {
		if r.CanRead() {
			idx := r.ReadIndex()
			copy(chunk.Data, r.SlotIQ(idx))
			r.SetReadIndex(idx + 1)
			drained += uint64(r.ChunkSize())
			power += chunk.MeanPower()
			chunks++
		} else if r.WriterDone() {
			break
		} else {
			// Once the stream has started, an empty ring is a stall the
			// hardware would zero-fill; account for it the same way.
			if r.WriteIndex() > 0 {
				r.AddBufferStallCount(1)
			}
			time.Sleep(time.Millisecond)
		}
	}

	if chunks > 0 {
		logger.Info("consumer finished",
			zap.Uint64("samples", drained),
			zap.Float64("mean_power", power/float64(chunks)),
		)
	}
}

// runDuplex serves both directions at once: produce into the receive
// ring, drain the transmit ring the peer creates.
func runDuplex(opts options, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runTX(opts, opts.txShmPath, false, logger)
	}()

	runRX(opts, opts.rxShmPath, opts.rxBufferTime, logger)
	<-done
}

// openWithRetry polls until the ring exists and validates, mirroring the
// wait-for-peer-ring behaviour of the hardware binary.
func openWithRetry(path string) *ring.Ring {
	deadline := time.Now().Add(10 * time.Second)
	for {
		r, err := ring.Open(path)
		if err == nil {
			return r
		}
		if time.Now().After(deadline) {
			log.Fatalf("open ring %s: %v", path, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// deriveSlots converts a buffering duration to a slot count.
func deriveSlots(bufferTime float64, sampleRate, chunkSize int) uint32 {
	if bufferTime <= 0 || sampleRate <= 0 || chunkSize <= 0 {
		return 4
	}
	slots := uint32(bufferTime * float64(sampleRate) / float64(chunkSize))
	if slots < 4 {
		slots = 4
	}
	if slots > 1<<16 {
		slots = 1 << 16
	}
	return slots
}
