package ring

import (
	"sync/atomic"
	"unsafe"
)

// Memory layout constants.
const (
	// HeaderSize is the fixed size of the ring header in bytes.
	HeaderSize = 64

	// SampleSize is the size of one complex int16 sample in bytes.
	SampleSize = 4

	// writerDoneBit marks that the producer will publish no more slots.
	writerDoneBit = uint16(1 << 0)
)

// IQ is one complex int16 sample: 16-bit little-endian two's complement
// real part followed by the imaginary part.
type IQ struct {
	I int16
	Q int16
}

// header is the typed view of the 64-byte region at the start of a ring
// file. Field offsets are part of the wire format shared with the external
// streaming process and must not change:
//
//	0x00 writeIndex       0x18 chunkSize    0x24 sampleSize
//	0x08 readIndex        0x1C numSlots     0x28 bufferStallCount
//	0x10 errorCount       0x20 numChannels  0x30 reserved
//	                      0x22 flags
//
// The 64-bit counters sit at 8-byte aligned offsets so they are directly
// addressable by sync/atomic.
type header struct {
	writeIndex       uint64
	readIndex        uint64
	errorCount       uint64
	chunkSize        uint32
	numSlots         uint32
	numChannels      uint16
	flags            uint16
	sampleSize       uint32
	bufferStallCount uint64
	reserved         [16]byte
}

// channelWord returns the 32-bit word that holds numChannels (low half)
// and flags (high half). flags has no aligned atomic access of its own,
// so flag updates go through this word; numChannels is immutable after
// creation, so the read-modify-write never clobbers live data.
func (h *header) channelWord() *uint32 {
	return (*uint32)(unsafe.Pointer(&h.numChannels))
}

// WriteIndex atomically loads the producer's write index. The load carries
// acquire semantics: every slot byte stored before the matching SetWriteIndex
// is visible after this returns.
func (h *header) WriteIndex() uint64 {
	return atomic.LoadUint64(&h.writeIndex)
}

// SetWriteIndex atomically publishes the write index. The store carries
// release semantics; the slot must be fully written before calling this.
func (h *header) SetWriteIndex(idx uint64) {
	atomic.StoreUint64(&h.writeIndex, idx)
}

// ReadIndex atomically loads the consumer's read index.
func (h *header) ReadIndex() uint64 {
	return atomic.LoadUint64(&h.readIndex)
}

// SetReadIndex atomically stores the read index, returning slot ownership
// to the producer.
func (h *header) SetReadIndex(idx uint64) {
	atomic.StoreUint64(&h.readIndex, idx)
}

// ErrorCount returns the producer-side overflow count (RX rings) or the
// consumer-side underflow count (TX rings).
func (h *header) ErrorCount() uint64 {
	return atomic.LoadUint64(&h.errorCount)
}

// AddErrorCount increments the error counter. Only the role that owns the
// counter calls this.
func (h *header) AddErrorCount(n uint64) {
	atomic.AddUint64(&h.errorCount, n)
}

// BufferStallCount returns the number of times the external consumer
// substituted zeros because the ring was momentarily empty.
func (h *header) BufferStallCount() uint64 {
	return atomic.LoadUint64(&h.bufferStallCount)
}

// AddBufferStallCount increments the stall counter.
func (h *header) AddBufferStallCount(n uint64) {
	atomic.AddUint64(&h.bufferStallCount, n)
}

// WriterDone reports whether the producer has marked the stream finished.
func (h *header) WriterDone() bool {
	w := atomic.LoadUint32(h.channelWord())
	return uint16(w>>16)&writerDoneBit != 0
}

// SetWriterDone marks the stream finished. Idempotent; the producer is the
// only role that calls it.
func (h *header) SetWriterDone() {
	atomic.OrUint32(h.channelWord(), uint32(writerDoneBit)<<16)
}

// ChunkSize returns the samples per chunk per channel. Immutable after
// creation.
func (h *header) ChunkSize() uint32 { return h.chunkSize }

// NumSlots returns the slot count. Immutable after creation.
func (h *header) NumSlots() uint32 { return h.numSlots }

// NumChannels returns the channel count. Immutable after creation.
func (h *header) NumChannels() uint16 { return h.numChannels }

// SampleSize returns the bytes per sample. Immutable after creation.
func (h *header) SampleSize() uint32 { return h.sampleSize }
