package ring

import (
	"fmt"
	"os"
	"unsafe"
)

// Ring is a mapped view of a ring file. The zero value is not usable; build
// one with Create or Open.
type Ring struct {
	file       *os.File
	mem        []byte
	hdr        *header
	path       string
	chunkBytes int
}

// Create makes a new ring file at path with the given geometry, sizes it
// exactly, writes the immutable header metadata, and maps it read-write.
// The file must not already exist; callers that tolerate stale files from a
// crashed session delete them first.
func Create(path string, chunkSize, numSlots uint32, numChannels uint16) (*Ring, error) {
	if chunkSize == 0 || numSlots == 0 {
		return nil, fmt.Errorf("%w: chunk_size=%d num_slots=%d", ErrRingMalformed, chunkSize, numSlots)
	}
	if numChannels != 1 && numChannels != 2 {
		return nil, fmt.Errorf("%w: num_channels=%d", ErrRingMalformed, numChannels)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create ring file %s: %w", path, err)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	chunkBytes := int(chunkSize) * int(numChannels) * SampleSize
	total := HeaderSize + int64(numSlots)*int64(chunkBytes)
	if err := file.Truncate(total); err != nil {
		cleanup()
		return nil, fmt.Errorf("resize ring file: %w", err)
	}

	mem, err := mmapFile(file, int(total))
	if err != nil {
		cleanup()
		return nil, err
	}

	r := &Ring{
		file:       file,
		mem:        mem,
		hdr:        (*header)(unsafe.Pointer(&mem[0])),
		path:       path,
		chunkBytes: chunkBytes,
	}

	// Truncate zeroed the region; only the immutable metadata needs writing.
	// Metadata must be in place before either role observes a nonzero write
	// index, and creation happens before the peer can open the file.
	r.hdr.chunkSize = chunkSize
	r.hdr.numSlots = numSlots
	r.hdr.numChannels = numChannels
	r.hdr.sampleSize = SampleSize

	return r, nil
}

// Open maps an existing ring file read-write and validates its header.
// Returns ErrRingAbsent if the file does not exist, ErrRingTooSmall if the
// file cannot hold a header, and ErrRingMalformed if the header violates the
// layout invariants. All three are expected while the external process is
// still creating the ring and are retried by the supervisor.
func Open(path string) (*Ring, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRingAbsent, path)
		}
		return nil, fmt.Errorf("open ring file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat ring file: %w", err)
	}
	size := info.Size()
	if size < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrRingTooSmall, size)
	}

	mem, err := mmapFile(file, int(size))
	if err != nil {
		file.Close()
		return nil, err
	}

	r := &Ring{
		file: file,
		mem:  mem,
		hdr:  (*header)(unsafe.Pointer(&mem[0])),
		path: path,
	}

	if err := r.validate(size); err != nil {
		syncAndUnmap(mem)
		file.Close()
		return nil, err
	}
	r.chunkBytes = int(r.hdr.ChunkSize()) * int(r.hdr.NumChannels()) * SampleSize

	return r, nil
}

// validate checks the header invariants and that the file is large enough
// for the geometry the header declares. Slot addressing after a successful
// validate needs no further bounds checks.
func (r *Ring) validate(size int64) error {
	h := r.hdr
	if h.ChunkSize() == 0 || h.NumSlots() == 0 {
		return fmt.Errorf("%w: chunk_size=%d num_slots=%d", ErrRingMalformed, h.ChunkSize(), h.NumSlots())
	}
	if n := h.NumChannels(); n != 1 && n != 2 {
		return fmt.Errorf("%w: num_channels=%d", ErrRingMalformed, n)
	}
	if h.SampleSize() != SampleSize {
		return fmt.Errorf("%w: sample_size=%d", ErrRingMalformed, h.SampleSize())
	}
	expected := HeaderSize + int64(h.NumSlots())*int64(h.ChunkSize())*int64(h.NumChannels())*SampleSize
	if size < expected {
		return fmt.Errorf("%w: file %d bytes, geometry needs %d", ErrRingMalformed, size, expected)
	}
	return nil
}

// Close flushes the mapping and releases it, then closes the file handle.
// It does not delete the file; see Delete.
func (r *Ring) Close() error {
	var firstErr error
	if r.mem != nil {
		if err := syncAndUnmap(r.mem); err != nil {
			firstErr = err
		}
		r.mem = nil
		r.hdr = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.file = nil
	}
	return firstErr
}

// Path returns the backing file path.
func (r *Ring) Path() string { return r.path }

// ChunkSize returns the samples per chunk per channel.
func (r *Ring) ChunkSize() int { return int(r.hdr.ChunkSize()) }

// NumSlots returns the slot count.
func (r *Ring) NumSlots() int { return int(r.hdr.NumSlots()) }

// NumChannels returns the channel count.
func (r *Ring) NumChannels() int { return int(r.hdr.NumChannels()) }

// ChunkSamples returns the samples per slot across all channels.
func (r *Ring) ChunkSamples() int { return int(r.hdr.ChunkSize()) * int(r.hdr.NumChannels()) }

// SlotBytes returns the raw storage of the slot addressed by a free-running
// index. Bounds were established at Create/Open time; the hot path slices
// the mapping directly.
func (r *Ring) SlotBytes(index uint64) []byte {
	off := HeaderSize + int(index%uint64(r.hdr.NumSlots()))*r.chunkBytes
	return r.mem[off : off+r.chunkBytes : off+r.chunkBytes]
}

// SlotIQ returns the slot addressed by a free-running index viewed as
// complex int16 samples, channel-interleaved sample by sample.
func (r *Ring) SlotIQ(index uint64) []IQ {
	b := r.SlotBytes(index)
	return unsafe.Slice((*IQ)(unsafe.Pointer(&b[0])), len(b)/SampleSize)
}

// WriteIndex loads the producer's write index with acquire semantics.
func (r *Ring) WriteIndex() uint64 { return r.hdr.WriteIndex() }

// SetWriteIndex publishes the write index with release semantics. The slot
// must be fully written first.
func (r *Ring) SetWriteIndex(idx uint64) { r.hdr.SetWriteIndex(idx) }

// ReadIndex loads the consumer's read index with acquire semantics.
func (r *Ring) ReadIndex() uint64 { return r.hdr.ReadIndex() }

// SetReadIndex stores the read index with release semantics, returning the
// consumed slot to the producer.
func (r *Ring) SetReadIndex(idx uint64) { r.hdr.SetReadIndex(idx) }

// ErrorCount returns the ring's error counter: overflows for an RX ring,
// underflows for a TX ring.
func (r *Ring) ErrorCount() uint64 { return r.hdr.ErrorCount() }

// AddErrorCount increments the error counter.
func (r *Ring) AddErrorCount(n uint64) { r.hdr.AddErrorCount(n) }

// BufferStallCount returns the consumer-side stall counter.
func (r *Ring) BufferStallCount() uint64 { return r.hdr.BufferStallCount() }

// AddBufferStallCount increments the stall counter.
func (r *Ring) AddBufferStallCount(n uint64) { r.hdr.AddBufferStallCount(n) }

// WriterDone reports whether the producer has finished publishing.
func (r *Ring) WriterDone() bool { return r.hdr.WriterDone() }

// SetWriterDone marks the stream finished.
func (r *Ring) SetWriterDone() { r.hdr.SetWriterDone() }

// CanRead reports whether at least one published slot is waiting.
func (r *Ring) CanRead() bool {
	return r.hdr.WriteIndex() > r.hdr.ReadIndex()
}

// CanWrite reports whether at least one free slot is available.
func (r *Ring) CanWrite() bool {
	return r.hdr.WriteIndex()-r.hdr.ReadIndex() < uint64(r.hdr.NumSlots())
}

// Delete removes a ring file. Removing an absent file is a no-op, so a
// session can unconditionally clear a stale path before creating.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ring file %s: %w", path, err)
	}
	return nil
}
