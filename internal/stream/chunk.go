package stream

import (
	"gonum.org/v1/gonum/floats"

	"github.com/radioforge/iqbridge/internal/ring"
)

// IQ is one complex int16 sample.
type IQ = ring.IQ

// Chunk is one ring slot's worth of received samples, shaped
// (channels, samples). The backing storage is the raw slot layout:
// channel-interleaved sample by sample, so Data[s*Channels+c] is sample s
// of channel c and the slot copy is a single dense memcpy.
type Chunk struct {
	Channels int
	Samples  int
	Data     []IQ
}

// NewChunk allocates a chunk for the given shape.
func NewChunk(channels, samples int) *Chunk {
	return &Chunk{
		Channels: channels,
		Samples:  samples,
		Data:     make([]IQ, channels*samples),
	}
}

// At returns sample index sample of channel ch.
func (c *Chunk) At(ch, sample int) IQ {
	return c.Data[sample*c.Channels+ch]
}

// MeanPower returns the average of I²+Q² across all samples, in raw ADC
// units. Diagnostic only; not called on the hot path.
func (c *Chunk) MeanPower() float64 {
	if len(c.Data) == 0 {
		return 0
	}
	power := make([]float64, len(c.Data))
	for i, s := range c.Data {
		power[i] = float64(s.I)*float64(s.I) + float64(s.Q)*float64(s.Q)
	}
	return floats.Sum(power) / float64(len(power))
}

// Frame is one chunk of samples to transmit, shaped (samples, channels)
// with each channel's samples contiguous: Data[ch*Samples+s] is sample s
// of channel ch. Exactly one of Data and Real is set; Real carries
// real-valued int16 samples that are widened to complex with zero
// imaginary part during the ring copy.
type Frame struct {
	Samples  int
	Channels int
	Data     []IQ
	Real     []int16
}

// NewFrame allocates a complex-valued frame for the given shape.
func NewFrame(samples, channels int) *Frame {
	return &Frame{
		Samples:  samples,
		Channels: channels,
		Data:     make([]IQ, samples*channels),
	}
}

// NewRealFrame allocates a real-valued frame for the given shape.
func NewRealFrame(samples, channels int) *Frame {
	return &Frame{
		Samples:  samples,
		Channels: channels,
		Real:     make([]int16, samples*channels),
	}
}

// IsReal reports whether the frame carries real-valued samples.
func (f *Frame) IsReal() bool {
	return f.Real != nil
}

// At returns sample index sample of channel ch of a complex frame.
func (f *Frame) At(sample, ch int) IQ {
	return f.Data[ch*f.Samples+sample]
}

// Set stores sample index sample of channel ch of a complex frame.
func (f *Frame) Set(sample, ch int, v IQ) {
	f.Data[ch*f.Samples+sample] = v
}

// chunkPool rotates through a fixed set of pre-allocated chunks. The pool
// is two larger than the delivery channel capacity, so a chunk handed
// downstream is not overwritten until the full channel plus two in-flight
// chunks have cycled.
type chunkPool struct {
	items []*Chunk
	next  int
}

func newChunkPool(size, channels, samples int) *chunkPool {
	items := make([]*Chunk, size)
	for i := range items {
		items[i] = NewChunk(channels, samples)
	}
	return &chunkPool{items: items}
}

func (p *chunkPool) get() *Chunk {
	c := p.items[p.next%len(p.items)]
	p.next++
	return c
}
