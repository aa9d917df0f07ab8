// Package bridge repackages a receive chunk stream into the matrix shape
// downstream signal consumers expect.
//
// RX chunks arrive shaped (channels, samples) with channel-interleaved
// storage; signal consumers take (samples, channels) frames with each
// channel's samples contiguous. The bridge rotates through a fixed frame
// pool sized to the downstream channel capacity plus two, so a frame
// handed downstream is not recycled until the pool laps.
package bridge

import (
	"github.com/radioforge/iqbridge/internal/stream"
)

// framePool mirrors the chunk pool on the receive side: capacity+2
// pre-allocated frames rotated by index.
type framePool struct {
	items []*stream.Frame
	next  int
}

func newFramePool(size, samples, channels int) *framePool {
	items := make([]*stream.Frame, size)
	for i := range items {
		items[i] = stream.NewFrame(samples, channels)
	}
	return &framePool{items: items}
}

func (p *framePool) get() *stream.Frame {
	f := p.items[p.next%len(p.items)]
	p.next++
	return f
}

// Frames converts the chunk stream into a bounded frame stream with the
// given capacity. The returned channel closes when the upstream chunk
// channel closes. The first chunk fixes the frame shape.
func Frames(chunks <-chan *stream.Chunk, capacity int) <-chan *stream.Frame {
	out := make(chan *stream.Frame, capacity)

	go func() {
		defer close(out)

		var pool *framePool
		for chunk := range chunks {
			if pool == nil {
				pool = newFramePool(capacity+2, chunk.Samples, chunk.Channels)
			}
			frame := pool.get()
			repack(frame, chunk)
			out <- frame
		}
	}()

	return out
}

// repack copies a chunk into a frame, converting the interleaved chunk
// layout to the planar frame layout. Single channel is a dense copy; two
// channels are a permuted copy.
func repack(dst *stream.Frame, src *stream.Chunk) {
	if src.Channels == 1 {
		copy(dst.Data, src.Data)
		return
	}
	for c := 0; c < src.Channels; c++ {
		plane := dst.Data[c*src.Samples : (c+1)*src.Samples]
		for s := 0; s < src.Samples; s++ {
			plane[s] = src.Data[s*src.Channels+c]
		}
	}
}
