package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

func txConfig(path string, dir string) TXConfig {
	return TXConfig{
		Params: sdrproc.Params{
			SampleRateHz: 1_000_000,
			ShmPath:      path,
		},
		LogPath:         filepath.Join(dir, "tx.log"),
		Invocation:      &sleepInvocation,
		StatsCapacity:   1000,
		WarningCapacity: 16,
		DrainGrace:      10 * time.Millisecond,
	}
}

// drainRing plays the TX consumer role of the external process: it
// creates the ring, then frees slots as they are published, collecting
// their contents until the writer-done flag is set and the ring is empty.
func drainRing(t *testing.T, path string, chunkSize, slots uint32, channels uint16, out chan<- []IQ) {
	r, err := ring.Create(path, chunkSize, slots, channels)
	if err != nil {
		t.Error(err)
		close(out)
		return
	}
	defer r.Close()
	defer close(out)

	for {
		if r.CanRead() {
			idx := r.ReadIndex()
			slot := r.SlotIQ(idx)
			clone := make([]IQ, len(slot))
			copy(clone, slot)
			r.SetReadIndex(idx + 1)
			out <- clone
		} else if r.WriterDone() && !r.CanRead() {
			return
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestTXComplexSingleChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	received := make(chan []IQ, 16)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainRing(t, path, 256, 16, 1, received)
	}()

	in := make(chan *Frame, 10)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	// Sample (i, k) is complex(i + (k-1)*256, k), 1-based.
	for k := 1; k <= 10; k++ {
		f := NewFrame(256, 1)
		for i := 1; i <= 256; i++ {
			f.Data[i-1] = IQ{I: int16(i + (k-1)*256), Q: int16(k)}
		}
		in <- f
	}
	close(in)

	var all []IQ
	for slot := range received {
		all = append(all, slot...)
	}
	require.Len(t, all, 2560)
	for k := 1; k <= 10; k++ {
		for i := 1; i <= 256; i++ {
			require.Equal(t, IQ{I: int16(i + (k-1)*256), Q: int16(k)}, all[(k-1)*256+i-1])
		}
	}

	// Statistics are nondecreasing and end at the total sample count.
	var last, final uint64
	count := 0
	for st := range s.Stats() {
		require.GreaterOrEqual(t, st.TotalSamples, last)
		last = st.TotalSamples
		final = st.TotalSamples
		count++
	}
	assert.Equal(t, uint64(2560), final)
	assert.Equal(t, 10, count)

	for range s.Warnings() {
	}
	assert.NoError(t, s.Err())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTXRealWidensToComplex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	received := make(chan []IQ, 16)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainRing(t, path, 128, 16, 1, received)
	}()

	in := make(chan *Frame, 5)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	// Sample (i, k) is i + (k-1)*128, 1-based.
	for k := 1; k <= 5; k++ {
		f := NewRealFrame(128, 1)
		for i := 1; i <= 128; i++ {
			f.Real[i-1] = int16(i + (k-1)*128)
		}
		in <- f
	}
	close(in)

	var all []IQ
	for slot := range received {
		all = append(all, slot...)
	}
	require.Len(t, all, 640)
	for n, sample := range all {
		require.Equal(t, IQ{I: int16(n + 1), Q: 0}, sample)
	}

	var final uint64
	for st := range s.Stats() {
		final = st.TotalSamples
	}
	assert.Equal(t, uint64(640), final)
	assert.NoError(t, s.Err())
}

func TestTXDualChannelInterleaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	received := make(chan []IQ, 4)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainRing(t, path, 4, 8, 2, received)
	}()

	in := make(chan *Frame, 1)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	f := NewFrame(4, 2)
	for s0 := 0; s0 < 4; s0++ {
		f.Set(s0, 0, IQ{I: int16(s0), Q: 0})
		f.Set(s0, 1, IQ{I: int16(100 + s0), Q: 1})
	}
	in <- f
	close(in)

	slot := <-received
	want := []IQ{
		{I: 0, Q: 0}, {I: 100, Q: 1},
		{I: 1, Q: 0}, {I: 101, Q: 1},
		{I: 2, Q: 0}, {I: 102, Q: 1},
		{I: 3, Q: 0}, {I: 103, Q: 1},
	}
	assert.Equal(t, want, slot)

	for range received {
	}
	for range s.Stats() {
	}
	assert.NoError(t, s.Err())
}

func TestTXEmptyInputSetsWriterDone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	received := make(chan []IQ, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainRing(t, path, 64, 8, 1, received)
	}()

	in := make(chan *Frame)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	close(in)

	// Zero chunks transmitted; the consumer still sees writer_done.
	for range received {
		t.Error("no chunks should have been transmitted")
	}
	var count int
	for range s.Stats() {
		count++
	}
	assert.Zero(t, count)
	assert.NoError(t, s.Err())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTXSurfacesUnderflowAndStallWarnings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	// The consumer reports one underflow and three stalls before freeing
	// any slots.
	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err != nil {
			t.Error(err)
			return
		}
		defer r.Close()
		r.AddErrorCount(1)
		r.AddBufferStallCount(3)
		for !r.WriterDone() || r.CanRead() {
			if r.CanRead() {
				r.SetReadIndex(r.ReadIndex() + 1)
			} else {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	in := make(chan *Frame, 2)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	// Give the consumer time to bump the counters before the first chunk.
	time.Sleep(60 * time.Millisecond)
	f := NewFrame(64, 1)
	in <- f
	close(in)

	var underflows, stalls []Warning
	for w := range s.Warnings() {
		switch w.Kind {
		case KindUnderflow:
			underflows = append(underflows, w)
		case KindBufferEmpty:
			stalls = append(stalls, w)
		}
	}
	require.Len(t, underflows, 1)
	assert.Equal(t, "1 underflow events", underflows[0].Detail)
	require.Len(t, stalls, 1)
	assert.Equal(t, "3 empty-buffer events", stalls[0].Detail)
	assert.NoError(t, s.Err())
}

func TestTXFrameShapeMismatchFailsSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	received := make(chan []IQ, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainRing(t, path, 64, 8, 1, received)
	}()

	in := make(chan *Frame, 1)
	s, err := StartTX(context.Background(), in, txConfig(path, dir), Env{})
	require.NoError(t, err)

	in <- NewFrame(32, 1) // wrong chunk size
	close(in)

	for range received {
	}
	for range s.Stats() {
	}
	for range s.Warnings() {
	}
	assert.Error(t, s.Err())
}

func TestTXProcessDeathStopsSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx.ring")

	// Consumer creates a tiny ring and never frees slots, so the session
	// spins on a full ring while its process dies.
	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 16, 2, 1)
		if err == nil {
			r.Close()
		}
	}()

	cfg := txConfig(path, dir)
	cfg.Invocation = &sdrproc.Invocation{Path: "sh", Args: []string{"-c", "sleep 0.3; exit 5"}}

	in := make(chan *Frame, 4)
	s, err := StartTX(context.Background(), in, cfg, Env{})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		in <- NewFrame(16, 1)
	}

	var errorWarnings []Warning
	for w := range s.Warnings() {
		if w.Kind == KindError {
			errorWarnings = append(errorWarnings, w)
		}
	}
	assert.NotEmpty(t, errorWarnings)
	close(in)
}
