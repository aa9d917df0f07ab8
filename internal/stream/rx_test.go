package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/iqbridge/internal/ring"
	"github.com/radioforge/iqbridge/internal/sdrproc"
)

// sleepInvocation stands in for the external streaming binary: a process
// that stays alive until the supervisor kills it.
var sleepInvocation = sdrproc.Invocation{Path: "sleep", Args: []string{"60"}}

// produceCounter plays the RX producer role of the external process:
// it creates the ring, fills chunks with the wrap-around counter sequence
// advancing once per (sample, channel) pair, and sets the done flag.
// errorBumpAt, when >= 0, raises the overflow counter before that chunk.
func produceCounter(t *testing.T, path string, chunkSize, slots uint32, channels uint16, chunks int, errorBumpAt int) {
	r, err := ring.Create(path, chunkSize, slots, channels)
	if err != nil {
		t.Error(err)
		return
	}
	defer r.Close()

	v := int16(1)
	for k := 0; k < chunks; k++ {
		if k == errorBumpAt {
			r.AddErrorCount(2)
		}
		for !r.CanWrite() {
			time.Sleep(time.Millisecond)
		}
		idx := r.WriteIndex()
		slot := r.SlotIQ(idx)
		for i := range slot {
			slot[i] = IQ{I: v, Q: v}
			v = v%32000 + 1
		}
		r.SetWriteIndex(idx + 1)
	}
	r.SetWriterDone()
}

func rxConfig(path string, dir string) RXConfig {
	return RXConfig{
		Params: sdrproc.Params{
			SampleRateHz: 1_000_000,
			AGC:          sdrproc.AGCManual,
			Channels:     1,
			ShmPath:      path,
		},
		LogPath:         filepath.Join(dir, "rx.log"),
		Invocation:      &sleepInvocation,
		ChunkCapacity:   100,
		WarningCapacity: 16,
	}
}

func TestRXSingleChannelCounterSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		produceCounter(t, path, 256, 16, 1, 10, -1)
	}()

	s, err := StartRX(context.Background(), 1, rxConfig(path, dir), Env{})
	require.NoError(t, err)

	var got []IQ
	count := 0
	for chunk := range s.Chunks() {
		assert.Equal(t, 1, chunk.Channels)
		assert.Equal(t, 256, chunk.Samples)
		got = append(got, chunk.Data...)
		count++
	}
	require.NoError(t, s.Close())

	assert.Equal(t, 10, count)
	require.Len(t, got, 2560)
	v := int16(1)
	for i, sample := range got {
		require.Equal(t, IQ{I: v, Q: v}, sample, "sample %d", i)
		v = v%32000 + 1
	}

	// Warnings stream closes empty on a clean run.
	for w := range s.Warnings() {
		t.Errorf("unexpected warning: %+v", w)
	}
	assert.NoError(t, s.Err())

	// The ring file is deleted on the way out.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRXDualChannelCounterSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		produceCounter(t, path, 128, 16, 2, 5, -1)
	}()

	s, err := StartRX(context.Background(), 2, rxConfig(path, dir), Env{})
	require.NoError(t, err)

	var chunks []*Chunk
	for chunk := range s.Chunks() {
		assert.Equal(t, 2, chunk.Channels)
		assert.Equal(t, 128, chunk.Samples)
		// The pool recycles storage; keep a private copy.
		clone := NewChunk(chunk.Channels, chunk.Samples)
		copy(clone.Data, chunk.Data)
		chunks = append(chunks, clone)
	}
	require.NoError(t, s.Close())
	require.Len(t, chunks, 5)

	// Iterating channels within each sample reproduces the sequence.
	v := int16(1)
	for _, chunk := range chunks {
		for j := 0; j < chunk.Samples; j++ {
			for c := 0; c < chunk.Channels; c++ {
				require.Equal(t, IQ{I: v, Q: v}, chunk.At(c, j))
				v = v%32000 + 1
			}
		}
	}
}

func TestRXSurfacesOverflowWarnings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		produceCounter(t, path, 64, 8, 1, 6, 3)
	}()

	s, err := StartRX(context.Background(), 1, rxConfig(path, dir), Env{})
	require.NoError(t, err)

	for range s.Chunks() {
	}
	require.NoError(t, s.Close())

	var overflows []Warning
	for w := range s.Warnings() {
		if w.Kind == KindOverflow {
			overflows = append(overflows, w)
		}
	}
	require.Len(t, overflows, 1)
	assert.Equal(t, "2 overflow events", overflows[0].Detail)
	assert.NotEmpty(t, overflows[0].TimeLabel)
}

func TestRXChannelMismatchFailsStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err == nil {
			r.Close()
		}
	}()

	_, err := StartRX(context.Background(), 2, rxConfig(path, dir), Env{})
	require.ErrorIs(t, err, sdrproc.ErrChannelMismatch)
}

func TestRXRejectsBadChannelCount(t *testing.T) {
	dir := t.TempDir()
	for _, channels := range []int{0, 3, -1} {
		_, err := StartRX(context.Background(), channels, rxConfig(filepath.Join(dir, "x.ring"), dir), Env{})
		assert.Error(t, err, fmt.Sprintf("channels=%d", channels))
	}
}

func TestRXCloseStopsStreaming(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	// A producer that never finishes.
	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err != nil {
			return
		}
		defer r.Close()
		for i := uint64(0); ; i++ {
			if _, statErr := os.Stat(path); statErr != nil {
				return // session deleted the ring; we are done
			}
			if r.CanWrite() {
				r.SetWriteIndex(r.WriteIndex() + 1)
			}
			time.Sleep(time.Millisecond)
		}
	}()

	s, err := StartRX(context.Background(), 1, rxConfig(path, dir), Env{})
	require.NoError(t, err)

	// Take a few chunks, then hang up.
	for i := 0; i < 3; i++ {
		<-s.Chunks()
	}
	require.NoError(t, s.Close())

	// Channels close and the ring file is gone.
	for range s.Chunks() {
	}
	for range s.Warnings() {
	}
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, s.Err())
}

func TestRXProcessDeathSurfacesError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	// Producer creates the ring but dies (nonzero) without writer_done.
	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err == nil {
			r.Close()
		}
	}()

	cfg := rxConfig(path, dir)
	cfg.Invocation = &sdrproc.Invocation{Path: "sh", Args: []string{"-c", "sleep 0.2; exit 7"}}

	s, err := StartRX(context.Background(), 1, cfg, Env{})
	require.NoError(t, err)

	for range s.Chunks() {
	}
	var errorWarnings []Warning
	for w := range s.Warnings() {
		if w.Kind == KindError {
			errorWarnings = append(errorWarnings, w)
		}
	}
	assert.ErrorIs(t, s.Err(), sdrproc.ErrProcessExitedEarly)
	assert.NotEmpty(t, errorWarnings)
}

func TestRXCleanProcessExitIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err == nil {
			r.Close()
		}
	}()

	cfg := rxConfig(path, dir)
	cfg.Invocation = &sdrproc.Invocation{Path: "sh", Args: []string{"-c", "sleep 0.2; exit 0"}}

	s, err := StartRX(context.Background(), 1, cfg, Env{})
	require.NoError(t, err)

	for range s.Chunks() {
	}
	for range s.Warnings() {
	}
	assert.NoError(t, s.Err())
}

func TestRXContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.ring")

	go func() {
		time.Sleep(30 * time.Millisecond)
		r, err := ring.Create(path, 64, 8, 1)
		if err == nil {
			r.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := StartRX(ctx, 1, rxConfig(path, dir), Env{})
	require.NoError(t, err)

	cancel()
	for range s.Chunks() {
	}
	for range s.Warnings() {
	}
	assert.NoError(t, s.Err())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
