package sdrproc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/iqbridge/internal/logging"
	"github.com/radioforge/iqbridge/internal/ring"
)

func TestInvocationComposition(t *testing.T) {
	params := Params{
		DeviceIndex:  1,
		SampleRateHz: 40_000_000,
		RXFreqHz:     5_000_000_000,
		TXFreqHz:     5_100_000_000,
		RXGainDB:     20,
		TXGainDB:     -10,
		AGC:          AGCSlowAttack,
		BandwidthHz:  40_000_000,
		Channels:     2,
		ShmPath:      "/dev/shm/iq.ring",
		RXShmPath:    "/dev/shm/iq_rx.ring",
		TXShmPath:    "/dev/shm/iq_tx.ring",
		BufferTime:   3,
		RXBufferTime: 3,
		TXBufferTime: 1.5,
		NumSamples:   1000,
		Quiet:        true,
	}

	tests := []struct {
		name    string
		mode    Mode
		want    []string
		exclude []string
	}{
		{
			name: "rx",
			mode: ModeRX,
			want: []string{
				"-c", "1", "-samplerate", "40000000", "-rx_freq", "5000000000",
				"-rx_gain", "20", "-agc_mode", "slow_attack", "-bandwidth", "40000000",
				"-channels", "2", "-shm_path", "/dev/shm/iq.ring",
				"-buffer_time", "3", "-num_samples", "1000", "-q",
			},
			exclude: []string{"-tx_freq", "-tx_gain", "-w", "-rx_shm_path"},
		},
		{
			name: "tx",
			mode: ModeTX,
			want: []string{
				"-c", "1", "-samplerate", "40000000", "-tx_freq", "5100000000",
				"-tx_gain", "-10", "-bandwidth", "40000000",
				"-shm_path", "/dev/shm/iq.ring", "-buffer_time", "3",
				"-num_samples", "1000", "-q",
			},
			exclude: []string{"-rx_freq", "-rx_gain", "-agc_mode", "-w", "-channels"},
		},
		{
			name: "duplex",
			mode: ModeDuplex,
			want: []string{
				"-c", "1", "-samplerate", "40000000",
				"-rx_freq", "5000000000", "-tx_freq", "5100000000",
				"-rx_gain", "20", "-tx_gain", "-10",
				"-agc_mode", "slow_attack", "-bandwidth", "40000000", "-channels", "2",
				"-rx_shm_path", "/dev/shm/iq_rx.ring", "-tx_shm_path", "/dev/shm/iq_tx.ring",
				"-rx_buffer_time", "3", "-tx_buffer_time", "1.5",
				"-num_samples", "1000", "-w", "-q",
			},
			exclude: []string{"-shm_path", "-buffer_time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := params.Invocation("/opt/sdr/iqstream", tt.mode)
			assert.Equal(t, "/opt/sdr/iqstream", inv.Path)
			assert.Equal(t, tt.want, inv.Args)
			for _, flag := range tt.exclude {
				assert.NotContains(t, inv.Args, flag)
			}
		})
	}
}

func TestInvocationOmitsQuietWhenUnset(t *testing.T) {
	inv := Params{SampleRateHz: 1, AGC: AGCManual, Channels: 1}.Invocation("bin", ModeRX)
	assert.NotContains(t, inv.Args, "-q")
}

func TestValidate(t *testing.T) {
	good := Params{SampleRateHz: 40_000_000, Channels: 1, AGC: AGCManual}
	require.NoError(t, good.Validate(ModeRX))

	bad := good
	bad.Channels = 3
	assert.Error(t, bad.Validate(ModeRX))

	bad = good
	bad.AGC = "turbo"
	assert.Error(t, bad.Validate(ModeRX))

	// TX does not carry channels or AGC.
	assert.NoError(t, Params{SampleRateHz: 1}.Validate(ModeTX))

	assert.Error(t, Params{}.Validate(ModeTX))
}

func TestAGCModeValid(t *testing.T) {
	for _, m := range []AGCMode{AGCManual, AGCFastAttack, AGCSlowAttack, AGCHybrid} {
		assert.True(t, m.Valid())
	}
	assert.False(t, AGCMode("").Valid())
	assert.False(t, AGCMode("auto").Valid())
}

func TestHandleLifecycle(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "proc.log")
	h, err := Spawn(Invocation{Path: "sleep", Args: []string{"30"}}, logPath, logging.NewNop())
	require.NoError(t, err)

	assert.True(t, h.Alive())

	h.Terminate()
	h.Terminate() // idempotent
	assert.False(t, h.Alive())
	assert.Equal(t, -1, h.ExitCode())
}

func TestHandleCleanExit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "proc.log")
	h, err := Spawn(Invocation{Path: "sh", Args: []string{"-c", "echo ready; exit 0"}}, logPath, logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, h.Wait())
	assert.False(t, h.Alive())
	assert.Contains(t, h.LogTail(), "ready")
}

func TestHandleReleaseTerminatesLast(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "proc.log")
	h, err := Spawn(Invocation{Path: "sleep", Args: []string{"30"}}, logPath, logging.NewNop())
	require.NoError(t, err)

	h.Retain()
	assert.False(t, h.Release())
	assert.True(t, h.Alive())

	assert.True(t, h.Release())
	assert.False(t, h.Alive())
}

func TestSpawnFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "proc.log")
	_, err := Spawn(Invocation{Path: "/nonexistent/iqstream"}, logPath, logging.NewNop())
	assert.Error(t, err)
}

func TestAwaitRingResolvesOnceCreated(t *testing.T) {
	dir := t.TempDir()
	ringPath := filepath.Join(dir, "rx.ring")
	logPath := filepath.Join(dir, "proc.log")

	h, err := Spawn(Invocation{Path: "sleep", Args: []string{"30"}}, logPath, logging.NewNop())
	require.NoError(t, err)
	defer h.Terminate()

	// Stand in for the external process: create the ring after a delay.
	go func() {
		time.Sleep(50 * time.Millisecond)
		r, err := ring.Create(ringPath, 64, 4, 2)
		if err == nil {
			r.Close()
		}
	}()

	r, err := AwaitRing(ringPath, h, 2)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.NumChannels())
}

func TestAwaitRingChannelMismatch(t *testing.T) {
	dir := t.TempDir()
	ringPath := filepath.Join(dir, "rx.ring")
	logPath := filepath.Join(dir, "proc.log")

	r, err := ring.Create(ringPath, 64, 4, 1)
	require.NoError(t, err)
	r.Close()

	h, err := Spawn(Invocation{Path: "sleep", Args: []string{"30"}}, logPath, logging.NewNop())
	require.NoError(t, err)
	defer h.Terminate()

	_, err = AwaitRing(ringPath, h, 2)
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestAwaitRingProcessDied(t *testing.T) {
	dir := t.TempDir()
	ringPath := filepath.Join(dir, "rx.ring")
	logPath := filepath.Join(dir, "proc.log")

	h, err := Spawn(Invocation{Path: "sh", Args: []string{"-c", "echo dma init failed >&2; exit 3"}}, logPath, logging.NewNop())
	require.NoError(t, err)

	_, err = AwaitRing(ringPath, h, 1)
	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, 3, startErr.ExitCode)
	assert.Contains(t, startErr.LogTail, "dma init failed")
}
