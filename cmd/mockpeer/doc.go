// Command mockpeer stands in for the hardware streaming binary.
//
// It accepts the same flag set and speaks the same shared-memory ring
// protocol, but produces a deterministic counter sequence instead of
// radio samples and discards what it consumes. Integration tests point
// the supervisor at mockpeer to exercise full sessions with only two
// cooperating host processes and no SDR attached.
//
//	mockpeer -samplerate 40000000 -rx_freq 5000000000 -channels 1 \
//	    -shm_path /dev/shm/rx.ring -buffer_time 3 -num_samples 2560
package main
