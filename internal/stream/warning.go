package stream

// WarningKind tags the out-of-band conditions a streaming session can
// surface.
type WarningKind string

// Warning kinds.
const (
	// KindOverflow: the producer dropped incoming samples because no free
	// slot was available (RX).
	KindOverflow WarningKind = "overflow"

	// KindUnderflow: the external consumer ran out of samples to transmit
	// (TX).
	KindUnderflow WarningKind = "underflow"

	// KindBufferEmpty: the external consumer substituted zeros because the
	// ring was momentarily empty (TX).
	KindBufferEmpty WarningKind = "buffer_empty"

	// KindError: a non-sample fault, such as the external process dying
	// mid-stream.
	KindError WarningKind = "error"
)

// Warning is an out-of-band notification from a streaming task. TimeLabel
// is a short free-form position marker: elapsed seconds for RX, sample
// time for TX.
type Warning struct {
	Kind      WarningKind
	TimeLabel string
	Detail    string
}

// TxStats is published after each successfully transmitted chunk.
type TxStats struct {
	TotalSamples uint64
}

// tryWarn publishes without blocking; a full warnings channel drops the
// warning and counts the loss.
func (s *session) tryWarn(w Warning) {
	select {
	case s.warnings <- w:
	default:
		s.env.Metrics.WarningsDropped.WithLabelValues(string(w.Kind)).Inc()
	}
}

// tryStats publishes without blocking; a full stats channel drops the
// update.
func tryStats(ch chan<- TxStats, st TxStats) {
	select {
	case ch <- st:
	default:
	}
}
