// Package iqbridge streams software-defined-radio IQ samples between the
// host application and an external real-time process over lock-free
// shared-memory rings.
//
// Three entry points cover the streaming modes: StartRX receives chunks
// from the radio, StartTX drains an input channel of frames into it, and
// StartDuplex runs both directions against a single external process.
// Each returns a session whose bounded channels carry chunks, transmit
// statistics, and out-of-band warnings; closing the session (or the TX
// input channel) tears down the external process, the mappings, and the
// ring files on every exit path.
//
// ReadStats and DeleteRing operate on ring files directly, for inspection
// and recovery after a crashed session.
package iqbridge
