// Package ring implements the shared-memory single-producer single-consumer
// ring buffer used to move IQ sample chunks between the host process and the
// external streaming process.
//
// A ring is a plain file (conventionally under /dev/shm) holding a 64-byte
// header followed by slot storage. Indices are free-running 64-bit counters;
// index modulo slot count addresses the slot. Publishing a slot is an atomic
// store of the write index, observing it is an atomic load, so a reader that
// sees write index k+1 also sees every byte the writer placed in slot k.
//
// Exactly one writer and one reader attach to a ring; the roles are fixed
// when the file is created and the header metadata is immutable afterwards.
package ring
