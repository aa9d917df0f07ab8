// Package stream implements the host-side streaming tasks that move IQ
// chunks between bounded Go channels and the shared-memory rings.
//
// An RX session consumes the ring the external process produces into and
// delivers chunks downstream; a TX session drains an input channel of
// frames into the ring the external process consumes; a duplex session
// coordinates one external process with both. Chunk delivery applies
// backpressure; warnings and transmit statistics are published with
// non-blocking try-put semantics so the hot loops never suspend on
// observability channels.
//
// Every session releases its resources in the same fixed order on every
// exit path: cooperative stop, process termination, ring unmap, ring file
// deletion.
package stream
