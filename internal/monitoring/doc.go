// Package monitoring provides Prometheus instrumentation for streaming
// sessions and an optional HTTP debug server.
//
// Each Metrics instance carries its own registry so parallel sessions and
// tests never fight over collector registration. The counters mirror the
// shared-memory ring counters (overflows, underflows, stalls) and add
// host-side visibility the ring cannot carry: chunks delivered, samples
// moved, and warnings dropped by the non-blocking observability channels.
package monitoring
