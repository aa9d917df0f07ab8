// Package sdrproc manages the external streaming process that owns the
// radio hardware and its DMA engine.
//
// The process is treated as a collaborator with an explicit lifecycle:
// compose the invocation from typed parameters, spawn with both standard
// streams redirected to a log file, wait for the shared-memory ring to
// become well-formed under a deadline, observe liveness without blocking,
// and terminate idempotently. One Handle may be shared by several streaming
// tasks; reference counting ensures the last task to finish performs the
// kill, and a duplicate Terminate is a no-op.
package sdrproc
