// Command ringstat inspects and removes shared-memory ring files.
//
//	ringstat stats /dev/shm/iqbridge_rx_xxx.ring
//	ringstat -json stats /dev/shm/iqbridge_rx_xxx.ring
//	ringstat delete /dev/shm/iqbridge_rx_xxx.ring
//
// stats snapshots the header counters without disturbing a live stream;
// delete clears a stale ring left behind by a crashed session.
package main
