// Package config provides 12-factor configuration management for the
// streaming substrate.
//
// Configuration is loaded from environment variables with sensible defaults.
// Per-session tuning (sample rate, frequencies, gains, ring geometry) travels
// through the public API options instead; this package covers the ambient
// concerns shared by every session.
//
// Environment Variables:
//   - IQBRIDGE_SHM_DIR, IQBRIDGE_LOG_DIR
//   - IQBRIDGE_BIN
//   - IQBRIDGE_LOG_LEVEL, IQBRIDGE_LOG_DEV
//   - IQBRIDGE_METRICS_ADDR
package config
