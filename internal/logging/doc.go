// Package logging provides the structured logger used across the module.
//
// It wraps zap with a small configuration surface: JSON output in
// production, colored console output in development, both at the
// configured level (info by default).
// Streaming tasks log session lifecycle events only; nothing logs on the
// per-slot hot path.
package logging
