// Package paths provides the filesystem naming conventions shared by all
// streaming sessions.
//
// Ring files live under a shared-memory filesystem and process logs under
// a spool directory; both carry the session ID so concurrent sessions
// never collide and stale artifacts are attributable.
package paths

import (
	"fmt"
	"path/filepath"

	"github.com/radioforge/iqbridge/internal/shared/id"
)

// Ring returns the ring file path for a session and direction ("rx" or
// "tx").
func Ring(shmDir, direction string, session id.SessionID) string {
	return filepath.Join(shmDir, fmt.Sprintf("iqbridge_%s_%s.ring", direction, session))
}

// ProcessLog returns the log file path capturing the external process's
// output for a session.
func ProcessLog(logDir, mode string, session id.SessionID) string {
	return filepath.Join(logDir, fmt.Sprintf("iqbridge_%s_%s.log", mode, session))
}
