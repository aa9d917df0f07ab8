package sdrproc

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/logging"
)

// logTailBytes bounds how much of the process log is attached to a
// startup failure.
const logTailBytes = 2048

// Handle is a running external streaming process shared by one or more
// tasks. Terminate is idempotent; with several tasks attached, Release
// arranges that the last one to finish performs the kill.
type Handle struct {
	cmd     *exec.Cmd
	logPath string
	logger  *logging.Logger

	exited   chan struct{}
	exitCode atomic.Int32

	refs     atomic.Int32
	termOnce sync.Once
}

// Spawn starts the invocation with both standard streams redirected to a
// log file at logPath. The returned Handle starts with one reference.
func Spawn(inv Invocation, logPath string, logger *logging.Logger) (*Handle, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create process log %s: %w", logPath, err)
	}

	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		os.Remove(logPath)
		return nil, fmt.Errorf("start %s: %w", inv.Path, err)
	}

	h := &Handle{
		cmd:     cmd,
		logPath: logPath,
		logger:  logger,
		exited:  make(chan struct{}),
	}
	h.refs.Store(1)
	h.exitCode.Store(-1)

	logger.Info("streaming process started",
		zap.String("binary", inv.Path),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("log", logPath),
	)

	// Reap in the background so Alive never blocks and Terminate never
	// leaves a zombie.
	go func() {
		err := cmd.Wait()
		logFile.Close()
		if err == nil {
			h.exitCode.Store(0)
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			h.exitCode.Store(int32(exitErr.ExitCode()))
		}
		close(h.exited)
	}()

	return h, nil
}

// Alive reports whether the process has not yet exited.
func (h *Handle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// Exited is closed once the process has been reaped.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitCode returns the process exit status. Valid only after Exited is
// closed; -1 means killed by signal.
func (h *Handle) ExitCode() int {
	return int(h.exitCode.Load())
}

// Wait blocks until the process has been reaped and returns its exit code.
func (h *Handle) Wait() int {
	<-h.exited
	return h.ExitCode()
}

// Terminate kills the process if it is still running, then waits for the
// reaper. Safe to call from any task any number of times.
func (h *Handle) Terminate() {
	h.termOnce.Do(func() {
		if h.Alive() {
			if err := h.cmd.Process.Kill(); err != nil {
				h.logger.Warn("kill streaming process", zap.Error(err))
			}
		}
	})
	<-h.exited
}

// Retain adds a task reference for shared ownership (duplex).
func (h *Handle) Retain() {
	h.refs.Add(1)
}

// Release drops a task reference; the final release terminates the
// process. Returns true if this call performed the termination.
func (h *Handle) Release() bool {
	if h.refs.Add(-1) == 0 {
		h.Terminate()
		return true
	}
	return false
}

// LogPath returns the path of the process log file.
func (h *Handle) LogPath() string {
	return h.logPath
}

// LogTail returns the last captured bytes of the process log, for
// attaching to startup failures.
func (h *Handle) LogTail() string {
	data, err := os.ReadFile(h.logPath)
	if err != nil {
		return ""
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return string(data)
}
