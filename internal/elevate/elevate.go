// Package elevate checks whether the process runs with administrative rights
// and hands a pending restore over to an elevated instance of the program.
//
// The handoff is one way: the elevated instance is started with the archive
// path as its only argument and the current process ends. Nothing else
// crosses the boundary.
package elevate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Elevator implements the privilege query and relaunch handshake.
type Elevator struct {
	logger *slog.Logger
	helper string

	executable func() (string, error)
	execve     func(argv0 string, argv []string, envv []string) error
	exit       func(code int)
}

// Option customizes an Elevator.
type Option func(*Elevator)

// WithHelper sets the command used to gain privileges on unix systems, for
// example "sudo" or "pkexec". Empty means auto-detect.
func WithHelper(helper string) Option {
	return func(e *Elevator) {
		e.helper = helper
	}
}

// New creates an Elevator for the running executable.
func New(logger *slog.Logger, opts ...Option) *Elevator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Elevator{
		logger:     logger,
		executable: os.Executable,
		execve:     execve,
		exit:       os.Exit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query reports whether the process is elevated. When the platform check
// cannot be performed it answers false.
func (e *Elevator) Query() bool {
	ok, err := isElevated()
	if err != nil {
		e.logger.Warn("privilege check unavailable, assuming not elevated", "error", err)
		return false
	}
	return ok
}

// RequestElevation relaunches the program elevated with zipPath as its sole
// argument and terminates the current process. It only returns on failure,
// in which case the current process keeps running unelevated.
func (e *Elevator) RequestElevation(zipPath string) error {
	exe, err := e.executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	archive, err := filepath.Abs(zipPath)
	if err != nil {
		return fmt.Errorf("resolving archive path: %w", err)
	}

	e.logger.Info("relaunching elevated", "executable", exe, "archive", archive)
	if err := e.relaunch(exe, archive); err != nil {
		return err
	}
	e.exit(0)
	return nil
}
