package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure surfaced by a backup or restore operation.
type ErrorKind string

const (
	// KindIO covers unreadable sources and unwritable destinations.
	KindIO ErrorKind = "io"
	// KindFormat means the archive is not a valid backup.
	KindFormat ErrorKind = "format"
	// KindPrivilege means the elevated relaunch was refused or failed.
	KindPrivilege ErrorKind = "privilege"
)

var (
	// ErrManifestMissing indicates the archive has no restore_map.json entry.
	ErrManifestMissing = errors.New("archive has no manifest entry")

	// ErrElevationRequired is returned by Confirm when the process is not elevated.
	ErrElevationRequired = errors.New("restore requires elevated privileges")

	// ErrInvalidState is returned when a coordinator method is called out of order.
	ErrInvalidState = errors.New("invalid restore state")

	// ErrBusy is returned when an operation is started while another is running.
	ErrBusy = errors.New("another operation is already running")
)

// Error is the structured error handed from the engine to the orchestrator.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func ioError(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func formatError(op, path string, err error) error {
	return &Error{Kind: KindFormat, Op: op, Path: path, Err: err}
}

func privilegeError(op, path string, err error) error {
	return &Error{Kind: KindPrivilege, Op: op, Path: path, Err: err}
}
