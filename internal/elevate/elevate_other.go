//go:build !unix && !windows

package elevate

import "errors"

var errUnsupported = errors.New("privilege elevation is not supported on this platform")

func isElevated() (bool, error) {
	return false, errUnsupported
}

func execve(string, []string, []string) error {
	return errUnsupported
}

func (e *Elevator) relaunch(string, string) error {
	return errUnsupported
}
