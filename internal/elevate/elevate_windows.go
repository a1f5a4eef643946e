//go:build windows

package elevate

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func isElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

func execve(string, []string, []string) error {
	return errors.New("exec is not available on windows")
}

// relaunch asks the shell to start exe with the "runas" verb, which shows
// the UAC consent prompt. A declined prompt is returned as an error.
func (e *Elevator) relaunch(exe, archive string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return err
	}
	args, err := windows.UTF16PtrFromString(windows.EscapeArg(archive))
	if err != nil {
		return err
	}
	var cwd *uint16
	if wd, err := os.Getwd(); err == nil {
		if cwd, err = windows.UTF16PtrFromString(wd); err != nil {
			return err
		}
	}
	if err := windows.ShellExecute(0, verb, file, args, cwd, windows.SW_NORMAL); err != nil {
		return fmt.Errorf("shell execute runas: %w", err)
	}
	return nil
}
