//go:build unix

package elevate

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// defaultHelpers are tried in order when no helper is configured.
var defaultHelpers = []string{"sudo", "pkexec"}

func isElevated() (bool, error) {
	return unix.Geteuid() == 0, nil
}

func execve(argv0 string, argv []string, envv []string) error {
	return unix.Exec(argv0, argv, envv)
}

func (e *Elevator) findHelper() (string, error) {
	candidates := defaultHelpers
	if e.helper != "" {
		candidates = []string{e.helper}
	}
	for _, name := range candidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no elevation helper found (tried %v)", candidates)
}

// relaunch replaces the process image with "<helper> <exe> <archive>". On
// success it does not return.
func (e *Elevator) relaunch(exe, archive string) error {
	helper, err := e.findHelper()
	if err != nil {
		return err
	}
	argv := []string{helper, exe, archive}
	if err := e.execve(helper, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", helper, err)
	}
	return nil
}
