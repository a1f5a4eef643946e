package elevate

import (
	"os"
	"path/filepath"
	"strings"
)

// archiveExt is the extension that marks a startup argument as a backup.
const archiveExt = ".zip"

// ResumeTarget applies the startup contract: exactly one argument naming an
// existing regular file with the archive extension means "restore this".
// An elevated relaunch arrives here with the archive path it was handed.
func ResumeTarget(args []string) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	p := args[0]
	if !strings.EqualFold(filepath.Ext(p), archiveExt) {
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}
