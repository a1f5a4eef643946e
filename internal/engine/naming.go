package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveExt is the file extension of backup archives.
const ArchiveExt = ".zip"

// DefaultArchiveName builds "<profile>_<tag>_<YYYY-MM-DD>.zip", or
// "<profile>_<YYYY-MM-DD>.zip" when tag is blank.
func DefaultArchiveName(profile, tag string, now time.Time) string {
	date := now.Format("2006-01-02")
	tag = strings.TrimSpace(tag)
	if tag != "" {
		return fmt.Sprintf("%s_%s_%s%s", profile, tag, date, ArchiveExt)
	}
	return fmt.Sprintf("%s_%s%s", profile, date, ArchiveExt)
}

// ArchiveNameFor derives the collision-free namespace for the source path at
// position index of the original input list.
func ArchiveNameFor(sourcePath string, index int) string {
	base := filepath.Base(filepath.Clean(sourcePath))
	if base == "." || strings.ContainsAny(base, `/\`) || strings.HasSuffix(base, ":") {
		// filesystem or volume root
		base = "root"
	}
	return fmt.Sprintf("%s_%d", base, index)
}
