package safety

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// CleanEntryPath validates an archive-relative entry path. Entry paths use
// forward slashes; absolute paths, volume names and ".." segments are
// rejected. The result uses the host separator.
func CleanEntryPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("entry path is empty")
	}
	if strings.Contains(p, `\`) {
		return "", fmt.Errorf("backslash in entry path %q", p)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute entry path %q", p)
	}

	clean := path.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("entry path %q resolves to its root", p)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry path %q escapes its root", p)
	}

	native := filepath.FromSlash(clean)
	if filepath.IsAbs(native) || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("absolute entry path %q", p)
	}
	return native, nil
}

// JoinUnder places an archive-relative entry path under root and returns the
// absolute result, guaranteed to stay inside root.
func JoinUnder(root, entry string) (string, error) {
	rel, err := CleanEntryPath(entry)
	if err != nil {
		return "", err
	}
	return Within(root, filepath.Join(root, rel))
}

// Within returns the absolute form of candidate if it lies under root.
func Within(root, candidate string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve candidate: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, candAbs)
	if err != nil {
		return "", fmt.Errorf("compare paths: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %q", candidate, root)
	}
	return candAbs, nil
}
