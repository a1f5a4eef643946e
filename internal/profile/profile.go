// Package profile persists named, ordered lists of directories to back up.
//
// The file format is {"current_profile": name, "profiles": {name: [paths]}}.
// Comments and trailing commas are accepted when reading. A missing, empty or
// partially shaped file is merged onto the default state, which holds a single
// empty profile named "Default".
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/tidwall/jsonc"
)

// DefaultProfile is created whenever the store would otherwise be empty.
const DefaultProfile = "Default"

var (
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileNotFound = errors.New("profile not found")
	ErrLastProfile     = errors.New("cannot remove the last profile")
	ErrPathExists      = errors.New("path already in profile")
	ErrPathNotFound    = errors.New("path not in profile")
	ErrRelativePath    = errors.New("path must be absolute")
	ErrEmptyName       = errors.New("profile name is empty")
)

// ConfigError reports an unreadable, unparsable or unwritable profile file.
type ConfigError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("profile store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// State is the persisted form of the store.
type State struct {
	CurrentProfile string              `json:"current_profile"`
	Profiles       map[string][]string `json:"profiles"`
}

// DefaultState returns the state used when no usable file exists.
func DefaultState() State {
	return State{
		CurrentProfile: DefaultProfile,
		Profiles:       map[string][]string{DefaultProfile: {}},
	}
}

// Snapshot is the read-only view of one profile handed to a backup.
type Snapshot struct {
	Name  string
	Paths []string
}

// Load reads a profile file. It always returns a usable state: when the
// file cannot be used the default state is returned together with a
// *ConfigError. A missing file is not an error.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultState(), nil
		}
		return DefaultState(), &ConfigError{Op: "read", Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse decodes profile file contents, keeping every well-formed part. The
// returned error, if any, is a *ConfigError describing the first part that
// was discarded.
func Parse(data []byte, path string) (State, error) {
	st := DefaultState()
	if len(data) == 0 {
		return st, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return st, &ConfigError{Op: "parse", Path: path, Err: err}
	}

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = &ConfigError{Op: "parse", Path: path, Err: err}
		}
	}

	if msg, ok := raw["profiles"]; ok {
		var profiles map[string]json.RawMessage
		if err := json.Unmarshal(msg, &profiles); err != nil {
			keep(fmt.Errorf("profiles: %w", err))
		} else if len(profiles) > 0 {
			st.Profiles = make(map[string][]string, len(profiles))
			for name, list := range profiles {
				var paths []string
				if err := json.Unmarshal(list, &paths); err != nil {
					keep(fmt.Errorf("profile %q: %w", name, err))
					continue
				}
				st.Profiles[name] = paths
			}
		}
	}
	if msg, ok := raw["current_profile"]; ok {
		var current string
		if err := json.Unmarshal(msg, &current); err != nil {
			keep(fmt.Errorf("current_profile: %w", err))
		} else {
			st.CurrentProfile = current
		}
	}

	return normalize(st), firstErr
}

// Save writes st to path atomically, creating parent directories.
func Save(path string, st State) error {
	data, err := json.MarshalIndent(normalize(st), "", "  ")
	if err != nil {
		return &ConfigError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &ConfigError{Op: "write", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".profiles-*.tmp")
	if err != nil {
		return &ConfigError{Op: "write", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &ConfigError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &ConfigError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &ConfigError{Op: "write", Path: path, Err: fmt.Errorf("renaming into place: %w", err)}
	}
	return nil
}

// normalize returns a copy of st that satisfies the store invariants: at
// least one profile, no nil or duplicate path lists, and a current profile
// that exists.
func normalize(st State) State {
	out := State{
		CurrentProfile: st.CurrentProfile,
		Profiles:       make(map[string][]string, len(st.Profiles)),
	}
	for name, paths := range st.Profiles {
		if name == "" {
			continue
		}
		clean := make([]string, 0, len(paths))
		for _, p := range paths {
			if p != "" && !slices.Contains(clean, p) {
				clean = append(clean, p)
			}
		}
		out.Profiles[name] = clean
	}
	if len(out.Profiles) == 0 {
		out.Profiles[DefaultProfile] = []string{}
	}
	if _, ok := out.Profiles[out.CurrentProfile]; !ok {
		if _, ok := out.Profiles[DefaultProfile]; ok {
			out.CurrentProfile = DefaultProfile
		} else {
			out.CurrentProfile = sortedNames(out.Profiles)[0]
		}
	}
	return out
}

func sortedNames(profiles map[string][]string) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
