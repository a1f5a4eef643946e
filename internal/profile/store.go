package profile

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

// Store owns the profile state and saves it after every mutation. A Store
// is used from a single goroutine.
type Store struct {
	path   string
	logger *slog.Logger
	state  State
}

// Open loads the profile file at path. A file that cannot be used is logged
// and replaced in memory by the defaults; it is not rewritten until the
// first mutation.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := Load(path)
	if err != nil {
		logger.Warn("profile store unreadable, using defaults", "path", path, "error", err)
	}
	return &Store{path: path, logger: logger, state: st}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	out := State{
		CurrentProfile: s.state.CurrentProfile,
		Profiles:       make(map[string][]string, len(s.state.Profiles)),
	}
	for name, paths := range s.state.Profiles {
		out.Profiles[name] = slices.Clone(paths)
	}
	return out
}

func (s *Store) save() error {
	if err := Save(s.path, s.state); err != nil {
		s.logger.Error("saving profile store", "path", s.path, "error", err)
		return err
	}
	s.logger.Debug("profile store saved", "path", s.path)
	return nil
}

// Profiles returns every profile name in sorted order.
func (s *Store) Profiles() []string {
	return sortedNames(s.state.Profiles)
}

// Current returns the name of the selected profile.
func (s *Store) Current() string {
	return s.state.CurrentProfile
}

// SetCurrent selects an existing profile.
func (s *Store) SetCurrent(name string) error {
	if _, ok := s.state.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	s.state.CurrentProfile = name
	return s.save()
}

// AddProfile creates an empty profile.
func (s *Store) AddProfile(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := s.state.Profiles[name]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, name)
	}
	s.state.Profiles[name] = []string{}
	return s.save()
}

// RemoveProfile deletes a profile. The last profile cannot be removed. When
// the current profile is removed the first remaining name in sorted order
// becomes current.
func (s *Store) RemoveProfile(name string) error {
	if _, ok := s.state.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if len(s.state.Profiles) == 1 {
		return ErrLastProfile
	}
	delete(s.state.Profiles, name)
	if s.state.CurrentProfile == name {
		s.state.CurrentProfile = sortedNames(s.state.Profiles)[0]
	}
	return s.save()
}

// Paths returns a copy of a profile's ordered path list.
func (s *Store) Paths(name string) ([]string, error) {
	paths, ok := s.state.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return slices.Clone(paths), nil
}

// AddPath appends an absolute directory to a profile.
func (s *Store) AddPath(name, dir string) error {
	paths, ok := s.state.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: %s", ErrRelativePath, dir)
	}
	dir = filepath.Clean(dir)
	if slices.Contains(paths, dir) {
		return fmt.Errorf("%w: %s", ErrPathExists, dir)
	}
	s.state.Profiles[name] = append(paths, dir)
	return s.save()
}

// RemovePath deletes a directory from a profile, keeping the order of the rest.
func (s *Store) RemovePath(name, dir string) error {
	paths, ok := s.state.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	i := slices.Index(paths, filepath.Clean(dir))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPathNotFound, dir)
	}
	s.state.Profiles[name] = slices.Delete(paths, i, i+1)
	return s.save()
}

// Snapshot captures a profile for a backup. An empty name means the current
// profile.
func (s *Store) Snapshot(name string) (Snapshot, error) {
	if name == "" {
		name = s.state.CurrentProfile
	}
	paths, err := s.Paths(name)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Name: name, Paths: paths}, nil
}
