package profile

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "profiles.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(st, DefaultState()) {
		t.Errorf("Load() = %+v, want defaults", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	states := []State{
		DefaultState(),
		{
			CurrentProfile: "Work",
			Profiles: map[string][]string{
				"Default": {},
				"Work":    {"/data/projects", "/home/u/notes", "/etc/app"},
			},
		},
		{
			CurrentProfile: "b",
			Profiles: map[string][]string{
				"a": {"/x"},
				"b": {"/z", "/y"},
			},
		},
	}
	for i, st := range states {
		path := filepath.Join(t.TempDir(), "profiles.json")
		if err := Save(path, st); err != nil {
			t.Fatalf("state %d: Save() error: %v", i, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("state %d: Load() error: %v", i, err)
		}
		if !reflect.DeepEqual(got, st) {
			t.Errorf("state %d: Load(Save(s)) = %+v, want %+v", i, got, st)
		}
	}
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    State
		wantErr bool
	}{
		{
			name: "empty file",
			data: "",
			want: DefaultState(),
		},
		{
			name: "comments and trailing commas",
			data: `{
				// selected profile
				"current_profile": "Work",
				"profiles": {"Work": ["/a", "/b",],},
			}`,
			want: State{CurrentProfile: "Work", Profiles: map[string][]string{"Work": {"/a", "/b"}}},
		},
		{
			name: "missing profiles",
			data: `{"current_profile": "Work"}`,
			want: DefaultState(),
		},
		{
			name: "missing current",
			data: `{"profiles": {"Default": ["/a"], "Work": []}}`,
			want: State{CurrentProfile: "Default", Profiles: map[string][]string{"Default": {"/a"}, "Work": {}}},
		},
		{
			name: "current names unknown profile",
			data: `{"current_profile": "Gone", "profiles": {"b": [], "a": []}}`,
			want: State{CurrentProfile: "a", Profiles: map[string][]string{"a": {}, "b": {}}},
		},
		{
			name:    "one malformed profile",
			data:    `{"current_profile": "ok", "profiles": {"ok": ["/a"], "bad": 7}}`,
			want:    State{CurrentProfile: "ok", Profiles: map[string][]string{"ok": {"/a"}}},
			wantErr: true,
		},
		{
			name:    "wrong current type",
			data:    `{"current_profile": 3, "profiles": {"Default": []}}`,
			want:    DefaultState(),
			wantErr: true,
		},
		{
			name:    "not an object",
			data:    `[1, 2, 3]`,
			want:    DefaultState(),
			wantErr: true,
		},
		{
			name: "duplicate paths collapse",
			data: `{"current_profile": "Default", "profiles": {"Default": ["/a", "/a", "/b"]}}`,
			want: State{CurrentProfile: "Default", Profiles: map[string][]string{"Default": {"/a", "/b"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data), "profiles.json")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("expected *ConfigError, got %T", err)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOpenUnreadableFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("{{{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path, testLogger())
	if s.Current() != DefaultProfile {
		t.Errorf("Current() = %q, want %q", s.Current(), DefaultProfile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{{{ not json" {
		t.Error("Open must not rewrite the file")
	}
}

func TestStoreMutationsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "profiles.json")
	s := Open(path, testLogger())

	if err := s.AddProfile("Work"); err != nil {
		t.Fatalf("AddProfile() error: %v", err)
	}
	if err := s.AddProfile("Work"); !errors.Is(err, ErrProfileExists) {
		t.Errorf("duplicate AddProfile() = %v, want ErrProfileExists", err)
	}
	if err := s.AddProfile("  "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank AddProfile() = %v, want ErrEmptyName", err)
	}
	if err := s.SetCurrent("Work"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCurrent("Nope"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("SetCurrent(Nope) = %v, want ErrProfileNotFound", err)
	}
	for _, p := range []string{"/data/projects", "/home/u/notes"} {
		if err := s.AddPath("Work", p); err != nil {
			t.Fatalf("AddPath(%s) error: %v", p, err)
		}
	}
	if err := s.AddPath("Work", "/data/projects/"); !errors.Is(err, ErrPathExists) {
		t.Errorf("duplicate AddPath() = %v, want ErrPathExists", err)
	}
	if err := s.AddPath("Work", "relative/dir"); !errors.Is(err, ErrRelativePath) {
		t.Errorf("relative AddPath() = %v, want ErrRelativePath", err)
	}

	reopened := Open(path, testLogger())
	if reopened.Current() != "Work" {
		t.Errorf("reopened Current() = %q, want Work", reopened.Current())
	}
	snap, err := reopened.Snapshot("")
	if err != nil {
		t.Fatal(err)
	}
	want := Snapshot{Name: "Work", Paths: []string{"/data/projects", "/home/u/notes"}}
	if !reflect.DeepEqual(snap, want) {
		t.Errorf("Snapshot() = %+v, want %+v", snap, want)
	}

	if err := reopened.RemovePath("Work", "/data/projects"); err != nil {
		t.Fatal(err)
	}
	if err := reopened.RemovePath("Work", "/data/projects"); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("second RemovePath() = %v, want ErrPathNotFound", err)
	}
	paths, _ := Open(path, testLogger()).Paths("Work")
	if !reflect.DeepEqual(paths, []string{"/home/u/notes"}) {
		t.Errorf("Paths() = %v", paths)
	}
}

func TestRemoveProfile(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "profiles.json"), testLogger())
	if err := s.RemoveProfile(DefaultProfile); !errors.Is(err, ErrLastProfile) {
		t.Fatalf("RemoveProfile(last) = %v, want ErrLastProfile", err)
	}

	for _, name := range []string{"Zeta", "Alpha"} {
		if err := s.AddProfile(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetCurrent("Zeta"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveProfile("Zeta"); err != nil {
		t.Fatal(err)
	}
	if s.Current() != "Alpha" {
		t.Errorf("Current() = %q, want Alpha", s.Current())
	}
	if got := s.Profiles(); !reflect.DeepEqual(got, []string{"Alpha", DefaultProfile}) {
		t.Errorf("Profiles() = %v", got)
	}
	if err := s.RemoveProfile("Zeta"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("RemoveProfile(missing) = %v, want ErrProfileNotFound", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "profiles.json"), testLogger())
	if err := s.AddPath(DefaultProfile, "/a"); err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot(DefaultProfile)
	if err != nil {
		t.Fatal(err)
	}
	snap.Paths[0] = "/mutated"
	paths, _ := s.Paths(DefaultProfile)
	if paths[0] != "/a" {
		t.Errorf("store changed through snapshot: %v", paths)
	}
}
