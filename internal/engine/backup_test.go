package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/flate"
)

func TestBuildArchiveNamesSkipMissing(t *testing.T) {
	base := t.TempDir()
	first := filepath.Join(base, "a", "docs")
	missing := filepath.Join(base, "b", "missing")
	third := filepath.Join(base, "c", "docs")
	writeTree(t, first, map[string]string{"one.txt": "1"})
	writeTree(t, third, map[string]string{"three.txt": "3"})

	dest := filepath.Join(t.TempDir(), "out.zip")
	b := NewBuilder(flate.DefaultCompression, testLogger())
	report, err := b.Build(BackupOptions{
		Profile:     "Default",
		Paths:       []string{first, missing, third},
		Destination: dest,
	}, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	got := report.Manifest.Mappings
	if len(got) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %+v", len(got), got)
	}
	if got[0].ArchiveName != "docs_0" || got[0].SourcePath != first {
		t.Errorf("mapping 0 = %+v", got[0])
	}
	if got[1].ArchiveName != "docs_2" || got[1].SourcePath != third {
		t.Errorf("mapping 1 = %+v", got[1])
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != missing {
		t.Errorf("skipped = %v, want [%s]", report.Skipped, missing)
	}

	names := zipEntries(t, dest)
	for _, want := range []string{"docs_0/one.txt", "docs_2/three.txt", ManifestEntryName} {
		if !slices.Contains(names, want) {
			t.Errorf("archive missing entry %q, have %v", want, names)
		}
	}
}

func TestBuildEmptyDirectoryMarker(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proj")
	writeTree(t, src, map[string]string{"keep/file.txt": "x"})
	if err := os.MkdirAll(filepath.Join(src, "empty", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "out.zip")
	report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Paths:       []string{src},
		Destination: dest,
	}, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if report.DirsWritten != 1 {
		t.Errorf("expected 1 directory marker, got %d", report.DirsWritten)
	}
	names := zipEntries(t, dest)
	if !slices.Contains(names, "proj_0/empty/nested/") {
		t.Errorf("expected empty directory marker, have %v", names)
	}
	if slices.Contains(names, "proj_0/empty/") {
		t.Errorf("non-empty directory should have no marker, have %v", names)
	}
}

func TestBuildExcludesDestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	dest := filepath.Join(src, "self.zip")

	report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Paths:       []string{src},
		Destination: dest,
	}, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if report.FilesWritten != 1 {
		t.Errorf("expected 1 file, got %d", report.FilesWritten)
	}
	for _, name := range zipEntries(t, dest) {
		if filepath.Base(name) == "self.zip" {
			t.Errorf("archive contains itself as %q", name)
		}
	}
}

func TestBuildNoExistingPaths(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.zip")
	report, err := NewBuilder(flate.BestSpeed, testLogger()).Build(BackupOptions{
		Paths:       []string{filepath.Join(t.TempDir(), "gone")},
		Destination: dest,
	}, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(report.Manifest.Mappings) != 0 {
		t.Errorf("expected no mappings, got %+v", report.Manifest.Mappings)
	}
	names := zipEntries(t, dest)
	if len(names) != 1 || names[0] != ManifestEntryName {
		t.Errorf("expected only the manifest entry, got %v", names)
	}
}

func TestBuildRequiresDestination(t *testing.T) {
	_, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Paths: []string{t.TempDir()},
	}, nil)
	if !IsKind(err, KindIO) {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestBuildProgressScenario(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	files := make(map[string]string)
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = fmt.Sprintf("content %d", i)
	}
	writeTree(t, docs, files)

	dest := filepath.Join(t.TempDir(), DefaultArchiveName("Work", "nightly", fixedDate))
	fn, got := collectProgress()
	report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Profile:     "Work",
		Paths:       []string{docs},
		Destination: dest,
	}, fn)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if filepath.Base(report.Destination) != "Work_nightly_2024-03-07.zip" {
		t.Errorf("destination = %s", report.Destination)
	}

	want := []int{5, 10, 12}
	if len(*got) != len(want) {
		t.Fatalf("expected %d progress events, got %+v", len(want), *got)
	}
	for i, p := range *got {
		if p.Processed != want[i] || p.Total != 12 {
			t.Errorf("event %d = %+v, want processed %d of 12", i, p, want[i])
		}
	}
	if report.Manifest.Mappings[0].ArchiveName != "docs_0" {
		t.Errorf("archive name = %q, want docs_0", report.Manifest.Mappings[0].ArchiveName)
	}
}

func TestBuildIOFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) (src, dest string)
	}{
		{
			name: "dangling symlink in source",
			setup: func(t *testing.T) (string, string) {
				src := filepath.Join(t.TempDir(), "src")
				writeTree(t, src, map[string]string{"ok.txt": "ok"})
				if err := os.Symlink(filepath.Join(src, "nowhere"), filepath.Join(src, "dangling")); err != nil {
					t.Skipf("symlinks unavailable: %v", err)
				}
				return src, filepath.Join(t.TempDir(), "out.zip")
			},
		},
		{
			name: "destination under a regular file",
			setup: func(t *testing.T) (string, string) {
				src := filepath.Join(t.TempDir(), "src")
				writeTree(t, src, map[string]string{"ok.txt": "ok"})
				blocker := filepath.Join(t.TempDir(), "file")
				if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				return src, filepath.Join(blocker, "nested", "out.zip")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest := tt.setup(t)
			report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
				Paths:       []string{src},
				Destination: dest,
			}, nil)
			if !IsKind(err, KindIO) {
				t.Fatalf("Build() error = %v, want io error", err)
			}
			if report != nil {
				t.Errorf("expected nil report on failure, got %+v", report)
			}
		})
	}
}

func TestBuildWritingPassFailureLeavesPartialArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	files := make(map[string]string)
	for i := 0; i < 6; i++ {
		files[fmt.Sprintf("f%d.txt", i)] = fmt.Sprintf("data %d", i)
	}
	writeTree(t, src, files)
	dest := filepath.Join(t.TempDir(), "out.zip")

	// The fifth file triggers a progress event; pull the sixth out from
	// under the writer before it is opened.
	progress := func(p Progress) {
		if p.Processed == 5 {
			if err := os.Remove(filepath.Join(src, "f5.txt")); err != nil {
				t.Errorf("removing f5.txt: %v", err)
			}
		}
	}

	report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Paths:       []string{src},
		Destination: dest,
	}, progress)
	if !IsKind(err, KindIO) {
		t.Fatalf("Build() error = %v, want io error", err)
	}
	if report != nil {
		t.Errorf("expected nil report on failure, got %+v", report)
	}
	if _, statErr := os.Stat(dest); statErr != nil {
		t.Errorf("partial archive should remain at %s: %v", dest, statErr)
	}
}

func TestBuildMarksDirectoryWithOnlySkippedContent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	writeTree(t, src, map[string]string{"keep/target/file.txt": "x"})
	if err := os.MkdirAll(filepath.Join(src, "onlylink"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(src, "keep"), filepath.Join(src, "onlylink", "dirlink")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.zip")
	report, err := NewBuilder(flate.DefaultCompression, testLogger()).Build(BackupOptions{
		Paths:       []string{src},
		Destination: dest,
	}, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	names := zipEntries(t, dest)
	if !slices.Contains(names, "src_0/onlylink/") {
		t.Errorf("expected marker for directory holding only a directory symlink, have %v", names)
	}
	if slices.Contains(names, "src_0/keep/") || slices.Contains(names, "src_0/keep/target/") {
		t.Errorf("directories with files should have no marker, have %v", names)
	}
	if report.FilesWritten != 1 || report.DirsWritten != 1 {
		t.Errorf("report = %+v, want 1 file and 1 marker", report)
	}
}
