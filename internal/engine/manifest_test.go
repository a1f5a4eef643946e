package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestEncodeDecodeManifest(t *testing.T) {
	m := &Manifest{
		Profile: "Work",
		Mappings: []Mapping{
			{SourcePath: "/home/u/docs", ArchiveName: "docs_0"},
			{SourcePath: "/etc/app", ArchiveName: "app_1"},
		},
	}
	data, err := EncodeManifest(m)
	if err != nil {
		t.Fatalf("EncodeManifest() error: %v", err)
	}
	if !strings.Contains(string(data), `"source_path": "/home/u/docs"`) {
		t.Errorf("encoded manifest missing source_path:\n%s", data)
	}

	got, err := DecodeManifest(data)
	if err != nil {
		t.Fatalf("DecodeManifest() error: %v", err)
	}
	if len(got.Mappings) != 2 || got.Mappings[1].ArchiveName != "app_1" {
		t.Errorf("decoded mappings = %+v", got.Mappings)
	}
	if got.Profile != "Work" {
		t.Errorf("profile = %q, want Work", got.Profile)
	}
}

func TestEncodeManifestEmptyMappings(t *testing.T) {
	data, err := EncodeManifest(&Manifest{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"mappings": []`) {
		t.Errorf("expected empty mappings array, got:\n%s", data)
	}
}

func TestDecodeManifestIgnoresUnknownFields(t *testing.T) {
	data := `{"mappings":[{"source_path":"/a","archive_name":"a_0","extra":1}],"version":"9"}`
	m, err := DecodeManifest([]byte(data))
	if err != nil {
		t.Fatalf("DecodeManifest() error: %v", err)
	}
	if len(m.Mappings) != 1 {
		t.Errorf("expected 1 mapping, got %d", len(m.Mappings))
	}
}

func TestDecodeManifestRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"missing mappings", `{"profile":"x"}`},
		{"mappings wrong type", `{"mappings":{}}`},
		{"missing source", `{"mappings":[{"archive_name":"a_0"}]}`},
		{"missing archive name", `{"mappings":[{"source_path":"/a"}]}`},
		{"slash in archive name", `{"mappings":[{"source_path":"/a","archive_name":"a/0"}]}`},
		{"dot dot archive name", `{"mappings":[{"source_path":"/a","archive_name":".."}]}`},
		{"relative source", `{"mappings":[{"source_path":"data/projects","archive_name":"projects_0"}]}`},
		{"drive without separator", `{"mappings":[{"source_path":"C:projects","archive_name":"projects_0"}]}`},
		{"trailing data", `{"mappings":[{"source_path":"/a","archive_name":"a_0"}]} trailing`},
		{"second object", `{"mappings":[]}{"mappings":[]}`},
		{"duplicate archive name", `{"mappings":[{"source_path":"/a","archive_name":"a_0"},{"source_path":"/b","archive_name":"a_0"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeManifest([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsKind(err, KindFormat) {
				t.Errorf("expected format error, got %v", err)
			}
		})
	}
}

func TestDecodeManifestAcceptsForeignAbsolutePaths(t *testing.T) {
	data := `{"mappings":[` +
		`{"source_path":"/srv/data","archive_name":"data_0"},` +
		`{"source_path":"C:\\Users\\me\\docs","archive_name":"docs_1"},` +
		`{"source_path":"d:/music","archive_name":"music_2"},` +
		`{"source_path":"\\\\nas\\share\\photos","archive_name":"photos_3"}]}`
	m, err := DecodeManifest([]byte(data))
	if err != nil {
		t.Fatalf("DecodeManifest() error: %v", err)
	}
	if len(m.Mappings) != 4 {
		t.Errorf("expected 4 mappings, got %d", len(m.Mappings))
	}
}

func TestReadManifestMissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	writeZip(t, path, [][2]string{{"docs_0/a.txt", "a"}})

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	_, err = ReadManifest(&zr.Reader)
	if !errors.Is(err, ErrManifestMissing) {
		t.Fatalf("expected ErrManifestMissing, got %v", err)
	}
	if !IsKind(err, KindFormat) {
		t.Errorf("expected format error kind, got %v", err)
	}
}
