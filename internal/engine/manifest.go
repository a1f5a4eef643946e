package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// ManifestEntryName is the well-known archive entry holding the manifest.
const ManifestEntryName = "restore_map.json"

// maxManifestSize bounds how much of the manifest entry is read into memory.
const maxManifestSize = 16 << 20

// Manifest maps archive namespaces back to the directories they were taken from.
type Manifest struct {
	Mappings []Mapping `json:"mappings"`

	// Informational only; restore never depends on these.
	Profile    string     `json:"profile,omitempty"`
	SourceHost string     `json:"source_host,omitempty"`
	Created    *time.Time `json:"created,omitempty"`
}

// Mapping is one backed-up directory.
type Mapping struct {
	SourcePath  string `json:"source_path"`
	ArchiveName string `json:"archive_name"`
}

// Prefix returns the archive key prefix that holds this mapping's files.
func (m Mapping) Prefix() string {
	return m.ArchiveName + "/"
}

// EncodeManifest serializes the manifest in its canonical form.
func EncodeManifest(m *Manifest) ([]byte, error) {
	out := *m
	if out.Mappings == nil {
		out.Mappings = []Mapping{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return data, nil
}

// DecodeManifest parses manifest bytes and validates the required shape.
// Every failure is a format error.
func DecodeManifest(data []byte) (*Manifest, error) {
	var raw struct {
		Mappings   *[]Mapping `json:"mappings"`
		Profile    string     `json:"profile"`
		SourceHost string     `json:"source_host"`
		Created    *time.Time `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, formatError("decode manifest", ManifestEntryName, err)
	}
	if raw.Mappings == nil {
		return nil, formatError("decode manifest", ManifestEntryName, fmt.Errorf("missing mappings"))
	}

	m := Manifest{
		Mappings:   *raw.Mappings,
		Profile:    raw.Profile,
		SourceHost: raw.SourceHost,
		Created:    raw.Created,
	}
	if err := m.validate(); err != nil {
		return nil, formatError("decode manifest", ManifestEntryName, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Mappings))
	for i, mp := range m.Mappings {
		if mp.SourcePath == "" {
			return fmt.Errorf("mapping %d: missing source_path", i)
		}
		if !isRootedPath(mp.SourcePath) {
			return fmt.Errorf("mapping %d: source_path %q is not absolute", i, mp.SourcePath)
		}
		if mp.ArchiveName == "" {
			return fmt.Errorf("mapping %d: missing archive_name", i)
		}
		if strings.ContainsAny(mp.ArchiveName, `/\`) || mp.ArchiveName == "." || mp.ArchiveName == ".." {
			return fmt.Errorf("mapping %d: invalid archive_name %q", i, mp.ArchiveName)
		}
		if seen[mp.ArchiveName] {
			return fmt.Errorf("mapping %d: duplicate archive_name %q", i, mp.ArchiveName)
		}
		seen[mp.ArchiveName] = true
	}
	return nil
}

// isRootedPath accepts absolute paths from either platform family so an
// archive made on one OS still decodes on another.
func isRootedPath(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ReadManifest locates and decodes the manifest entry of an open archive.
func ReadManifest(zr *zip.Reader) (*Manifest, error) {
	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == ManifestEntryName {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, formatError("read manifest", ManifestEntryName, ErrManifestMissing)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, formatError("read manifest", ManifestEntryName, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(rc, maxManifestSize+1))
	if err != nil {
		return nil, formatError("read manifest", ManifestEntryName, err)
	}
	if len(data) > maxManifestSize {
		return nil, formatError("read manifest", ManifestEntryName, fmt.Errorf("manifest exceeds %d bytes", maxManifestSize))
	}
	return DecodeManifest(data)
}

// writeManifest stores the manifest as the archive's manifest entry.
func writeManifest(zw *zip.Writer, m *Manifest) error {
	data, err := EncodeManifest(m)
	if err != nil {
		return err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestEntryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing manifest entry: %w", err)
	}
	return nil
}
