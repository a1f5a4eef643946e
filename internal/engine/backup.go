package engine

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// BackupOptions configures a backup operation.
type BackupOptions struct {
	Profile     string
	Paths       []string
	Destination string
}

// BackupReport summarizes a completed backup.
type BackupReport struct {
	Destination  string
	Manifest     *Manifest
	FilesWritten int
	DirsWritten  int
	TotalSize    int64
	// Skipped lists input paths that did not exist. They have no mapping.
	Skipped  []string
	Duration time.Duration
}

// Builder turns an ordered list of directories into a backup archive.
type Builder struct {
	level  int
	logger *slog.Logger
}

// NewBuilder creates a Builder writing Deflate entries at the given level.
func NewBuilder(level int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{level: level, logger: logger}
}

// sourceEntry is one item found under a source directory.
type sourceEntry struct {
	absPath string
	relPath string // slash separated; ends in "/" for empty directory markers
	dir     bool
}

// Build runs the counting pass then the writing pass, and finally embeds the
// manifest. Any I/O failure aborts the whole backup; the destination may be
// left partially written.
func (b *Builder) Build(opts BackupOptions, progress ProgressFunc) (*BackupReport, error) {
	startTime := time.Now()

	if opts.Destination == "" {
		return nil, ioError("backup", "", fmt.Errorf("destination is required"))
	}
	dest, err := filepath.Abs(opts.Destination)
	if err != nil {
		return nil, ioError("resolve destination", opts.Destination, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, ioError("create destination directory", filepath.Dir(dest), err)
	}
	exclude := dest
	if dir, err := filepath.EvalSymlinks(filepath.Dir(dest)); err == nil {
		exclude = filepath.Join(dir, filepath.Base(dest))
	}

	// Counting pass
	total := 0
	for _, src := range opts.Paths {
		if !pathExists(src) {
			continue
		}
		err := walkSource(src, exclude, func(e sourceEntry) error {
			if !e.dir {
				total++
			}
			return nil
		})
		if err != nil {
			return nil, ioError("scan source", src, err)
		}
	}
	b.logger.Info("backup starting", "destination", dest, "paths", len(opts.Paths), "files", total)

	f, err := os.Create(dest)
	if err != nil {
		return nil, ioError("create archive", dest, err)
	}
	zw := zip.NewWriter(f)
	level := b.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	fail := func(err error) (*BackupReport, error) {
		_ = zw.Close()
		_ = f.Close()
		b.logger.Warn("backup failed, partial archive may remain", "path", dest, "error", err)
		return nil, err
	}

	report := &BackupReport{Destination: dest}
	manifest := &Manifest{Profile: opts.Profile, Mappings: []Mapping{}}
	if hostname, err := os.Hostname(); err == nil {
		manifest.SourceHost = hostname
	}
	created := startTime.UTC()
	manifest.Created = &created

	reporter := NewReporter(OpBackup, total, progress)
	processed := 0

	// Writing pass
	for idx, src := range opts.Paths {
		if !pathExists(src) {
			b.logger.Warn("source path missing, skipping", "path", src)
			report.Skipped = append(report.Skipped, src)
			continue
		}

		mapping := Mapping{SourcePath: src, ArchiveName: ArchiveNameFor(src, idx)}
		manifest.Mappings = append(manifest.Mappings, mapping)
		b.logger.Debug("archiving directory", "path", src, "archive_name", mapping.ArchiveName)

		err := walkSource(src, exclude, func(e sourceEntry) error {
			name := mapping.Prefix() + e.relPath
			if e.dir {
				if err := addDirMarker(zw, e.absPath, name); err != nil {
					return err
				}
				report.DirsWritten++
				return nil
			}
			n, err := addFileToZip(zw, e.absPath, name)
			if err != nil {
				return err
			}
			report.FilesWritten++
			report.TotalSize += n
			processed++
			reporter.Report(processed)
			return nil
		})
		if err != nil {
			return fail(ioError("archive source", src, err))
		}
	}

	if err := writeManifest(zw, manifest); err != nil {
		return fail(ioError("write manifest", dest, err))
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return nil, ioError("finalize archive", dest, err)
	}
	if err := f.Close(); err != nil {
		return nil, ioError("close archive", dest, err)
	}

	report.Manifest = manifest
	report.Duration = time.Since(startTime)

	b.logger.Info("backup completed",
		"destination", dest,
		"mappings", len(manifest.Mappings),
		"files", report.FilesWritten,
		"skipped", len(report.Skipped),
		"total_size", report.TotalSize,
		"duration", report.Duration,
	)
	return report, nil
}

// pathExists mirrors a plain existence check: any stat failure counts as missing.
func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// walkSource visits every regular file under root, plus a marker for each
// subdirectory that yields nothing else. Symlinked directories are not
// followed. exclude is skipped so an archive written inside a source tree
// never includes itself.
func walkSource(root, exclude string, visit func(sourceEntry) error) error {
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	_, err := walkDir(root, "", exclude, visit)
	return err
}

// walkDir walks dir in lexical order and returns how many entries it
// visited beneath it. A directory that visits nothing gets a marker, so
// content the walker skips never hides an otherwise empty directory.
func walkDir(dir, rel, exclude string, visit func(sourceEntry) error) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	visited := 0
	for _, d := range entries {
		p := filepath.Join(dir, d.Name())
		childRel := path.Join(rel, d.Name())

		if d.IsDir() {
			n, err := walkDir(p, childRel, exclude, visit)
			if err != nil {
				return visited, err
			}
			if n == 0 {
				if err := visit(sourceEntry{absPath: p, relPath: childRel + "/", dir: true}); err != nil {
					return visited, err
				}
				n = 1
			}
			visited += n
			continue
		}

		switch {
		case d.Type().IsRegular():
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(p)
			if err != nil {
				return visited, err
			}
			if !info.Mode().IsRegular() {
				continue
			}
		default:
			// sockets, devices, pipes
			continue
		}

		if abs, err := filepath.Abs(p); err == nil && abs == exclude {
			continue
		}
		if err := visit(sourceEntry{absPath: p, relPath: childRel}); err != nil {
			return visited, err
		}
		visited++
	}
	return visited, nil
}

// addFileToZip compresses a single file into the archive under name.
func addFileToZip(zw *zip.Writer, srcPath, name string) (int64, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}

	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return 0, err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", srcPath, err)
	}
	return n, nil
}

// addDirMarker records an empty directory as a trailing-slash entry.
func addDirMarker(zw *zip.Writer, dirPath, name string) error {
	stat, err := os.Stat(dirPath)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Store
	_, err = zw.CreateHeader(header)
	return err
}
