package engine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BadgerOps/dirbackup/internal/safety"
	"github.com/klauspost/compress/zip"
)

// RestoreState is a step of the restore state machine.
type RestoreState string

const (
	StateIdle             RestoreState = "idle"
	StateManifestLoaded   RestoreState = "manifest_loaded"
	StatePreviewReady     RestoreState = "preview_ready"
	StateConfirmed        RestoreState = "confirmed"
	StateCancelled        RestoreState = "cancelled"
	StateElevationPending RestoreState = "elevation_pending"
	StateExtracting       RestoreState = "extracting"
	StateCompleted        RestoreState = "completed"
	StateFailed           RestoreState = "failed"
)

// PreviewAction describes what a restore will do to one target directory.
type PreviewAction string

const (
	WillCreate    PreviewAction = "will_create"
	WillOverwrite PreviewAction = "will_overwrite"
)

// PreviewItem is one row of the restore preview.
type PreviewItem struct {
	SourcePath  string        `json:"source_path"`
	ArchiveName string        `json:"archive_name"`
	Action      PreviewAction `json:"action"`
}

// RestoreReport summarizes a completed extraction.
type RestoreReport struct {
	ArchivePath  string
	Mappings     int
	FilesWritten int
	DirsCreated  int
	TotalSize    int64
	Duration     time.Duration
}

// Elevator is the privilege check and relaunch handshake used by Confirm.
type Elevator interface {
	Query() bool
	RequestElevation(zipPath string) error
}

// Coordinator drives one restore attempt from manifest load to extraction.
// A Coordinator is not reused; a relaunched elevated process builds a new one.
type Coordinator struct {
	elevator Elevator
	logger   *slog.Logger

	mu       sync.Mutex
	state    RestoreState
	zipPath  string
	manifest *Manifest
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator(elevator Elevator, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		elevator: elevator,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current state. Safe to call while Extract runs.
func (c *Coordinator) State() RestoreState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ZipPath returns the archive being restored.
func (c *Coordinator) ZipPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zipPath
}

// Manifest returns the loaded manifest, or nil before LoadManifest succeeds.
func (c *Coordinator) Manifest() *Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manifest
}

// transition moves from one of the allowed states to next.
func (c *Coordinator) transition(next RestoreState, from ...RestoreState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range from {
		if c.state == s {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, c.state, next)
}

func (c *Coordinator) setState(s RestoreState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// LoadManifest opens the archive and decodes its manifest. On failure the
// coordinator stays idle and nothing on disk has been touched.
func (c *Coordinator) LoadManifest(zipPath string) (*Manifest, error) {
	if s := c.State(); s != StateIdle {
		return nil, fmt.Errorf("%w: load manifest in state %s", ErrInvalidState, s)
	}

	zr, err := openArchive(zipPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = zr.Close()
	}()

	m, err := ReadManifest(&zr.Reader)
	if err != nil {
		c.logger.Warn("invalid backup archive", "path", zipPath, "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.zipPath = zipPath
	c.manifest = m
	c.state = StateManifestLoaded
	c.mu.Unlock()

	c.logger.Info("manifest loaded", "path", zipPath, "mappings", len(m.Mappings))
	return m, nil
}

// Preview classifies each mapping's restore target. It never writes.
func Preview(m *Manifest) []PreviewItem {
	items := make([]PreviewItem, 0, len(m.Mappings))
	for _, mp := range m.Mappings {
		action := WillCreate
		if pathExists(mp.SourcePath) {
			action = WillOverwrite
		}
		items = append(items, PreviewItem{
			SourcePath:  mp.SourcePath,
			ArchiveName: mp.ArchiveName,
			Action:      action,
		})
	}
	return items
}

// BuildPreview computes the preview for the loaded manifest.
func (c *Coordinator) BuildPreview() ([]PreviewItem, error) {
	m := c.Manifest()
	if m == nil {
		return nil, fmt.Errorf("%w: no manifest loaded", ErrInvalidState)
	}
	items := Preview(m)
	if err := c.transition(StatePreviewReady, StateManifestLoaded, StatePreviewReady); err != nil {
		return nil, err
	}
	return items, nil
}

// Confirm accepts the preview. When the process is not elevated it returns
// ErrElevationRequired and the coordinator waits for Elevate or Cancel.
func (c *Coordinator) Confirm() error {
	if s := c.State(); s != StatePreviewReady {
		return fmt.Errorf("%w: confirm in state %s", ErrInvalidState, s)
	}
	if c.elevator.Query() {
		c.setState(StateConfirmed)
		c.logger.Info("restore confirmed", "path", c.ZipPath())
		return nil
	}
	c.setState(StateElevationPending)
	c.logger.Info("restore requires elevation", "path", c.ZipPath())
	return ErrElevationRequired
}

// Elevate hands the zip path to a freshly spawned elevated process. On
// success the current process is replaced or terminated by the elevator and
// this attempt never resolves. A refusal fails the attempt with a privilege
// error and the current process keeps running.
func (c *Coordinator) Elevate() error {
	if s := c.State(); s != StateElevationPending {
		return fmt.Errorf("%w: elevate in state %s", ErrInvalidState, s)
	}
	zipPath := c.ZipPath()
	if err := c.elevator.RequestElevation(zipPath); err != nil {
		c.setState(StateFailed)
		c.logger.Error("elevation failed", "path", zipPath, "error", err)
		return privilegeError("request elevation", zipPath, err)
	}
	return nil
}

// Cancel abandons the attempt before extraction starts.
func (c *Coordinator) Cancel() error {
	return c.transition(StateCancelled, StateManifestLoaded, StatePreviewReady, StateElevationPending)
}

// Extract writes every mapping's files back to its source path. Files are
// overwritten unconditionally; a failure stops immediately and nothing
// already written is rolled back.
func (c *Coordinator) Extract(progress ProgressFunc) (*RestoreReport, error) {
	if err := c.transition(StateExtracting, StateConfirmed); err != nil {
		return nil, err
	}
	startTime := time.Now()
	zipPath := c.ZipPath()
	m := c.Manifest()

	report, err := c.extract(zipPath, m, progress)
	if err != nil {
		c.setState(StateFailed)
		c.logger.Error("restore failed", "path", zipPath, "error", err)
		return report, err
	}

	report.Duration = time.Since(startTime)
	c.setState(StateCompleted)
	c.logger.Info("restore completed",
		"path", zipPath,
		"mappings", report.Mappings,
		"files", report.FilesWritten,
		"total_size", report.TotalSize,
		"duration", report.Duration,
	)
	return report, nil
}

func (c *Coordinator) extract(zipPath string, m *Manifest, progress ProgressFunc) (*RestoreReport, error) {
	report := &RestoreReport{ArchivePath: zipPath}

	zr, err := openArchive(zipPath)
	if err != nil {
		return report, err
	}
	defer func() {
		_ = zr.Close()
	}()

	// One global count across the whole archive.
	total := 0
	for _, f := range zr.File {
		if f.Name == ManifestEntryName || strings.HasSuffix(f.Name, "/") {
			continue
		}
		total++
	}

	// Reject unsafe entries before anything is written.
	for _, mp := range m.Mappings {
		for _, f := range zr.File {
			rel, ok := strings.CutPrefix(f.Name, mp.Prefix())
			if !ok || rel == "" {
				continue
			}
			if f.Mode()&fs.ModeSymlink != 0 {
				return report, formatError("validate entry", f.Name, fmt.Errorf("unsupported entry type %s", f.Mode().Type()))
			}
			if _, err := restoreTarget(mp.SourcePath, rel); err != nil {
				return report, formatError("validate entry", f.Name, err)
			}
		}
	}

	reporter := NewReporter(OpRestore, total, progress)
	processed := 0

	for _, mp := range m.Mappings {
		if !pathExists(mp.SourcePath) {
			report.DirsCreated++
		}
		if err := os.MkdirAll(mp.SourcePath, 0o755); err != nil {
			return report, ioError("create target", mp.SourcePath, err)
		}
		c.logger.Debug("restoring mapping", "archive_name", mp.ArchiveName, "target", mp.SourcePath)

		for _, f := range zr.File {
			rel, ok := strings.CutPrefix(f.Name, mp.Prefix())
			if !ok || rel == "" {
				continue
			}
			target, err := restoreTarget(mp.SourcePath, rel)
			if err != nil {
				return report, formatError("validate entry", f.Name, err)
			}

			if strings.HasSuffix(rel, "/") {
				if err := os.MkdirAll(target, 0o755); err != nil {
					return report, ioError("create directory", target, err)
				}
				continue
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return report, ioError("create directory", filepath.Dir(target), err)
			}
			n, err := extractFile(f, target)
			if err != nil {
				return report, ioError("extract file", target, err)
			}
			report.FilesWritten++
			report.TotalSize += n
			processed++
			reporter.Report(processed)
		}
		report.Mappings++
	}

	return report, nil
}

// restoreTarget joins an archive-relative path under root, refusing any
// path that would land outside it.
func restoreTarget(root, rel string) (string, error) {
	rel = strings.TrimSuffix(rel, "/")
	return safety.JoinUnder(root, rel)
}

// extractFile copies one decompressed entry to target, truncating it.
func extractFile(f *zip.File, target string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, rc)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// openArchive opens a zip file, classifying corrupt containers as format
// errors and everything else as I/O errors.
func openArchive(zipPath string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum) {
			return nil, formatError("open archive", zipPath, err)
		}
		return nil, ioError("open archive", zipPath, err)
	}
	return zr, nil
}
