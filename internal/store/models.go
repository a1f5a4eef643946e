package store

import "time"

// Run kinds
const (
	KindBackup  = "backup"
	KindRestore = "restore"
)

// Run statuses
const (
	StatusRunning            = "running"
	StatusCompleted          = "completed"
	StatusFailed             = "failed"
	StatusElevationRequested = "elevation_requested"
	StatusCancelled          = "cancelled"
)

// Run records one backup or restore attempt
type Run struct {
	ID           int64
	Kind         string // "backup" or "restore"
	Profile      string // empty for restores of foreign archives
	ArchivePath  string
	Files        int
	Bytes        int64
	Skipped      int // backup source paths that did not exist
	Status       string
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}

// RunMapping is one manifest mapping written or restored by a run
type RunMapping struct {
	ID          int64
	RunID       int64
	Position    int
	SourcePath  string
	ArchiveName string
}
