package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BadgerOps/dirbackup/internal/engine"
	"github.com/BadgerOps/dirbackup/internal/store"
)

// beginRun records the start of an operation. It returns nil when history
// is disabled or the write fails; the other helpers accept nil.
func beginRun(kind, profileName, archive string) *store.Run {
	if globalHistory == nil {
		return nil
	}
	run := &store.Run{
		Kind:        kind,
		Profile:     profileName,
		ArchivePath: archive,
		Status:      store.StatusRunning,
		StartTime:   time.Now(),
	}
	if err := globalHistory.CreateRun(run); err != nil {
		logger.Warn("failed to record run", "kind", kind, "error", err)
		return nil
	}
	return run
}

// finishRun stores the terminal status of a run.
func finishRun(run *store.Run, status string, err error) {
	if run == nil {
		return
	}
	run.Status = status
	run.EndTime = time.Now()
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	if err := globalHistory.UpdateRun(run); err != nil {
		logger.Warn("failed to update run", "id", run.ID, "error", err)
	}
}

// recordMappings stores the manifest mappings a run wrote or restored.
func recordMappings(run *store.Run, m *engine.Manifest) {
	if run == nil || m == nil {
		return
	}
	mappings := make([]store.RunMapping, 0, len(m.Mappings))
	for i, mp := range m.Mappings {
		mappings = append(mappings, store.RunMapping{
			Position:    i,
			SourcePath:  mp.SourcePath,
			ArchiveName: mp.ArchiveName,
		})
	}
	if err := globalHistory.AddRunMappings(run.ID, mappings); err != nil {
		logger.Warn("failed to record run mappings", "id", run.ID, "error", err)
	}
}

// progressPrinter renders throttled progress on stderr.
func progressPrinter(label string) func(engine.Progress) {
	return progressPrinterTo(os.Stderr, label)
}

func progressPrinterTo(w io.Writer, label string) func(engine.Progress) {
	if quiet {
		return nil
	}
	return func(p engine.Progress) {
		fmt.Fprintf(w, "\r%s: %d/%d files (%.0f%%)", label, p.Processed, p.Total, p.Percent())
		if p.Processed >= p.Total {
			fmt.Fprintln(w)
		}
	}
}
