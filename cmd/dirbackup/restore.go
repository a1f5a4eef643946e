package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BadgerOps/dirbackup/internal/engine"
	"github.com/BadgerOps/dirbackup/internal/safety"
	"github.com/BadgerOps/dirbackup/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	restoreYes         bool
	restorePreviewOnly bool
)

type restoreOptions struct {
	yes         bool
	previewOnly bool
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore ARCHIVE",
		Short: "Restore a backup archive to its original locations",
		Long: `Restore a backup archive to the absolute paths recorded in its restore map.

The archive is checked and a preview lists every target directory and whether
it will be created or overwritten. After confirmation each file is written,
replacing any existing file. Nothing is rolled back on failure.

Restoring needs administrative rights. When they are missing dirbackup offers
to relaunch itself elevated with the archive as its only argument.`,
		Example: `  dirbackup restore Work_nightly_2024-01-01.zip
  dirbackup restore --preview-only backup.zip
  sudo dirbackup restore --yes backup.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return restoreArchive(args[0], restoreOptions{
				yes:         restoreYes,
				previewOnly: restorePreviewOnly,
			})
		},
	}

	cmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip confirmation prompts")
	cmd.Flags().BoolVar(&restorePreviewOnly, "preview-only", false, "show the preview and exit without writing")

	return cmd
}

// restoreArchive drives one restore attempt through the coordinator.
func restoreArchive(zipPath string, opts restoreOptions) error {
	if globalWorker == nil || globalElevator == nil {
		return fmt.Errorf("components not initialized")
	}

	coord := engine.NewCoordinator(globalElevator, logger)
	m, err := coord.LoadManifest(zipPath)
	if err != nil {
		return fmt.Errorf("cannot restore %s: %w", zipPath, err)
	}

	items, err := coord.BuildPreview()
	if err != nil {
		return err
	}
	printPreview(zipPath, m, items)
	if opts.previewOnly {
		return nil
	}

	run := beginRun(store.KindRestore, m.Profile, zipPath)
	prompt := safety.PromptOptions{Yes: opts.yes}

	ok, err := safety.Confirm(prompt, stdin, os.Stdout,
		fmt.Sprintf("Restore %d directories? Existing files will be overwritten", len(items)))
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return err
	}
	if !ok {
		return cancelRestore(coord, run)
	}

	if err := coord.Confirm(); err != nil {
		if !errors.Is(err, engine.ErrElevationRequired) {
			finishRun(run, store.StatusFailed, err)
			return err
		}
		return elevateRestore(coord, run, prompt)
	}

	return extractRestore(coord, run)
}

func cancelRestore(coord *engine.Coordinator, run *store.Run) error {
	if err := coord.Cancel(); err != nil {
		return err
	}
	finishRun(run, store.StatusCancelled, nil)
	fmt.Println("Restore cancelled, nothing was written.")
	return nil
}

// elevateRestore asks to relaunch elevated. On success the process is
// replaced and this function does not return.
func elevateRestore(coord *engine.Coordinator, run *store.Run, prompt safety.PromptOptions) error {
	fmt.Println("Restoring requires administrative privileges.")
	ok, err := safety.Confirm(prompt, stdin, os.Stdout, "Relaunch elevated to continue")
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return err
	}
	if !ok {
		return cancelRestore(coord, run)
	}

	finishRun(run, store.StatusElevationRequested, nil)
	if err := coord.Elevate(); err != nil {
		finishRun(run, store.StatusFailed, err)
		return fmt.Errorf("elevation failed: %w", err)
	}
	return nil
}

func extractRestore(coord *engine.Coordinator, run *store.Run) error {
	events, err := engine.Run(globalWorker, "restore", func(progress engine.ProgressFunc) (*engine.RestoreReport, error) {
		return coord.Extract(progress)
	})
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return err
	}

	report, err := engine.Collect(events, progressPrinter("Restore"))
	if run != nil && report != nil {
		run.Files = report.FilesWritten
		run.Bytes = report.TotalSize
	}
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return fmt.Errorf("restore failed: %w", err)
	}
	recordMappings(run, coord.Manifest())
	finishRun(run, store.StatusCompleted, nil)

	fmt.Printf("Restore complete:\n")
	fmt.Printf("  Directories: %d (%d created)\n", report.Mappings, report.DirsCreated)
	fmt.Printf("  Files: %d\n", report.FilesWritten)
	fmt.Printf("  Total size: %s\n", humanize.IBytes(uint64(report.TotalSize)))
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Millisecond))

	return nil
}

func printPreview(zipPath string, m *engine.Manifest, items []engine.PreviewItem) {
	fmt.Printf("Archive: %s\n", zipPath)
	if m.Profile != "" {
		fmt.Printf("Profile: %s\n", m.Profile)
	}
	if m.SourceHost != "" {
		fmt.Printf("Created on: %s\n", m.SourceHost)
	}
	if m.Created != nil {
		fmt.Printf("Created: %s (%s)\n", m.Created.Local().Format("2006-01-02 15:04"), humanize.Time(*m.Created))
	}
	fmt.Println()

	if len(items) == 0 {
		fmt.Println("The archive contains no directories.")
		return
	}

	fmt.Printf("%-16s %-20s %s\n", "Action", "Archive Name", "Target")
	fmt.Println(strings.Repeat("-", 70))
	for _, it := range items {
		action := "create"
		if it.Action == engine.WillOverwrite {
			action = "overwrite"
		}
		fmt.Printf("%-16s %-20s %s\n", action, it.ArchiveName, it.SourcePath)
	}
	fmt.Println()
}
