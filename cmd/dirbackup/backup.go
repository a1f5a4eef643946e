package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BadgerOps/dirbackup/internal/engine"
	"github.com/BadgerOps/dirbackup/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	backupProfile string
	backupTag     string
	backupOut     string
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every directory of a profile into one zip file",
		Long: `Archive every directory of a profile into a single zip file. Each directory
is stored under its own namespace and a restore map records where it came from.

Directories that no longer exist are skipped and listed in the summary. The
default file name is <profile>_<tag>_<YYYY-MM-DD>.zip in backup.output_dir.`,
		Example: `  dirbackup backup
  dirbackup backup --profile Work --tag nightly
  dirbackup backup --profile Work --out /mnt/usb/work.zip`,
		Args: cobra.NoArgs,
		RunE: backupRun,
	}

	cmd.Flags().StringVar(&backupProfile, "profile", "", "profile to back up (default: current profile)")
	cmd.Flags().StringVar(&backupTag, "tag", "", "optional tag included in the default file name")
	cmd.Flags().StringVarP(&backupOut, "out", "o", "", "archive path (default: derived from profile, tag and date)")

	return cmd
}

func backupRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil || globalWorker == nil {
		return fmt.Errorf("components not initialized")
	}

	snap, err := globalProfiles.Snapshot(backupProfile)
	if err != nil {
		return err
	}
	if len(snap.Paths) == 0 {
		return fmt.Errorf("profile %q has no directories; add one with 'dirbackup path add'", snap.Name)
	}

	dest := backupOut
	if dest == "" {
		dest = filepath.Join(globalCfg.Backup.OutputDir, engine.DefaultArchiveName(snap.Name, backupTag, time.Now()))
	}

	fmt.Printf("Backing up profile %s to %s...\n", snap.Name, dest)
	for i, p := range snap.Paths {
		fmt.Printf("  [%d] %s\n", i, p)
	}
	fmt.Println()

	run := beginRun(store.KindBackup, snap.Name, dest)
	builder := engine.NewBuilder(globalCfg.Backup.CompressionLevel, logger)
	events, err := engine.Run(globalWorker, "backup", func(progress engine.ProgressFunc) (*engine.BackupReport, error) {
		return builder.Build(engine.BackupOptions{
			Profile:     snap.Name,
			Paths:       snap.Paths,
			Destination: dest,
		}, progress)
	})
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return err
	}

	report, err := engine.Collect(events, progressPrinter("Backup"))
	if err != nil {
		finishRun(run, store.StatusFailed, err)
		return fmt.Errorf("backup failed: %w", err)
	}

	if run != nil {
		run.ArchivePath = report.Destination
		run.Files = report.FilesWritten
		run.Bytes = report.TotalSize
		run.Skipped = len(report.Skipped)
	}
	recordMappings(run, report.Manifest)
	finishRun(run, store.StatusCompleted, nil)

	fmt.Printf("Backup complete:\n")
	fmt.Printf("  Archive: %s\n", report.Destination)
	fmt.Printf("  Directories: %d\n", len(report.Manifest.Mappings))
	fmt.Printf("  Files: %d\n", report.FilesWritten)
	fmt.Printf("  Total size: %s\n", humanize.IBytes(uint64(report.TotalSize)))
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Millisecond))
	for _, mp := range report.Manifest.Mappings {
		fmt.Printf("  - %s -> %s\n", mp.SourcePath, mp.ArchiveName)
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("  Skipped (missing):\n")
		for _, p := range report.Skipped {
			fmt.Printf("  - %s\n", p)
		}
	}

	return nil
}
