package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BadgerOps/dirbackup/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyKind  string
	historyLimit int
	historyRun   int64
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past backup and restore runs",
		Long: `Show past backup and restore runs recorded in the local history database,
newest first. Use --run to list the directories a single run covered.`,
		Example: `  dirbackup history
  dirbackup history --kind backup --limit 5
  dirbackup history --run 12`,
		Args: cobra.NoArgs,
		RunE: historyRunE,
	}

	cmd.Flags().StringVar(&historyKind, "kind", "", "only show runs of this kind (backup or restore)")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show (0 for all)")
	cmd.Flags().Int64Var(&historyRun, "run", 0, "show the directories of one run")

	return cmd
}

func historyRunE(cmd *cobra.Command, args []string) error {
	if globalHistory == nil {
		return fmt.Errorf("run history not available (history.enabled is false or the database could not be opened)")
	}

	if historyRun > 0 {
		return historyShowRun(historyRun)
	}

	switch historyKind {
	case "", store.KindBackup, store.KindRestore:
	default:
		return fmt.Errorf("unknown kind %q (expected backup or restore)", historyKind)
	}

	runs, err := globalHistory.ListRuns(historyKind, historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Println("Run History")
	fmt.Println("===========")
	fmt.Println("")
	fmt.Printf("%-6s %-8s %-12s %-20s %-17s %8s %10s  %s\n",
		"ID", "Kind", "Profile", "Status", "Started", "Files", "Size", "Archive")
	fmt.Println(strings.Repeat("-", 100))

	for _, run := range runs {
		profileName := run.Profile
		if profileName == "" {
			profileName = "-"
		}
		fmt.Printf("%-6d %-8s %-12s %-20s %-17s %8d %10s  %s\n",
			run.ID,
			run.Kind,
			profileName,
			run.Status,
			run.StartTime.Local().Format("2006-01-02 15:04"),
			run.Files,
			humanize.IBytes(uint64(run.Bytes)),
			run.ArchivePath,
		)
		if run.ErrorMessage != "" {
			fmt.Printf("       error: %s\n", run.ErrorMessage)
		}
	}
	fmt.Println("")

	return nil
}

func historyShowRun(id int64) error {
	run, err := globalHistory.GetRun(id)
	if err != nil {
		return err
	}
	mappings, err := globalHistory.ListRunMappings(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %d (%s, %s)\n", run.ID, run.Kind, run.Status)
	fmt.Printf("  Archive: %s\n", run.ArchivePath)
	if run.Profile != "" {
		fmt.Printf("  Profile: %s\n", run.Profile)
	}
	fmt.Printf("  Started: %s\n", run.StartTime.Local().Format("2006-01-02 15:04:05"))
	if !run.EndTime.IsZero() {
		fmt.Printf("  Duration: %s\n", run.EndTime.Sub(run.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("  Files: %d (%s)\n", run.Files, humanize.IBytes(uint64(run.Bytes)))
	if run.Skipped > 0 {
		fmt.Printf("  Skipped directories: %d\n", run.Skipped)
	}
	if run.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", run.ErrorMessage)
	}

	if len(mappings) > 0 {
		fmt.Println("  Directories:")
		for _, m := range mappings {
			fmt.Printf("  - %s -> %s\n", m.ArchiveName, m.SourcePath)
		}
	}
	return nil
}
