package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/dirbackup/internal/config"
	"github.com/BadgerOps/dirbackup/internal/elevate"
	"github.com/BadgerOps/dirbackup/internal/engine"
	"github.com/BadgerOps/dirbackup/internal/profile"
	"github.com/BadgerOps/dirbackup/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalProfiles *profile.Store
	globalHistory  *store.Store
	globalWorker   *engine.Worker
	globalElevator engine.Elevator

	// stdin feeds confirmation prompts
	stdin io.Reader = os.Stdin
)

// initializeComponents opens the profile store and run history and creates
// the worker and elevator
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	profilesPath, err := globalCfg.ProfilesPath()
	if err != nil {
		return fmt.Errorf("failed to locate profile store: %w", err)
	}
	globalProfiles = profile.Open(profilesPath, logger)

	if globalCfg.History.Enabled {
		if err := openHistory(); err != nil {
			// History is informational; backups and restores run without it.
			logger.Warn("run history unavailable", "error", err)
		}
	}

	globalWorker = engine.NewWorker(logger)
	globalElevator = elevate.New(logger, elevate.WithHelper(globalCfg.Restore.ElevationCommand))

	logger.Debug("components initialized", "profiles", profilesPath, "history", globalHistory != nil)
	return nil
}

func openHistory() error {
	dbPath, err := globalCfg.HistoryDBPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	st, err := store.New(dbPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	globalHistory = st
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
		"show":    true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the run history connection
func closeStore() {
	if globalHistory != nil {
		if err := globalHistory.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
		globalHistory = nil
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirbackup [ARCHIVE.zip]",
		Short: "Back up directory profiles to zip archives and restore them in place",
		Long: `dirbackup archives an ordered list of directories (a profile) into a single
zip file together with a restore map, and restores such an archive back to the
original absolute locations, on this machine or another one.

Started with a single .zip argument it begins restoring that archive after a
short delay. This is also how an elevated relaunch resumes a restore.`,
		Example: `  dirbackup profile add Work
  dirbackup path add --profile Work /data/projects
  dirbackup backup --profile Work --tag nightly
  dirbackup restore Work_nightly_2024-01-01.zip
  dirbackup Work_nightly_2024-01-01.zip`,
		Version:      "0.1.0",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         rootRun,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath)
			}

			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output")

	cmd.AddCommand(
		newBackupCmd(),
		newRestoreCmd(),
		newProfileCmd(),
		newPathCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return cmd
}

// rootRun handles the startup contract: a lone archive argument restores it.
func rootRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	archive, ok := elevate.ResumeTarget(args)
	if !ok {
		return fmt.Errorf("unknown command or not a backup archive: %s", strings.Join(args, " "))
	}

	delay := globalCfg.Restore.AutoStartDelay
	logger.Info("restore requested at startup", "archive", archive, "delay", delay)
	time.Sleep(delay)

	return restoreArchive(archive, restoreOptions{})
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
