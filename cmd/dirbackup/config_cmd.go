package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect dirbackup configuration. Settings are read from --config or the
first of dirbackup.yaml, /etc/dirbackup/dirbackup.yaml and
~/.config/dirbackup/dirbackup.yaml.`,
		Example: `  dirbackup config show
  dirbackup config show --config /etc/dirbackup/dirbackup.yaml`,
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration in YAML format, with defaults filled in
and the resolved locations of the profile store and history database.`,
		Args: cobra.NoArgs,
		RunE: configShowRun,
	}
}

func configShowRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	log.Debug("showing configuration", "path", cfgPath)

	data, err := yaml.Marshal(globalCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	if cfgPath != "" {
		fmt.Printf("# loaded from %s\n", cfgPath)
	} else {
		fmt.Println("# no config file found, using defaults")
	}
	fmt.Println(string(data))

	if p, err := globalCfg.ProfilesPath(); err == nil {
		fmt.Printf("Profile store: %s\n", p)
	}
	if p, err := globalCfg.HistoryDBPath(); err == nil {
		fmt.Printf("History database: %s\n", p)
	}

	return nil
}
