package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var pathProfile string

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage backup profiles",
		Long: `Manage backup profiles. A profile is a named, ordered list of directories
that are backed up together. The selected profile is used when --profile is
not given.`,
		Example: `  dirbackup profile list
  dirbackup profile add Work
  dirbackup profile use Work
  dirbackup profile remove Old`,
		RunE: profileListRun,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List profiles",
			Args:    cobra.NoArgs,
			RunE:    profileListRun,
		},
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create an empty profile",
			Args:  cobra.ExactArgs(1),
			RunE:  profileAddRun,
		},
		&cobra.Command{
			Use:     "remove NAME",
			Aliases: []string{"rm"},
			Short:   "Delete a profile",
			Long: `Delete a profile. The last remaining profile cannot be deleted. If the
selected profile is deleted, the first remaining profile by name is selected.`,
			Args: cobra.ExactArgs(1),
			RunE: profileRemoveRun,
		},
		&cobra.Command{
			Use:   "use NAME",
			Short: "Select the profile used by default",
			Args:  cobra.ExactArgs(1),
			RunE:  profileUseRun,
		},
	)

	return cmd
}

func profileListRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}

	current := globalProfiles.Current()

	fmt.Println("Profiles")
	fmt.Println("========")
	fmt.Println("")
	fmt.Printf("  %-24s %s\n", "Name", "Directories")
	fmt.Println(strings.Repeat("-", 40))
	for _, name := range globalProfiles.Profiles() {
		paths, err := globalProfiles.Paths(name)
		if err != nil {
			return err
		}
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Printf("%s %-24s %d\n", marker, name, len(paths))
	}
	fmt.Println("")

	return nil
}

func profileAddRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}
	if err := globalProfiles.AddProfile(args[0]); err != nil {
		return err
	}
	logger.Info("profile added", "profile", args[0])
	fmt.Printf("Profile %s created.\n", args[0])
	return nil
}

func profileRemoveRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}
	if err := globalProfiles.RemoveProfile(args[0]); err != nil {
		return err
	}
	logger.Info("profile removed", "profile", args[0])
	fmt.Printf("Profile %s removed. Current profile: %s\n", args[0], globalProfiles.Current())
	return nil
}

func profileUseRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}
	if err := globalProfiles.SetCurrent(args[0]); err != nil {
		return err
	}
	fmt.Printf("Current profile: %s\n", args[0])
	return nil
}

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Manage the directories of a profile",
		Long: `Manage the ordered directory list of a profile. The order decides the
archive name each directory is stored under, so removing a directory renames
the ones after it in later backups.`,
		Example: `  dirbackup path list
  dirbackup path add --profile Work /data/projects
  dirbackup path remove /data/projects`,
		RunE: pathListRun,
	}

	cmd.PersistentFlags().StringVar(&pathProfile, "profile", "", "profile to edit (default: current profile)")

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List the directories of a profile",
			Args:    cobra.NoArgs,
			RunE:    pathListRun,
		},
		&cobra.Command{
			Use:   "add DIR...",
			Short: "Append directories to a profile",
			Args:  cobra.MinimumNArgs(1),
			RunE:  pathAddRun,
		},
		&cobra.Command{
			Use:     "remove DIR...",
			Aliases: []string{"rm"},
			Short:   "Remove directories from a profile",
			Args:    cobra.MinimumNArgs(1),
			RunE:    pathRemoveRun,
		},
	)

	return cmd
}

func selectedProfile() string {
	if pathProfile != "" {
		return pathProfile
	}
	return globalProfiles.Current()
}

func pathListRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}

	name := selectedProfile()
	paths, err := globalProfiles.Paths(name)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		fmt.Printf("Profile %s has no directories.\n", name)
		return nil
	}

	fmt.Printf("Profile %s\n", name)
	fmt.Println(strings.Repeat("-", 40))
	for i, p := range paths {
		state := ""
		if _, err := os.Stat(p); err != nil {
			state = " (missing)"
		}
		fmt.Printf("[%d] %s%s\n", i, p, state)
	}

	return nil
}

func pathAddRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}

	name := selectedProfile()
	for _, arg := range args {
		dir, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", arg, err)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Warn("path is not an existing directory, it will be skipped until it exists", "path", dir)
		}
		if err := globalProfiles.AddPath(name, dir); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", dir, name)
	}
	return nil
}

func pathRemoveRun(cmd *cobra.Command, args []string) error {
	if globalProfiles == nil {
		return fmt.Errorf("profile store not initialized")
	}

	name := selectedProfile()
	for _, arg := range args {
		dir := arg
		if abs, err := filepath.Abs(arg); err == nil {
			dir = abs
		}
		if err := globalProfiles.RemovePath(name, dir); err != nil {
			return err
		}
		fmt.Printf("Removed %s from %s\n", dir, name)
	}
	return nil
}
