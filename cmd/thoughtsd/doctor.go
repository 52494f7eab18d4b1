package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtsd/internal/mapping"
	"github.com/fyrsmithlabs/thoughtsd/internal/mount"
	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tooling prerequisites and repair the mapping store",
	Long: `Verify the platform can mount union filesystems, report missing
tools, and consolidate the URL mapping store (collapse duplicate entries
for one repository, drop auto-managed entries whose clone is gone).

Examples:
  thoughtsd doctor`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := cmd.OutOrStdout()

	info := platform.NewDetector().Detect(cmd.Context())
	fmt.Fprintf(out, "platform: %s/%s\n", info.OS, info.Arch)
	if info.CanMount {
		fmt.Fprintln(out, "mounting: ok")
		mgr, err := mount.NewManager(info, logger)
		if err != nil {
			return err
		}
		if err := mgr.CheckHealth(cmd.Context()); err != nil {
			fmt.Fprintf(out, "mount health: %v\n", err)
		} else {
			fmt.Fprintln(out, "mount health: ok")
		}
	} else {
		fmt.Fprintf(out, "mounting: unavailable (missing %v)\n", info.MissingTools)
	}

	store := mapping.NewStore(cfg.Paths.MappingFile, logger)
	removed, err := store.Consolidate()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "mapping store: consolidated, %d entries removed\n", removed)
	return nil
}
