package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtsd/internal/mapping"
	"github.com/fyrsmithlabs/thoughtsd/internal/mount"
	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
	"github.com/fyrsmithlabs/thoughtsd/internal/repoconfig"
	"github.com/fyrsmithlabs/thoughtsd/pkg/git"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace, mapping, and mount state",
	Long: `Show the current branch, the repository's thoughts configuration,
stored URL mappings, and active union mounts.

Examples:
  thoughtsd status`,
	RunE: runStatus,
}

// runStatus is branch-agnostic and never takes the protected-branch gate.
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	branch, err := git.DetectBranch(cwd)
	switch {
	case errors.Is(err, git.ErrNotGitRepo):
		fmt.Fprintln(cmd.OutOrStdout(), "branch: (not a git repository)")
	case err != nil:
		return err
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "branch: %s\n", branch)
	}

	doc, err := repoconfig.Load(filepath.Join(cwd, repoconfig.DefaultFileName))
	switch {
	case errors.Is(err, repoconfig.ErrNotFound):
		fmt.Fprintln(cmd.OutOrStdout(), "config: none")
	case err != nil:
		return err
	case doc.ThoughtsMount != nil:
		fmt.Fprintf(cmd.OutOrStdout(), "thoughts mount: %s\n", doc.ThoughtsMount.Remote)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "thoughts mount: not configured")
	}

	store := mapping.NewStore(cfg.Paths.MappingFile, logger)
	all, err := store.All()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mappings: %d\n", len(all))
	for url, loc := range all {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", url, loc.Path)
	}

	info := platform.NewDetector().Detect(cmd.Context())
	if !info.CanMount {
		fmt.Fprintf(cmd.OutOrStdout(), "mounts: unavailable (missing %v)\n", info.MissingTools)
		return nil
	}
	mgr, err := mount.NewManager(info, logger)
	if err != nil {
		return err
	}
	mounts, err := mgr.ListMounts()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mounts: %d\n", len(mounts))
	for _, m := range mounts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", m.Target, m.FSType)
	}
	return nil
}
