package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtsd/internal/gitrepo"
	"github.com/fyrsmithlabs/thoughtsd/internal/mapping"
	"github.com/fyrsmithlabs/thoughtsd/internal/mount"
	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
	"github.com/fyrsmithlabs/thoughtsd/internal/repoconfig"
	"github.com/fyrsmithlabs/thoughtsd/internal/workspace"
	"github.com/fyrsmithlabs/thoughtsd/pkg/git"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Resolve, mount, and prepare the thoughts workspace",
	Long: `Resolve the repository's thoughts mount to a local clone, mount it,
and prepare the active work directory for the current branch.

Examples:
  thoughtsd sync`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
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
	if err != nil {
		return err
	}

	doc, err := repoconfig.Load(filepath.Join(cwd, repoconfig.DefaultFileName))
	if err != nil {
		return err
	}

	info := platform.NewDetector().Detect(cmd.Context())
	mgr, err := mount.NewManager(info, logger)
	if err != nil {
		return err
	}

	store := mapping.NewStore(cfg.Paths.MappingFile, logger)
	resolver := workspace.NewResolver(
		store,
		gitrepo.NewClient(logger),
		mgr,
		cfg.Paths.ClonesDir,
		mount.Options{
			AllowOther:   cfg.Mount.AllowOther,
			Retries:      cfg.Mount.Retries,
			Timeout:      cfg.Mount.Timeout.Duration(),
			ExtraOptions: cfg.Mount.Extra,
		},
		logger,
	)

	root, err := resolver.ResolveThoughtsRoot(cmd.Context(), cwd, doc)
	if err != nil {
		return err
	}

	workDir, err := workspace.EnsureActiveWork(root, doc.ThoughtsMount.Remote, branch, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "workspace ready: %s\n", workDir)
	return nil
}
