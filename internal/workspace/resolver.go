package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/gitrepo"
	"github.com/fyrsmithlabs/thoughtsd/internal/identity"
	"github.com/fyrsmithlabs/thoughtsd/internal/mapping"
	"github.com/fyrsmithlabs/thoughtsd/internal/mount"
	"github.com/fyrsmithlabs/thoughtsd/internal/repoconfig"
)

// ErrNoThoughtsMount indicates the repository config has no thoughts
// mount, so there is nothing to resolve a workspace root against.
var ErrNoThoughtsMount = errors.New("no thoughts_mount configured")

// cloner is the clone/fetch surface the resolver needs; satisfied by
// *gitrepo.Client.
type cloner interface {
	Clone(ctx context.Context, url, path string) error
	Fetch(ctx context.Context, url, path string) error
}

// Resolver turns a repository's thoughts mount declaration into a local,
// mounted workspace root.
type Resolver struct {
	store   *mapping.Store
	cloner  cloner
	mounter mount.Manager

	clonesDir string
	mountOpts mount.Options

	logger *zap.Logger
}

// NewResolver wires a resolver over the mapping store, clone driver, and
// mount manager.
func NewResolver(store *mapping.Store, cl cloner, mounter mount.Manager, clonesDir string, opts mount.Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		cloner:    cl,
		mounter:   mounter,
		clonesDir: clonesDir,
		mountOpts: opts,
		logger:    logger,
	}
}

// ResolveThoughtsRoot materializes the configured thoughts mount under
// workspaceRoot and returns the mounted directory.
//
// The chain is: require a thoughts_mount in the config, resolve its
// remote through the mapping store (cloning into the default clone path
// and recording an auto-managed mapping when unknown), sync when the
// mount asks for it, then union-mount the clone (or its subpath) at
// <workspaceRoot>/<thoughts dir>.
func (r *Resolver) ResolveThoughtsRoot(ctx context.Context, workspaceRoot string, doc repoconfig.Document) (string, error) {
	if doc.ThoughtsMount == nil {
		return "", fmt.Errorf("%w: add a thoughts_mount to %s and re-run 'thoughtsd sync'",
			ErrNoThoughtsMount, repoconfig.DefaultFileName)
	}
	tm := doc.ThoughtsMount

	base, _, urlSubpath, err := identity.ParseURLAndSubpath(tm.Remote)
	if err != nil {
		return "", fmt.Errorf("thoughts_mount remote %s: %w", tm.Remote, err)
	}
	subpath := tm.Subpath
	if subpath == "" {
		subpath = urlSubpath
	}

	clonePath, err := r.localClone(ctx, base)
	if err != nil {
		return "", err
	}

	if tm.Sync == repoconfig.SyncAuto {
		if err := r.cloner.Fetch(ctx, base, clonePath); err != nil {
			r.logger.Warn("sync failed, using existing clone",
				zap.String("url", base), zap.Error(err))
		} else if err := r.store.UpdateSyncTime(base, time.Now().UTC()); err != nil {
			r.logger.Warn("could not record sync time", zap.String("url", base), zap.Error(err))
		}
	}

	source := clonePath
	if subpath != "" {
		source = filepath.Join(clonePath, filepath.FromSlash(subpath))
	}
	target := filepath.Join(workspaceRoot, doc.MountDirs.Thoughts)
	if err := r.mounter.Mount(ctx, []string{source}, target, r.mountOpts); err != nil {
		return "", fmt.Errorf("mounting thoughts at %s: %w", target, err)
	}
	return target, nil
}

// localClone returns the on-disk path for url, cloning and recording an
// auto-managed mapping when the repository is unknown or missing.
func (r *Resolver) localClone(ctx context.Context, url string) (string, error) {
	res, err := r.store.ResolveURL(url)
	if err != nil {
		return "", err
	}
	if res != nil {
		path := res.Location.Path
		if !gitrepo.IsCloned(path) {
			if err := r.cloner.Clone(ctx, url, path); err != nil {
				return "", fmt.Errorf("restoring clone at %s: %w", path, err)
			}
		}
		return path, nil
	}

	path, err := mapping.DefaultClonePath(r.clonesDir, url)
	if err != nil {
		return "", err
	}
	if !gitrepo.IsCloned(path) {
		if err := r.cloner.Clone(ctx, url, path); err != nil {
			return "", err
		}
	}
	if err := r.store.AddMapping(url, path, true); err != nil {
		return "", fmt.Errorf("recording mapping for %s: %w", url, err)
	}
	r.logger.Info("registered auto-managed clone",
		zap.String("url", url), zap.String("path", path))
	return path, nil
}
