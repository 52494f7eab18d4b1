package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/execx"
	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
)

// unionfsManager drives unionfs and umount on macOS. The live mount table
// comes from the mount(8) command; macOS has no /proc.
type unionfsManager struct {
	unionfsBin string

	runner        commandRunner
	unmountRunner commandRunner
	sleep         func(time.Duration)

	logger *zap.Logger
}

func newUnionfsManager(info *platform.Info, logger *zap.Logger) (*unionfsManager, error) {
	if !info.CanMount {
		return nil, fmt.Errorf("%w: missing %s",
			ErrUnsupportedPlatform, strings.Join(info.MissingTools, ", "))
	}
	return &unionfsManager{
		unionfsBin:    info.MacOS.UnionfsPath,
		runner:        &execx.Runner{},
		unmountRunner: &execx.Runner{Timeout: unmountTimeout},
		sleep:         time.Sleep,
		logger:        logger,
	}, nil
}

func (m *unionfsManager) Mount(ctx context.Context, sources []string, target string, opts Options) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	for _, src := range sources {
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating mount point %s: %w", target, err)
	}

	mounted, err := m.IsMounted(target)
	if err != nil {
		return err
	}
	if mounted {
		return nil
	}

	args := m.mountArgs(sources, target, opts)
	var lastErr error
	for attempt := uint(0); attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			m.sleep(retryDelay)
		}
		if _, err := m.runner.Run(ctx, m.unionfsBin, args...); err != nil {
			lastErr = err
			continue
		}
		mounted, err := m.IsMounted(target)
		if err != nil {
			return err
		}
		if mounted {
			m.logger.Info("mounted",
				zap.Strings("sources", sources), zap.String("target", target))
			return nil
		}
		lastErr = fmt.Errorf("%w: unionfs exited successfully but %s is not mounted",
			ErrOperationFailed, target)
	}
	return fmt.Errorf("%w: mounting %s: %v", ErrOperationFailed, target, lastErr)
}

func (m *unionfsManager) Unmount(ctx context.Context, target string, force bool) error {
	mounted, err := m.IsMounted(target)
	if err != nil {
		return err
	}
	if !mounted {
		return nil
	}

	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, target)
	if _, err := m.unmountRunner.Run(ctx, "umount", args...); err != nil {
		var timeoutErr *execx.TimeoutError
		if errors.As(err, &timeoutErr) {
			return err
		}
		// diskutil handles busy NFS-backed FUSE-T mounts that plain
		// umount refuses.
		if _, err := m.unmountRunner.Run(ctx, "diskutil", "unmount", target); err != nil {
			return fmt.Errorf("%w: unmounting %s: %v", ErrOperationFailed, target, err)
		}
	}

	if entries, err := os.ReadDir(target); err == nil && len(entries) == 0 {
		_ = os.Remove(target)
	}
	return nil
}

func (m *unionfsManager) IsMounted(target string) (bool, error) {
	infos, err := m.ListMounts()
	if err != nil {
		return false, err
	}
	want := canonicalPath(target)
	for _, info := range infos {
		if canonicalPath(info.Target) == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *unionfsManager) ListMounts() ([]Info, error) {
	out, err := m.runner.Run(context.Background(), "mount")
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	var infos []Info
	for _, e := range parseDarwinMountOutput(out) {
		if !strings.Contains(e.FSType, "unionfs") && !strings.Contains(e.FSType, "fuse") &&
			!strings.Contains(e.FSType, "nfs") {
			continue
		}
		infos = append(infos, Info{
			Target:  e.Target,
			Sources: strings.Split(e.Source, ":"),
			Status:  StatusMounted,
			FSType:  e.FSType,
			Options: e.Options,
		})
	}
	return infos, nil
}

func (m *unionfsManager) MountInfo(target string) (*Info, error) {
	infos, err := m.ListMounts()
	if err != nil {
		return nil, err
	}
	want := canonicalPath(target)
	for i := range infos {
		if canonicalPath(infos[i].Target) == want {
			return &infos[i], nil
		}
	}
	return nil, nil
}

func (m *unionfsManager) CheckHealth(ctx context.Context) error {
	if _, err := os.Stat(m.unionfsBin); err != nil {
		return fmt.Errorf("%w: unionfs at %s", platform.ErrToolNotFound, m.unionfsBin)
	}
	if _, err := m.runner.Run(ctx, m.unionfsBin, "--version"); err != nil {
		return fmt.Errorf("%w: unionfs --version failed: %v", ErrOperationFailed, err)
	}
	return nil
}

func (m *unionfsManager) MountCommand(sources []string, target string, opts Options) string {
	return m.unionfsBin + " " + strings.Join(m.mountArgs(sources, target, opts), " ")
}

func (m *unionfsManager) mountArgs(sources []string, target string, opts Options) []string {
	options := []string{"cow"}
	if opts.ReadOnly {
		options = append(options, "ro")
	}
	if opts.AllowOther {
		options = append(options, "allow_other")
	}
	options = append(options, opts.ExtraOptions...)

	return []string{
		"-o", strings.Join(options, ","),
		strings.Join(sources, ":"),
		target,
	}
}

// parseDarwinMountOutput parses mount(8) lines of the form
// "source on /target (fstype, opt1, opt2)".
func parseDarwinMountOutput(out string) []tableEntry {
	var entries []tableEntry
	for _, line := range strings.Split(out, "\n") {
		source, rest, found := strings.Cut(line, " on ")
		if !found {
			continue
		}
		open := strings.LastIndex(rest, " (")
		if open < 0 || !strings.HasSuffix(rest, ")") {
			continue
		}
		target := rest[:open]
		parens := rest[open+2 : len(rest)-1]
		parts := strings.Split(parens, ", ")
		if len(parts) == 0 {
			continue
		}
		entries = append(entries, tableEntry{
			Source:  source,
			Target:  target,
			FSType:  parts[0],
			Options: parts[1:],
		})
	}
	return entries
}
