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

const (
	mergerfsFSType = "fuse.mergerfs"

	procMountsPath    = "/proc/self/mounts"
	procMountInfoPath = "/proc/self/mountinfo"

	// retryDelay is the fixed pause between failed mount attempts.
	retryDelay = 1 * time.Second

	// unmountTimeout bounds each unmount invocation; a FUSE filesystem
	// with a hung daemon can block umount indefinitely.
	unmountTimeout = 30 * time.Second
)

// defaultMountOptions are always passed to mergerfs. category.create=mfs
// sends new files to the branch with the most free space; cache.files=off
// keeps writes immediately visible across the union.
var defaultMountOptions = []string{"cache.files=off", "category.create=mfs"}

// commandRunner is the subset of execx.Runner the managers use, split out
// so tests can record invocations instead of executing them.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	LookPath(name string) string
}

// mergerfsManager drives mergerfs and fusermount on Linux.
type mergerfsManager struct {
	mergerfsBin   string
	fusermountBin string

	runner        commandRunner
	unmountRunner commandRunner

	mountsPath    string
	mountInfoPath string
	readFile      func(string) ([]byte, error)
	sleep         func(time.Duration)

	logger *zap.Logger
}

func newMergerfsManager(info *platform.Info, logger *zap.Logger) (*mergerfsManager, error) {
	li := info.Linux
	if !info.CanMount {
		return nil, fmt.Errorf("%w: missing %s",
			ErrUnsupportedPlatform, strings.Join(info.MissingTools, ", "))
	}
	return &mergerfsManager{
		mergerfsBin:   li.MergerfsPath,
		fusermountBin: li.FusermountPath,
		runner:        &execx.Runner{},
		unmountRunner: &execx.Runner{Timeout: unmountTimeout},
		mountsPath:    procMountsPath,
		mountInfoPath: procMountInfoPath,
		readFile:      os.ReadFile,
		sleep:         time.Sleep,
		logger:        logger,
	}, nil
}

// Mount merges sources into target with mergerfs.
//
// Every source is verified before the tool runs, so a missing source fails
// fast with its path. After a successful invocation the live mount table is
// re-read to confirm the mount took effect: mergerfs can exit 0 without
// mounting in some FUSE edge cases.
func (m *mergerfsManager) Mount(ctx context.Context, sources []string, target string, opts Options) error {
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
		m.logger.Debug("target already mounted", zap.String("target", target))
		return nil
	}

	args := m.mountArgs(sources, target, opts)
	var lastErr error
	for attempt := uint(0); attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			m.sleep(retryDelay)
			m.logger.Warn("retrying mount",
				zap.String("target", target),
				zap.Uint("attempt", attempt),
				zap.Error(lastErr))
		}

		_, err := m.run(ctx, opts.Timeout, m.mergerfsBin, args...)
		if err != nil {
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
		lastErr = fmt.Errorf("%w: mergerfs exited successfully but %s is not in the mount table",
			ErrOperationFailed, target)
	}
	return fmt.Errorf("%w: mounting %s: %v", ErrOperationFailed, target, lastErr)
}

// Unmount tears down the mount at target, preferring fusermount and
// falling back to umount. The mount point directory is removed afterwards
// if and only if it is empty.
func (m *mergerfsManager) Unmount(ctx context.Context, target string, force bool) error {
	mounted, err := m.IsMounted(target)
	if err != nil {
		return err
	}
	if !mounted {
		return nil
	}

	fuserArgs := []string{"-u"}
	if force {
		fuserArgs = append(fuserArgs, "-z")
	}
	fuserArgs = append(fuserArgs, target)

	if _, err := m.unmountRunner.Run(ctx, m.fusermountBin, fuserArgs...); err != nil {
		var timeoutErr *execx.TimeoutError
		if errors.As(err, &timeoutErr) {
			return err
		}
		m.logger.Warn("fusermount failed, falling back to umount",
			zap.String("target", target), zap.Error(err))

		umountArgs := []string{}
		if force {
			umountArgs = append(umountArgs, "-l")
		}
		umountArgs = append(umountArgs, target)
		if _, err := m.unmountRunner.Run(ctx, "umount", umountArgs...); err != nil {
			return fmt.Errorf("%w: unmounting %s: %v", ErrOperationFailed, target, err)
		}
	}

	m.removeEmptyMountPoint(target)
	return nil
}

// removeEmptyMountPoint removes target only when empty; non-empty
// directories are never deleted.
func (m *mergerfsManager) removeEmptyMountPoint(target string) {
	entries, err := os.ReadDir(target)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(target); err != nil {
		m.logger.Debug("could not remove mount point", zap.String("target", target), zap.Error(err))
	}
}

func (m *mergerfsManager) IsMounted(target string) (bool, error) {
	entries, err := m.tableEntries()
	if err != nil {
		return false, err
	}
	want := canonicalPath(target)
	for _, e := range entries {
		if e.FSType == mergerfsFSType && canonicalPath(e.Target) == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *mergerfsManager) ListMounts() ([]Info, error) {
	entries, err := m.tableEntries()
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, e := range entries {
		if e.FSType != mergerfsFSType {
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

// MountInfo returns detail for target, adding mountinfo IDs and device
// numbers when the secondary table is readable.
func (m *mergerfsManager) MountInfo(target string) (*Info, error) {
	mounts, err := m.ListMounts()
	if err != nil {
		return nil, err
	}
	want := canonicalPath(target)
	var found *Info
	for i := range mounts {
		if canonicalPath(mounts[i].Target) == want {
			found = &mounts[i]
			break
		}
	}
	if found == nil {
		return nil, nil
	}

	// The mountinfo table may be unavailable (e.g. restricted /proc);
	// fall back to the plain entry.
	if data, err := m.readFile(m.mountInfoPath); err == nil {
		for _, mi := range parseMountInfoTable(string(data)) {
			if canonicalPath(mi.Target) == want {
				found.Linux = &LinuxMetadata{
					MountID:  mi.MountID,
					ParentID: mi.ParentID,
					Device:   mi.Device,
				}
				break
			}
		}
	}
	return found, nil
}

// CheckHealth verifies mergerfs is present and runnable, the FUSE device
// node exists, and the binary reports a version. Each failure is a
// distinct named error.
func (m *mergerfsManager) CheckHealth(ctx context.Context) error {
	if m.runner.LookPath(m.mergerfsBin) == "" {
		if _, err := os.Stat(m.mergerfsBin); err != nil {
			return fmt.Errorf("%w: mergerfs at %s", platform.ErrToolNotFound, m.mergerfsBin)
		}
	}
	if _, err := os.Stat("/dev/fuse"); err != nil {
		return fmt.Errorf("%w: /dev/fuse device node missing", ErrOperationFailed)
	}
	out, err := m.run(ctx, 0, m.mergerfsBin, "--version")
	if err != nil {
		return fmt.Errorf("%w: mergerfs --version failed: %v", ErrOperationFailed, err)
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("%w: mergerfs reported no version", ErrOperationFailed)
	}
	return nil
}

// MountCommand renders the equivalent shell invocation for diagnostics.
func (m *mergerfsManager) MountCommand(sources []string, target string, opts Options) string {
	args := m.mountArgs(sources, target, opts)
	return m.mergerfsBin + " " + strings.Join(args, " ")
}

// mountArgs builds <tool> -o <comma-joined-options> <colon-joined-sources> <target>.
func (m *mergerfsManager) mountArgs(sources []string, target string, opts Options) []string {
	options := append([]string{}, defaultMountOptions...)
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

func (m *mergerfsManager) run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.runner.Run(ctx, name, args...)
}

func (m *mergerfsManager) tableEntries() ([]tableEntry, error) {
	data, err := m.readFile(m.mountsPath)
	if err != nil {
		return nil, fmt.Errorf("reading mount table %s: %w", m.mountsPath, err)
	}
	return parseMountsTable(string(data)), nil
}
