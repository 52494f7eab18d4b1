// Package mount manages merged union filesystem views: several source
// directories presented as one target directory.
//
// The Manager interface is polymorphic over platform implementations
// (mergerfs on Linux, unionfs on macOS) selected at runtime from platform
// detection. Mount and unmount are idempotent: mounting an already-mounted
// target and unmounting an unmounted one are successful no-ops, because
// callers invoke them on every workspace access.
//
// Operations on the same target are expected to be serialized by the
// calling workspace lifecycle; the manager takes no internal per-target
// lock.
package mount

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
)

var (
	// ErrSourceNotFound indicates a mount source directory is missing.
	// Sources are verified before any external tool runs.
	ErrSourceNotFound = errors.New("mount source not found")

	// ErrOperationFailed indicates the mount tool failed, or exited
	// successfully without the mount appearing in the mount table.
	ErrOperationFailed = errors.New("mount operation failed")

	// ErrNoSources indicates Mount was called with an empty source list.
	ErrNoSources = errors.New("no mount sources given")

	// ErrUnsupportedPlatform indicates no mount implementation exists
	// for the detected platform.
	ErrUnsupportedPlatform = errors.New("platform does not support mounting")
)

// Options control a mount operation.
type Options struct {
	ReadOnly     bool
	AllowOther   bool
	ExtraOptions []string

	// Retries is how many times a failed mount invocation is retried
	// with a fixed delay before the failure is surfaced.
	Retries uint

	// Timeout bounds each tool invocation. Zero uses the default.
	Timeout time.Duration
}

// Status of a target path in the live mount table.
type Status int

const (
	StatusNotMounted Status = iota
	StatusMounted
)

func (s Status) String() string {
	if s == StatusMounted {
		return "mounted"
	}
	return "not mounted"
}

// LinuxMetadata is mountinfo detail available on Linux only.
type LinuxMetadata struct {
	MountID  int
	ParentID int
	// Device is the major:minor device number.
	Device string
}

// Info describes one active mount.
type Info struct {
	Target  string
	Sources []string
	Status  Status
	FSType  string
	Options []string

	MountedAt *time.Time
	PID       *int

	// Linux is nil on other platforms.
	Linux *LinuxMetadata
}

// Manager mounts, inspects, and tears down merged filesystem views.
type Manager interface {
	// Mount merges sources into target. No-op if target is mounted.
	Mount(ctx context.Context, sources []string, target string, opts Options) error

	// Unmount tears down the mount at target. No-op if not mounted.
	Unmount(ctx context.Context, target string, force bool) error

	// IsMounted reports whether target is an active mount.
	IsMounted(target string) (bool, error)

	// ListMounts lists the active union mounts this manager owns.
	ListMounts() ([]Info, error)

	// MountInfo returns detail for target, or nil if not mounted.
	MountInfo(target string) (*Info, error)

	// CheckHealth verifies the mount tooling prerequisites, returning
	// a distinct named error per missing prerequisite.
	CheckHealth(ctx context.Context) error

	// MountCommand returns the equivalent shell invocation, for
	// diagnostics.
	MountCommand(sources []string, target string, opts Options) string
}

// NewManager selects the platform implementation for the detected host.
func NewManager(info *platform.Info, logger *zap.Logger) (Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case info.Linux != nil:
		return newMergerfsManager(info, logger)
	case info.MacOS != nil:
		return newUnionfsManager(info, logger)
	default:
		return nil, fmt.Errorf("%w: %s (missing: %v)",
			ErrUnsupportedPlatform, info.OS, info.MissingTools)
	}
}

// canonicalPath resolves symlinks before path comparison: mount points are
// frequently reached via a symlinked parent, and the mount table records
// the resolved path.
func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}
