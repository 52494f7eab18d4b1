package repoconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/thoughtsd/internal/identity"
)

var (
	// ErrUnsupportedVersion indicates a document version this build
	// does not understand.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrDuplicateMountPath indicates two context mounts claim the same
	// mount path.
	ErrDuplicateMountPath = errors.New("duplicate mount path")

	// ErrReservedDirName indicates a mount path collides with a
	// directory the workspace lifecycle manages itself.
	ErrReservedDirName = errors.New("reserved directory name")

	// ErrInvalidRemote indicates a remote URL could not be parsed into
	// a repository identity.
	ErrInvalidRemote = errors.New("invalid remote URL")

	// ErrInvalidMountPath indicates a mount path that cannot sit inside
	// the workspace (empty, absolute, or escaping the root).
	ErrInvalidMountPath = errors.New("invalid mount path")
)

// reservedDirs are managed by the workspace lifecycle and may never be
// mount targets.
var reservedDirs = []string{"active", "completed"}

// Validate checks a v2 document for the failure modes a user can write
// into the file by hand. The first problem found is returned with the
// offending path or URL named.
func Validate(doc Document) error {
	if doc.Version != VersionV2 {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, doc.Version)
	}

	if doc.ThoughtsMount != nil {
		if err := checkRemote(doc.ThoughtsMount.Remote); err != nil {
			return fmt.Errorf("thoughts_mount: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(doc.ContextMounts))
	for _, cm := range doc.ContextMounts {
		if err := checkRemote(cm.Remote); err != nil {
			return fmt.Errorf("context mount %s: %w", cm.MountPath, err)
		}
		if err := checkMountPath(cm.MountPath); err != nil {
			return err
		}
		if _, dup := seen[cm.MountPath]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateMountPath, cm.MountPath)
		}
		seen[cm.MountPath] = struct{}{}
	}

	for _, ref := range doc.References {
		if err := checkRemote(ref.Remote); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}
	return nil
}

func checkRemote(remote string) error {
	if remote == "" {
		return fmt.Errorf("%w: remote is empty", ErrInvalidRemote)
	}
	if _, err := identity.Parse(remote); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRemote, remote, err)
	}
	return nil
}

func checkMountPath(mountPath string) error {
	if mountPath == "" {
		return fmt.Errorf("%w: mount path is empty", ErrInvalidMountPath)
	}
	if strings.HasPrefix(mountPath, "/") || strings.Contains(mountPath, "..") {
		return fmt.Errorf("%w: %s must be a relative path inside the workspace", ErrInvalidMountPath, mountPath)
	}
	top, _, _ := strings.Cut(mountPath, "/")
	for _, reserved := range reservedDirs {
		if top == reserved {
			return fmt.Errorf("%w: %s", ErrReservedDirName, mountPath)
		}
	}
	return nil
}
