package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// MigrateLegacyLayout flattens the old active/ subtree.
//
// Legacy workspaces nested branch directories under root/active. The
// current layout keeps them directly in the root; a symlink active -> .
// remains so old paths keep resolving. The pass is idempotent: when
// active is already a symlink (or absent) nothing happens.
func MigrateLegacyLayout(root string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	activePath := filepath.Join(root, "active")

	info, err := os.Lstat(activePath)
	if os.IsNotExist(err) {
		return linkActive(activePath)
	}
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", activePath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is neither a directory nor a symlink", activePath)
	}

	entries, err := os.ReadDir(activePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", activePath, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dest, err := freeName(root, entry.Name())
		if err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(activePath, entry.Name()), dest); err != nil {
			return fmt.Errorf("moving %s out of active: %w", entry.Name(), err)
		}
		logger.Info("migrated legacy active entry",
			zap.String("name", entry.Name()), zap.String("dest", dest))
	}

	// Replace active with the compatibility symlink only once it is empty.
	remaining, err := os.ReadDir(activePath)
	if err != nil {
		return fmt.Errorf("re-reading %s: %w", activePath, err)
	}
	if len(remaining) > 0 {
		logger.Warn("active directory not empty after migration, leaving in place",
			zap.String("path", activePath), zap.Int("remaining", len(remaining)))
		return nil
	}
	if err := os.Remove(activePath); err != nil {
		return fmt.Errorf("removing emptied %s: %w", activePath, err)
	}
	return linkActive(activePath)
}

// linkActive creates the active -> . compatibility symlink.
func linkActive(activePath string) error {
	if err := os.Symlink(".", activePath); err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating compatibility symlink %s: %w", activePath, err)
	}
	return nil
}
