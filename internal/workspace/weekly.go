package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var (
	// weeklyDirPattern matches the current weekly directory format,
	// e.g. 2025-W07. Weeks run 01 through 53.
	weeklyDirPattern = regexp.MustCompile(`^\d{4}-W(0[1-9]|[1-4][0-9]|5[0-3])$`)

	// legacyWeeklyDirPattern matches the old format, e.g. 2024_week_52.
	legacyWeeklyDirPattern = regexp.MustCompile(`^\d{4}_week_(0[1-9]|[1-4][0-9]|5[0-3])$`)
)

// IsWeeklyDirName reports whether name is a weekly work directory in
// either the current or the legacy format. The match is anchored: a
// branch name that merely contains a week string does not qualify.
func IsWeeklyDirName(name string) bool {
	return weeklyDirPattern.MatchString(name) || legacyWeeklyDirPattern.MatchString(name)
}

// ArchiveWeeklyDirs moves every top-level weekly directory under root
// into root/completed. Returns the number of directories moved.
//
// Directories named active or completed are never candidates. A name
// collision inside completed/ is resolved by appending -migrated, then
// -migrated-2, and so on, taking the first free name.
func ArchiveWeeklyDirs(root string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("reading workspace %s: %w", root, err)
	}

	completed := filepath.Join(root, "completed")
	moved := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == "active" || name == "completed" {
			continue
		}
		if !IsWeeklyDirName(name) {
			continue
		}

		if err := os.MkdirAll(completed, 0o755); err != nil {
			return moved, fmt.Errorf("creating %s: %w", completed, err)
		}
		dest, err := freeName(completed, name)
		if err != nil {
			return moved, err
		}
		if err := os.Rename(filepath.Join(root, name), dest); err != nil {
			return moved, fmt.Errorf("archiving %s: %w", name, err)
		}
		logger.Info("archived weekly directory",
			zap.String("name", name), zap.String("dest", dest))
		moved++
	}
	return moved, nil
}

// freeName returns dir/name if unused, otherwise the first unused of
// dir/name-migrated, dir/name-migrated-2, ...
func freeName(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for n := 1; ; n++ {
		suffixed := name + "-migrated"
		if n > 1 {
			suffixed = fmt.Sprintf("%s-migrated-%d", name, n)
		}
		candidate = filepath.Join(dir, suffixed)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}
