// Package git provides Git repository utilities for thoughtsd.
//
// This package includes functions for detecting the current Git branch,
// identifying protected branches, and handling Git worktrees. Workspace
// directories are named after the current branch, so branch detection has
// to work from any checkout layout, including linked worktrees.
package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHeadNotFound indicates the .git/HEAD file is missing
	ErrHeadNotFound = errors.New("HEAD file not found")
)

// DetectBranch detects the current Git branch from a project directory.
//
// It reads the .git/HEAD file to determine the branch name. Linked
// worktrees, where .git is a file containing a "gitdir:" pointer, are
// followed to the real git directory. If HEAD is detached (not pointing
// to a branch), it returns "detached".
//
// Returns:
//   - Branch name (e.g., "main", "feature/mount-retries")
//   - "detached" if HEAD is detached
//   - Error if not a Git repo or HEAD file is unreadable
func DetectBranch(projectPath string) (string, error) {
	gitDir, err := resolveGitDir(projectPath)
	if err != nil {
		return "", err
	}

	headFile := filepath.Join(gitDir, "HEAD")
	content, err := os.ReadFile(headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrHeadNotFound, headFile)
		}
		return "", fmt.Errorf("reading HEAD file: %w", err)
	}

	head := strings.TrimSpace(string(content))

	// Empty HEAD file indicates detached state
	if head == "" {
		return "detached", nil
	}

	// HEAD points to a branch as "ref: refs/heads/<branch>"
	if strings.HasPrefix(head, "ref: refs/heads/") {
		return strings.TrimPrefix(head, "ref: refs/heads/"), nil
	}

	// A bare commit hash means detached HEAD
	return "detached", nil
}

// resolveGitDir finds the real git directory for projectPath. In a normal
// checkout .git is a directory; in a linked worktree it is a file with a
// single "gitdir: <path>" line, relative paths resolved against the
// project directory.
func resolveGitDir(projectPath string) (string, error) {
	gitPath := filepath.Join(projectPath, ".git")
	info, err := os.Stat(gitPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", gitPath, err)
	}
	if info.IsDir() {
		return gitPath, nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", gitPath, err)
	}
	line := strings.TrimSpace(string(content))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%w: %s has no gitdir pointer", ErrNotGitRepo, gitPath)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(projectPath, target)
	}
	return filepath.Clean(target), nil
}

// IsProtectedBranch checks if the given branch name is a protected branch.
//
// Protected branches are exactly "main" or "master"; the comparison is
// case-sensitive and never a prefix or substring test, so branches like
// "main-backup" or "Main" are not protected.
func IsProtectedBranch(branch string) bool {
	return branch == "main" || branch == "master"
}
