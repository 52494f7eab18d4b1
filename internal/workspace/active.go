package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/pkg/git"
)

// ErrProtectedBranch rejects branch-scoped work on main or master.
var ErrProtectedBranch = errors.New("cannot create branch-scoped work on a protected branch")

// ManifestFileName is the per-directory manifest file.
const ManifestFileName = "manifest.json"

// activeWorkSubdirs are created inside every active work directory.
var activeWorkSubdirs = []string{"research", "plans", "artifacts"}

// Manifest records how an active work directory came to exist. It is
// written exactly once when the directory is first created.
type Manifest struct {
	SourceRepo   string    `json:"source_repo"`
	BranchOrWeek string    `json:"branch_or_week"`
	StartedAt    time.Time `json:"started_at"`
	WorkspaceID  string    `json:"workspace_id,omitempty"`
}

// CheckBranchAllowed returns the standardized lockout error when branch
// is exactly main or master. Branch-agnostic reads do not call this.
func CheckBranchAllowed(branch string) error {
	if git.IsProtectedBranch(branch) {
		return fmt.Errorf("%w: currently on %q; create a feature branch first: git checkout -b <branch-name>",
			ErrProtectedBranch, branch)
	}
	return nil
}

// EnsureActiveWork prepares the work directory for the given branch
// inside the workspace root and returns its path.
//
// Both maintenance passes (legacy layout migration, weekly archival) run
// first, then the branch lockout check. The directory is named after the
// literal branch name. research/, plans/, and artifacts/ are created if
// missing, and a manifest is written atomically on first creation only;
// re-invocation backfills missing pieces but never overwrites an
// existing manifest.
func EnsureActiveWork(root, sourceRepo, branch string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace root %s: %w", root, err)
	}
	if err := MigrateLegacyLayout(root, logger); err != nil {
		return "", err
	}
	if _, err := ArchiveWeeklyDirs(root, logger); err != nil {
		return "", err
	}
	if err := CheckBranchAllowed(branch); err != nil {
		return "", err
	}

	workDir := filepath.Join(root, branch)
	for _, sub := range activeWorkSubdirs {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	if err := writeManifestOnce(workDir, Manifest{
		SourceRepo:   sourceRepo,
		BranchOrWeek: branch,
		StartedAt:    time.Now().UTC(),
		WorkspaceID:  uuid.NewString(),
	}); err != nil {
		return "", err
	}
	return workDir, nil
}

// ReadManifest loads the manifest of an active work directory.
func ReadManifest(workDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(workDir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// writeManifestOnce writes the manifest atomically unless one already
// exists.
func writeManifestOnce(workDir string, m Manifest) error {
	path := filepath.Join(workDir, ManifestFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	tmp, err := os.CreateTemp(workDir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("placing manifest: %w", err)
	}
	return nil
}
