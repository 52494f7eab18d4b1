package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/thoughtsd/internal/identity"
	"github.com/fyrsmithlabs/thoughtsd/internal/sanitize"
)

// DefaultClonePath derives the managed clone directory for a remote URL:
// <clonesRoot>/<host>/<org-segment>.../<repo>.
//
// The path is built from the canonical key, so every URL form of one
// repository lands in the same clone directory. Each segment passes through
// the filesystem sanitizer. An empty clonesRoot defaults to
// ~/.thoughts/clones.
func DefaultClonePath(clonesRoot, url string) (string, error) {
	if clonesRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		clonesRoot = filepath.Join(home, ".thoughts", "clones")
	}

	id, err := identity.Parse(url)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", url, err)
	}
	key := id.CanonicalKey()

	segments := []string{clonesRoot, sanitize.PathSegment(key.Host)}
	if key.OrgPath != "" {
		for _, seg := range strings.Split(key.OrgPath, "/") {
			segments = append(segments, sanitize.PathSegment(seg))
		}
	}
	segments = append(segments, sanitize.PathSegment(key.Repo))
	return filepath.Join(segments...), nil
}
