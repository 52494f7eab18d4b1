// Package identity canonicalizes git remote URLs into a stable repository
// identity.
//
// The same repository is commonly referred to by several URL forms: SCP-style
// SSH (git@github.com:org/repo.git), ssh:// URLs, and https:// URLs, with or
// without a trailing .git suffix and with arbitrary casing. This package
// parses any of these forms into an Identity and derives a fully lower-cased
// canonical Key so that all forms of one repository compare equal.
//
// Parse errors are expected during bulk scans over stored URLs; callers
// should log and skip rather than abort the batch.
package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedScheme indicates the URL uses a scheme other than
	// SSH (scp-style or ssh://) or HTTP(S).
	ErrUnsupportedScheme = errors.New("unsupported remote URL scheme")

	// ErrMissingHost indicates the URL has no host component.
	ErrMissingHost = errors.New("remote URL has no host")

	// ErrMissingPath indicates the URL has no repository path component.
	ErrMissingPath = errors.New("remote URL has no repository path")

	// ErrInvalidPath indicates the repository path contains invalid
	// segments ("." or "..") or exceeds the nesting limit.
	ErrInvalidPath = errors.New("invalid repository path")
)

// maxPathSegments bounds repository path depth. GitLab supports subgroup
// nesting up to 20 levels, plus the repository name itself.
const maxPathSegments = 21

// Identity is the parsed form of a git remote URL.
//
// Host is always lower-cased (DNS names are case-insensitive); OrgPath and
// Repo preserve the casing of the input. Use CanonicalKey for equality.
type Identity struct {
	Host    string
	OrgPath string
	Repo    string
}

// Key is the fully lower-cased identity tuple used for equality and
// deduplication across URL forms.
type Key struct {
	Host    string
	OrgPath string
	Repo    string
}

// String renders the key as host/org_path/repo for logs and sorting.
func (k Key) String() string {
	if k.OrgPath == "" {
		return k.Host + "/" + k.Repo
	}
	return k.Host + "/" + k.OrgPath + "/" + k.Repo
}

// CanonicalKey returns the lower-cased key for this identity.
//
// Invariant: two URLs with equal canonical keys denote the same repository
// regardless of transport (SSH vs HTTPS) or .git suffix.
func (i Identity) CanonicalKey() Key {
	return Key{
		Host:    strings.ToLower(i.Host),
		OrgPath: strings.ToLower(i.OrgPath),
		Repo:    strings.ToLower(i.Repo),
	}
}

// Parse parses a git remote URL into an Identity.
//
// Supported forms:
//   - SCP-style SSH: git@github.com:org/repo.git, user@host:path
//   - ssh://[user@]host[:port]/path
//   - https:// and http://[user@]host[:port]/path
//
// GitLab subgroup paths (host/group/sub/.../repo) and Azure DevOps _git
// paths (host/org/project/_git/repo) are both handled.
func Parse(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: empty URL", ErrMissingHost)
	}

	var host, path string
	switch {
	case strings.HasPrefix(raw, "ssh://"),
		strings.HasPrefix(raw, "https://"),
		strings.HasPrefix(raw, "http://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
		}
		host = u.Hostname()
		path = u.Path
	case isSCPLike(raw):
		var err error
		host, path, err = splitSCP(raw)
		if err != nil {
			return Identity{}, err
		}
	case strings.Contains(raw, "://"):
		scheme := raw[:strings.Index(raw, "://")]
		return Identity{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	default:
		return Identity{}, fmt.Errorf("%w: %q is neither scp-style nor a URL", ErrUnsupportedScheme, raw)
	}

	if host == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrMissingHost, raw)
	}

	orgPath, repo, err := splitRepoPath(path)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: %w", raw, err)
	}

	return Identity{
		Host:    strings.ToLower(host),
		OrgPath: orgPath,
		Repo:    repo,
	}, nil
}

// isSCPLike reports whether raw looks like user@host:path. The user part is
// required; a bare host:path is indistinguishable from a local path with a
// drive-like prefix and is rejected upstream as an unsupported scheme.
func isSCPLike(raw string) bool {
	at := strings.Index(raw, "@")
	if at <= 0 {
		return false
	}
	rest := raw[at+1:]
	colon := strings.Index(rest, ":")
	return colon > 0
}

// splitSCP splits user@host:path into host and path.
func splitSCP(raw string) (host, path string, err error) {
	at := strings.Index(raw, "@")
	rest := raw[at+1:]
	colon := strings.Index(rest, ":")
	host = rest[:colon]
	path = rest[colon+1:]
	if host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMissingHost, raw)
	}
	return host, path, nil
}

// splitRepoPath splits a repository path into (org_path, repo).
//
// The path is stripped of trailing slashes and a trailing .git, then split
// into non-empty segments. A literal _git segment (Azure DevOps) forces the
// split: everything before it is the org path and the segment immediately
// after it is the repository.
func splitRepoPath(path string) (orgPath, repo string, err error) {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "", "", ErrMissingPath
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", "", fmt.Errorf("%w: segment %q", ErrInvalidPath, seg)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", "", ErrMissingPath
	}
	if len(segments) > maxPathSegments {
		return "", "", fmt.Errorf("%w: %d segments exceeds limit of %d", ErrInvalidPath, len(segments), maxPathSegments)
	}

	// Azure DevOps URLs carry a literal _git segment before the repo name.
	for i, seg := range segments {
		if seg == "_git" {
			if i+1 >= len(segments) {
				return "", "", fmt.Errorf("%w: nothing after _git segment", ErrMissingPath)
			}
			return strings.Join(segments[:i], "/"), segments[i+1], nil
		}
	}

	if len(segments) == 1 {
		return "", segments[0], nil
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}
