// Package gitrepo clones and syncs repositories through go-git, driving
// credential negotiation per operation.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/credential"
)

// Client clones and fetches repositories. One Client may serve many
// operations; each operation gets its own credential session.
type Client struct {
	logger *zap.Logger

	// newSession is swappable for tests.
	newSession func(url string) *credential.Session
}

// NewClient returns a Client logging through logger.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:     logger,
		newSession: credential.NewSession,
	}
}

// Clone clones url into path, negotiating credentials candidate by
// candidate. Credential exhaustion and the safety fuse are terminal;
// non-auth failures abort immediately.
func (c *Client) Clone(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating clone parent directory: %w", err)
	}

	// A mapped path may already exist as a plain directory with user
	// content. Cleanup between attempts must only undo what the clone
	// itself created, never a pre-existing directory.
	preexisting := false
	if _, err := os.Stat(path); err == nil {
		preexisting = true
	}

	session := c.newSession(url)
	for {
		cand, err := session.Next()
		if err != nil {
			return fmt.Errorf("cloning %s: %w", url, err)
		}

		c.logger.Debug("attempting clone",
			zap.String("url", url),
			zap.String("credential", cand.Source),
			zap.Int("attempt", session.Attempts()))

		_, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
			URL:  url,
			Auth: cand.Auth,
		})
		if err == nil {
			c.logger.Info("cloned repository",
				zap.String("url", url), zap.String("path", path))
			return nil
		}
		if !isAuthError(err) {
			return fmt.Errorf("cloning %s into %s: %w", url, path, err)
		}
		// Auth rejected: advance to the next candidate. Partial clone
		// state would make the retry fail spuriously.
		if preexisting {
			_ = os.RemoveAll(filepath.Join(path, git.GitDirName))
		} else {
			_ = os.RemoveAll(path)
		}
	}
}

// Fetch updates an existing clone from its origin remote. A remote that is
// already up to date is success.
func (c *Client) Fetch(ctx context.Context, url, path string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	session := c.newSession(url)
	for {
		cand, err := session.Next()
		if err != nil {
			return fmt.Errorf("fetching %s: %w", url, err)
		}

		err = repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			Auth:       cand.Auth,
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		if !isAuthError(err) {
			return fmt.Errorf("fetching %s in %s: %w", url, path, err)
		}
	}
}

// IsCloned reports whether path holds a git repository.
func IsCloned(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// isAuthError reports whether err is an authentication/authorization
// failure worth retrying with a different credential.
func isAuthError(err error) bool {
	if errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	// SSH handshake failures surface as wrapped string errors from the
	// underlying ssh client.
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "handshake failed") ||
		strings.Contains(msg, "permission denied")
}
