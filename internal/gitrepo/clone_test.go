package gitrepo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newAuthRejectingServer serves 401 for every request, so clone attempts
// fail as authentication errors.
func newAuthRejectingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("WWW-Authenticate", `Basic realm="git"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// initSourceRepo creates a local repository with one commit to clone from.
func initSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)
	return dir
}

func TestCloneLocalRepo(t *testing.T) {
	src := initSourceRepo(t)
	dst := filepath.Join(t.TempDir(), "clone")

	c := NewClient(zap.NewNop())
	// Local file transport needs no credentials; the session still
	// supplies the default-helper candidate for non-SSH URLs.
	require.NoError(t, c.Clone(context.Background(), src, dst))
	assert.True(t, IsCloned(dst))
}

func TestFetchUpToDate(t *testing.T) {
	src := initSourceRepo(t)
	dst := filepath.Join(t.TempDir(), "clone")

	c := NewClient(zap.NewNop())
	require.NoError(t, c.Clone(context.Background(), src, dst))
	require.NoError(t, c.Fetch(context.Background(), src, dst))
}

func TestFetchMissingClone(t *testing.T) {
	c := NewClient(zap.NewNop())
	err := c.Fetch(context.Background(), "https://github.com/org/repo", t.TempDir())
	require.Error(t, err)
}

func TestIsClonedFalseForPlainDir(t *testing.T) {
	assert.False(t, IsCloned(t.TempDir()))
}

func TestCloneAuthFailureKeepsExistingDirectory(t *testing.T) {
	srv := newAuthRejectingServer(t)

	// A user-declared mapped directory that is not yet a clone.
	dst := filepath.Join(t.TempDir(), "mapped")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	precious := filepath.Join(dst, "precious.txt")
	require.NoError(t, os.WriteFile(precious, []byte("keep me\n"), 0o644))

	c := NewClient(zap.NewNop())
	err := c.Clone(context.Background(), srv.URL+"/org/repo.git", dst)
	require.Error(t, err)

	assert.FileExists(t, precious)
	assert.DirExists(t, dst)
	assert.False(t, IsCloned(dst))
}

func TestCloneAuthFailureRemovesCreatedDirectory(t *testing.T) {
	srv := newAuthRejectingServer(t)

	dst := filepath.Join(t.TempDir(), "fresh")
	c := NewClient(zap.NewNop())
	err := c.Clone(context.Background(), srv.URL+"/org/repo.git", dst)
	require.Error(t, err)

	// A directory the failed clone itself created does not linger.
	assert.NoDirExists(t, dst)
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(transport.ErrAuthenticationRequired))
	assert.True(t, isAuthError(transport.ErrAuthorizationFailed))
	assert.True(t, isAuthError(errors.New("ssh: handshake failed: no supported methods remain")))
	assert.False(t, isAuthError(errors.New("repository not found")))
}
