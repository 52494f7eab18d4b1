package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// writeTestKey generates an unencrypted ed25519 private key at path.
func writeTestKey(t *testing.T, path string) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
}

func newTestSession(t *testing.T, url string) *Session {
	t.Helper()
	s := NewSession(url)
	s.sshDir = t.TempDir()
	s.agentSocket = ""
	return s
}

func TestUsernameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"git@github.com:org/repo.git", "git"},
		{"deploy@github.com:org/repo.git", "deploy"},
		{"ssh://builder@host/org/repo", "builder"},
		{"https://github.com/org/repo", "git"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewSession(tt.url).Username(), tt.url)
	}
}

func TestAgentSkippedWithoutSocket(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	writeTestKey(t, filepath.Join(s.sshDir, "id_rsa"))

	cand, err := s.Next()
	require.NoError(t, err)
	assert.Contains(t, cand.Source, "id_rsa")
}

func TestDiskKeyFixedOrder(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	writeTestKey(t, filepath.Join(s.sshDir, "id_ecdsa"))
	writeTestKey(t, filepath.Join(s.sshDir, "id_ed25519"))

	first, err := s.Next()
	require.NoError(t, err)
	assert.Contains(t, first.Source, "id_ed25519")

	second, err := s.Next()
	require.NoError(t, err)
	assert.Contains(t, second.Source, "id_ecdsa")

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestExhaustedNamesKeysTried(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	writeTestKey(t, filepath.Join(s.sshDir, "id_ed25519"))

	_, err := s.Next()
	require.NoError(t, err)

	_, err = s.Next()
	require.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "id_ed25519")
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestExhaustedWithNoKeys(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	_, err := s.Next()
	require.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "none")
}

func TestEncryptedKeySkipped(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	// Garbage that is not a parseable private key.
	require.NoError(t, os.WriteFile(filepath.Join(s.sshDir, "id_rsa"), []byte("not a key"), 0o600))
	writeTestKey(t, filepath.Join(s.sshDir, "id_ecdsa"))

	cand, err := s.Next()
	require.NoError(t, err)
	assert.Contains(t, cand.Source, "id_ecdsa")
}

func TestHTTPSDefersToDefaultHelperOnce(t *testing.T) {
	s := newTestSession(t, "https://github.com/org/repo")

	cand, err := s.Next()
	require.NoError(t, err)
	assert.Nil(t, cand.Auth)
	assert.Equal(t, "default credential helper", cand.Source)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSafetyFuse(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	s.attemptsTotal = MaxAttempts

	_, err := s.Next()
	require.ErrorIs(t, err, ErrSafetyFuse)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestAttemptCountNeverExceedsFuse(t *testing.T) {
	s := newTestSession(t, "git@github.com:org/repo.git")
	writeTestKey(t, filepath.Join(s.sshDir, "id_ed25519"))
	writeTestKey(t, filepath.Join(s.sshDir, "id_rsa"))
	writeTestKey(t, filepath.Join(s.sshDir, "id_ecdsa"))

	for i := 0; i < MaxAttempts+5; i++ {
		if _, err := s.Next(); err != nil {
			break
		}
	}
	assert.LessOrEqual(t, s.Attempts(), MaxAttempts)
}
