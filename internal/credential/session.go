// Package credential negotiates SSH/HTTPS credentials for clone and fetch
// operations.
//
// A Session is a single-use, single-goroutine value created per operation.
// The transport asks it for candidates in order: the SSH agent exactly once
// (skipped when no agent socket is configured), then disk keys under ~/.ssh
// in fixed order. A safety fuse caps the total number of credential
// attempts for one operation, bounding pathological loops caused by agents
// that keep offering keys the transport cannot use.
package credential

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
)

const (
	// MaxAttempts is the safety fuse: the hard cap on credential
	// attempts within one operation. The cap is total, not per key.
	MaxAttempts = 12

	// DefaultUsername is used when the remote URL carries no user.
	DefaultUsername = "git"
)

// diskKeyNames is the fixed candidate order for private keys under ~/.ssh.
var diskKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

var (
	// ErrSafetyFuse indicates the per-operation attempt cap was hit.
	ErrSafetyFuse = errors.New("credential safety fuse tripped")

	// ErrExhausted indicates the agent and every disk key were tried
	// without success.
	ErrExhausted = errors.New("all credential candidates exhausted")
)

// Candidate is one credential offer. A nil Auth means "use the transport's
// default behavior", which for HTTPS defers to the platform's configured
// credential helper.
type Candidate struct {
	// Auth is the go-git auth method to attempt.
	Auth transport.AuthMethod

	// Source describes the candidate for logs and error messages,
	// e.g. "ssh-agent" or "~/.ssh/id_ed25519".
	Source string
}

// Session tracks credential negotiation state for one clone or fetch.
//
// The counters are deliberately explicit fields rather than closure state:
// attemptedAgent guarantees the agent is offered at most once, nextDiskKey
// walks the fixed key order, attemptsTotal drives the safety fuse. A
// Session must not be shared across concurrent operations.
type Session struct {
	username string
	scheme   string

	attemptedAgent bool
	nextDiskKey    int
	attemptsTotal  int

	offeredDefault bool
	keysTried      []string

	// overridable for tests
	sshDir      string
	agentSocket string
}

// NewSession creates a session for the given remote URL. The username is
// taken from the URL, defaulting to "git". Agent use is gated on the
// SSH_AUTH_SOCK environment variable.
func NewSession(remoteURL string) *Session {
	s := &Session{
		username:    DefaultUsername,
		scheme:      "ssh",
		agentSocket: os.Getenv("SSH_AUTH_SOCK"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		s.sshDir = filepath.Join(home, ".ssh")
	}

	switch {
	case strings.HasPrefix(remoteURL, "http://"), strings.HasPrefix(remoteURL, "https://"):
		s.scheme = "https"
	case strings.HasPrefix(remoteURL, "ssh://"), isSCPLike(remoteURL):
		s.scheme = "ssh"
	default:
		// Local paths and file:// remotes need no negotiation.
		s.scheme = "local"
	}
	if u, err := url.Parse(remoteURL); err == nil && u.User != nil && u.User.Username() != "" {
		s.username = u.User.Username()
	} else if at := strings.Index(remoteURL, "@"); at > 0 && !strings.Contains(remoteURL[:at], "/") {
		s.username = remoteURL[:at]
	}
	return s
}

// Username returns the negotiated username for username-only requests.
func (s *Session) Username() string {
	return s.username
}

// Attempts returns the number of candidates supplied so far.
func (s *Session) Attempts() int {
	return s.attemptsTotal
}

// Next returns the next credential candidate.
//
// It returns ErrSafetyFuse once MaxAttempts candidates have been supplied,
// and ErrExhausted when the agent and all disk keys have been tried. Both
// are terminal for the operation.
func (s *Session) Next() (Candidate, error) {
	if s.attemptsTotal >= MaxAttempts {
		return Candidate{}, fmt.Errorf(
			"%w: %d credential attempts without success; "+
				"try a plain ed25519 or RSA key in ~/.ssh, or switch the remote to HTTPS",
			ErrSafetyFuse, s.attemptsTotal)
	}

	// HTTPS and local transports never see SSH keys; defer once to the
	// transport's default behavior (for HTTPS, the platform's configured
	// credential helper).
	if s.scheme != "ssh" {
		if s.offeredDefault {
			return Candidate{}, s.exhausted()
		}
		s.offeredDefault = true
		s.attemptsTotal++
		return Candidate{Auth: nil, Source: "default credential helper"}, nil
	}

	if !s.attemptedAgent {
		s.attemptedAgent = true
		if s.agentSocket != "" {
			s.attemptsTotal++
			auth, err := gitssh.NewSSHAgentAuth(s.username)
			if err == nil {
				s.keysTried = append(s.keysTried, "ssh-agent")
				return Candidate{Auth: auth, Source: "ssh-agent"}, nil
			}
			// Agent socket configured but unusable: fall through to
			// disk keys on this same call.
		}
	}

	for s.nextDiskKey < len(diskKeyNames) {
		name := diskKeyNames[s.nextDiskKey]
		s.nextDiskKey++

		keyPath := filepath.Join(s.sshDir, name)
		data, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}
		if _, err := ssh.ParsePrivateKey(data); err != nil {
			// Encrypted or malformed keys are skipped; prompting for
			// passphrases is the agent's job.
			continue
		}

		auth, err := gitssh.NewPublicKeysFromFile(s.username, keyPath, "")
		if err != nil {
			continue
		}
		s.attemptsTotal++
		s.keysTried = append(s.keysTried, keyPath)
		return Candidate{Auth: auth, Source: keyPath}, nil
	}

	return Candidate{}, s.exhausted()
}

// isSCPLike reports whether raw looks like user@host:path.
func isSCPLike(raw string) bool {
	at := strings.Index(raw, "@")
	if at <= 0 || strings.Contains(raw[:at], "/") {
		return false
	}
	return strings.Contains(raw[at+1:], ":")
}

func (s *Session) exhausted() error {
	tried := "none"
	if len(s.keysTried) > 0 {
		tried = strings.Join(s.keysTried, ", ")
	}
	return fmt.Errorf("%w (tried: %s); "+
		"add a usable key under ~/.ssh or switch the remote to HTTPS", ErrExhausted, tried)
}
