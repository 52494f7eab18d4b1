package identity

import (
	"strings"
)

// ParseURLAndSubpath splits a remote URL with an optional :subpath suffix,
// e.g. git@host:org/repo.git:docs/api, into the base URL, its Identity, and
// the subpath.
//
// The split uses a rightmost-colon heuristic: the string is split at the
// last colon, and the split is accepted only if (a) the tail is non-empty
// and not entirely digits (which would be an SSH port), and (b) the head
// still parses as a remote URL. The head validation must run after the
// digit check because ports and subpaths are syntactically ambiguous
// without it.
func ParseURLAndSubpath(raw string) (base string, id Identity, subpath string, err error) {
	raw = strings.TrimSpace(raw)

	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		head, tail := raw[:idx], raw[idx+1:]
		if tail != "" && !allDigits(tail) {
			if headID, headErr := Parse(head); headErr == nil {
				return head, headID, tail, nil
			}
		}
	}

	id, err = Parse(raw)
	if err != nil {
		return "", Identity{}, "", err
	}
	return raw, id, "", nil
}

// NormalizeBaseURL strips a trailing slash and .git suffix from a base URL
// so that equivalent spellings of the same URL form share one stored key.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")
	return raw
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
