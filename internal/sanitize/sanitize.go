// Package sanitize provides shared sanitization for filesystem path segments.
//
// Clone directories are derived from remote URL components (host, org path,
// repository name). Each component must be safe to use as a single directory
// name on any supported filesystem.
package sanitize

import (
	"strings"
)

const (
	// MaxSegmentLength is the maximum length for a derived path segment.
	MaxSegmentLength = 255

	// DefaultSegment is used when sanitization produces an empty result.
	DefaultSegment = "unnamed"
)

// PathSegment sanitizes a string for use as a single directory name.
//
// Rules applied:
//   - Replaces path separators and other unsafe characters with hyphens
//   - Collapses runs of hyphens
//   - Trims leading/trailing hyphens and dots
//   - Truncates to MaxSegmentLength
//   - Returns DefaultSegment if result would be empty
//
// Examples:
//
//	"github.com"   -> "github.com"
//	"org team"     -> "org-team"
//	"..escape"     -> "escape"
func PathSegment(s string) string {
	if s == "" {
		return DefaultSegment
	}

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			result.WriteRune(r)
		default:
			result.WriteRune('-')
		}
	}

	sanitized := result.String()
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-.")

	if sanitized == "" {
		return DefaultSegment
	}
	if len(sanitized) > MaxSegmentLength {
		sanitized = sanitized[:MaxSegmentLength]
	}
	return sanitized
}
