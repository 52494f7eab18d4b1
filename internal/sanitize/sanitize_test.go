package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hostname preserved", "github.com", "github.com"},
		{"case preserved", "MyOrg", "MyOrg"},
		{"spaces to hyphens", "org team", "org-team"},
		{"slash replaced", "a/b", "a-b"},
		{"dot-dot trimmed", "..escape", "escape"},
		{"collapsed hyphens", "a//b", "a-b"},
		{"underscores kept", "my_repo", "my_repo"},
		{"empty input", "", "unnamed"},
		{"only unsafe chars", "///", "unnamed"},
		{"trailing dot trimmed", "repo.", "repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathSegment(tt.input))
		})
	}
}

func TestPathSegmentTruncation(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := PathSegment(long)
	assert.Len(t, got, MaxSegmentLength)
}
