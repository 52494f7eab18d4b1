// Package repoconfig loads and validates per-repository workspace
// configuration. Two document shapes exist on disk: the legacy v1 shape
// with a flat requires list, and the current v2 shape that separates the
// thoughts mount, team context mounts, and read-only references. Loading
// a v1 document transparently migrates it to v2 in memory.
package repoconfig

import (
	"encoding/json"
	"fmt"
)

const (
	VersionV1 = "1.0"
	VersionV2 = "2.0"

	// SyncNone marks a mount that is never synced after the initial
	// clone. In v1 documents it is the signal that an entry is a
	// reference rather than a context mount.
	SyncNone = "none"

	// SyncAuto marks a mount kept up to date on workspace access.
	SyncAuto = "auto"
)

// MountDirs names the top-level directories mounts are placed under.
type MountDirs struct {
	Thoughts   string `json:"thoughts"`
	Context    string `json:"context"`
	References string `json:"references"`
}

// DefaultMountDirs returns the conventional directory names.
func DefaultMountDirs() MountDirs {
	return MountDirs{
		Thoughts:   "thoughts",
		Context:    "context",
		References: "references",
	}
}

// ThoughtsMount is the single writable mount backing branch-scoped work.
type ThoughtsMount struct {
	Remote  string `json:"remote"`
	Subpath string `json:"subpath,omitempty"`
	Sync    string `json:"sync,omitempty"`
}

// ContextMount is a team-shared repository mounted into the workspace.
type ContextMount struct {
	Remote      string `json:"remote"`
	MountPath   string `json:"mount_path"`
	Subpath     string `json:"subpath,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Sync        string `json:"sync,omitempty"`
}

// Reference is a read-only repository mounted for lookup. On disk it is
// either a bare URL string or an object with a description.
type Reference struct {
	Remote      string
	Description string
}

// UnmarshalJSON accepts both the string and the object form.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Remote = s
		r.Description = ""
		return nil
	}
	var obj struct {
		Remote      string `json:"remote"`
		Description string `json:"description,omitempty"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("reference must be a URL string or an object: %w", err)
	}
	r.Remote = obj.Remote
	r.Description = obj.Description
	return nil
}

// MarshalJSON writes the compact string form when there is no description.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.Description == "" {
		return json.Marshal(r.Remote)
	}
	return json.Marshal(struct {
		Remote      string `json:"remote"`
		Description string `json:"description,omitempty"`
	}{r.Remote, r.Description})
}

// Document is the v2 configuration shape, the in-memory form regardless
// of which version was on disk.
type Document struct {
	Version       string         `json:"version"`
	MountDirs     MountDirs      `json:"mount_dirs"`
	ThoughtsMount *ThoughtsMount `json:"thoughts_mount,omitempty"`
	ContextMounts []ContextMount `json:"context_mounts,omitempty"`
	References    []Reference    `json:"references,omitempty"`
}

// RequireV1 is one entry in a legacy v1 requires list.
type RequireV1 struct {
	Remote      string `json:"remote"`
	MountPath   string `json:"mount_path"`
	Subpath     string `json:"subpath,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Sync        string `json:"sync,omitempty"`
}

// DocumentV1 is the legacy configuration shape.
type DocumentV1 struct {
	Version   string      `json:"version"`
	MountDirs MountDirs   `json:"mount_dirs"`
	Requires  []RequireV1 `json:"requires,omitempty"`
}
