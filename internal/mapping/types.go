package mapping

import (
	"time"
)

// DocumentVersion is the mapping document schema version this code writes.
const DocumentVersion = "1.0"

// Location records where one repository is cloned.
type Location struct {
	// Path is the local clone directory.
	Path string `json:"path"`

	// AutoManaged marks entries the system created itself and may
	// silently prune; user-declared entries are never pruned.
	AutoManaged bool `json:"auto_managed"`

	// LastSync is the last successful fetch, if any.
	LastSync *time.Time `json:"last_sync,omitempty"`
}

// Document is the persisted mapping store: remote URL -> clone location.
type Document struct {
	Version  string              `json:"version"`
	Mappings map[string]Location `json:"mappings"`
}

func newDocument() *Document {
	return &Document{
		Version:  DocumentVersion,
		Mappings: make(map[string]Location),
	}
}

// ResolutionKind states how a URL was matched against the store.
type ResolutionKind int

const (
	// Exact means the literal (normalized) URL was a stored key.
	Exact ResolutionKind = iota

	// CanonicalFallback means a stored key with the same canonical
	// identity matched, typically the other transport form.
	CanonicalFallback
)

func (k ResolutionKind) String() string {
	switch k {
	case Exact:
		return "exact"
	case CanonicalFallback:
		return "canonical-fallback"
	default:
		return "unknown"
	}
}

// Resolution is the result of resolving a URL against the store.
type Resolution struct {
	Location  Location
	Kind      ResolutionKind
	StoredURL string
	// Subpath is the :subpath suffix of the queried URL, if any.
	Subpath string
}
