// Package mapping persists repository identity -> local clone path
// associations in a JSON document guarded by an exclusive file lock.
//
// Mutations load, modify and atomically rewrite the whole document under
// the lock. Reads take no lock: the write path's temp-then-rename semantics
// guarantee readers only ever observe fully-written prior states.
//
// Entries are keyed by URL string, but upserts and resolution operate on
// canonical identity, so the SSH and HTTPS forms of one repository never
// produce duplicate clones.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/identity"
)

var (
	// ErrPathNotDirectory indicates a mapping target that is missing or
	// not a directory.
	ErrPathNotDirectory = errors.New("mapping path is not a directory")

	// ErrNotMapped indicates the URL has no entry under any identity.
	ErrNotMapped = errors.New("url is not mapped")
)

// Store is a mapping document on disk plus its sibling lock file.
type Store struct {
	path   string
	lock   *lockFile
	logger *zap.Logger
}

// NewStore returns a store backed by the document at path. The document
// and its parent directory are created on first mutation.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		lock:   newLockFile(path),
		logger: logger,
	}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// load reads the document, returning an empty document if none exists.
func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newDocument(), nil
		}
		return nil, fmt.Errorf("reading mapping document %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mapping document %s: %w", s.path, err)
	}
	if doc.Mappings == nil {
		doc.Mappings = make(map[string]Location)
	}
	return &doc, nil
}

// write atomically replaces the document: write to a temp file in the same
// directory, then rename over the target.
func (s *Store) write(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating mapping directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mapping document: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// AddMapping upserts a clone location for url by canonical identity.
//
// All existing entries with the same canonical key are removed (historical
// SSH/HTTPS duplicates may mean more than one), the maximum last_sync among
// them is preserved, and one fresh entry keyed by the normalized base URL
// is inserted. path must exist and be a directory.
func (s *Store) AddMapping(url, path string, autoManaged bool) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathNotDirectory, path)
	}

	base, id, _, err := identity.ParseURLAndSubpath(url)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", url, err)
	}
	key := id.CanonicalKey()
	normalized := identity.NormalizeBaseURL(base)

	return s.lock.withExclusiveLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}

		entry := Location{Path: path, AutoManaged: autoManaged}
		for storedURL, loc := range doc.Mappings {
			storedID, err := identity.Parse(storedURL)
			if err != nil {
				// Legacy or hand-edited entries may not parse;
				// skip them rather than fail the upsert.
				s.logger.Warn("skipping unparseable mapping entry",
					zap.String("url", storedURL), zap.Error(err))
				continue
			}
			if storedID.CanonicalKey() != key {
				continue
			}
			if loc.LastSync != nil &&
				(entry.LastSync == nil || loc.LastSync.After(*entry.LastSync)) {
				entry.LastSync = loc.LastSync
			}
			delete(doc.Mappings, storedURL)
		}

		doc.Mappings[normalized] = entry
		return s.write(doc)
	})
}

// RemoveMapping deletes the entry for url, matching by exact key first and
// canonical identity second. Returns false if nothing matched.
func (s *Store) RemoveMapping(url string) (bool, error) {
	removed := false
	err := s.lock.withExclusiveLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		res := resolveIn(doc, url, s.logger)
		if res == nil {
			return nil
		}
		delete(doc.Mappings, res.StoredURL)
		removed = true
		return s.write(doc)
	})
	return removed, err
}

// UpdateSyncTime records a successful sync for url's entry.
func (s *Store) UpdateSyncTime(url string, when time.Time) error {
	return s.lock.withExclusiveLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		res := resolveIn(doc, url, s.logger)
		if res == nil {
			return fmt.Errorf("%w: %s", ErrNotMapped, url)
		}
		loc := doc.Mappings[res.StoredURL]
		loc.LastSync = &when
		doc.Mappings[res.StoredURL] = loc
		return s.write(doc)
	})
}

// ResolveURL resolves url to its stored clone location. It returns nil with
// no error when no identity matches.
//
// The lookup is exact-then-canonical: a literal key match wins; otherwise
// every stored key is canonicalized and compared, with matches sorted by
// raw key for determinism while legacy duplicates still coexist.
func (s *Store) ResolveURL(url string) (*Resolution, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return resolveIn(doc, url, s.logger), nil
}

func resolveIn(doc *Document, url string, logger *zap.Logger) *Resolution {
	base, id, subpath, err := identity.ParseURLAndSubpath(url)
	if err != nil {
		logger.Warn("cannot parse url for resolution", zap.String("url", url), zap.Error(err))
		return nil
	}
	normalized := identity.NormalizeBaseURL(base)

	if loc, ok := doc.Mappings[normalized]; ok {
		return &Resolution{Location: loc, Kind: Exact, StoredURL: normalized, Subpath: subpath}
	}

	key := id.CanonicalKey()
	var matches []string
	for storedURL := range doc.Mappings {
		storedID, err := identity.Parse(storedURL)
		if err != nil {
			continue
		}
		if storedID.CanonicalKey() == key {
			matches = append(matches, storedURL)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	return &Resolution{
		Location:  doc.Mappings[matches[0]],
		Kind:      CanonicalFallback,
		StoredURL: matches[0],
		Subpath:   subpath,
	}
}

// All returns a copy of every stored entry. Reads take no lock.
func (s *Store) All() (map[string]Location, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Location, len(doc.Mappings))
	for k, v := range doc.Mappings {
		out[k] = v
	}
	return out, nil
}
