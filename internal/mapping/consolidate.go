package mapping

import (
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/identity"
)

// Consolidate collapses duplicate entries that share a canonical identity
// into one entry each, and prunes auto-managed entries whose clone path no
// longer exists on disk. User-declared entries are never pruned.
//
// Unparseable entry URLs are logged and skipped; a bulk pass never aborts
// on one bad entry. Returns the number of entries removed.
func (s *Store) Consolidate() (int, error) {
	removed := 0
	err := s.lock.withExclusiveLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}

		byKey := make(map[identity.Key][]string)
		for storedURL := range doc.Mappings {
			id, err := identity.Parse(storedURL)
			if err != nil {
				s.logger.Warn("skipping unparseable mapping entry",
					zap.String("url", storedURL), zap.Error(err))
				continue
			}
			key := id.CanonicalKey()
			byKey[key] = append(byKey[key], storedURL)
		}

		for _, urls := range byKey {
			if len(urls) < 2 {
				continue
			}
			// Keep the first key in sorted order, merging the freshest
			// last_sync into it; resolution sorts the same way, so the
			// surviving entry is the one resolution already preferred.
			sort.Strings(urls)
			keep := doc.Mappings[urls[0]]
			for _, u := range urls[1:] {
				loc := doc.Mappings[u]
				if loc.LastSync != nil &&
					(keep.LastSync == nil || loc.LastSync.After(*keep.LastSync)) {
					keep.LastSync = loc.LastSync
				}
				delete(doc.Mappings, u)
				removed++
			}
			doc.Mappings[urls[0]] = keep
		}

		for storedURL, loc := range doc.Mappings {
			if !loc.AutoManaged {
				continue
			}
			if dirExists(loc.Path) {
				continue
			}
			s.logger.Info("pruning auto-managed entry with missing clone",
				zap.String("url", storedURL), zap.String("path", loc.Path))
			delete(doc.Mappings, storedURL)
			removed++
		}

		if removed == 0 {
			return nil
		}
		return s.write(doc)
	})
	return removed, err
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
