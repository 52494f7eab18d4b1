package mapping

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile owns the sibling .lock path guarding a mapping document. The
// flock is advisory but exclusive, serializing mutations across processes,
// not just goroutines.
type lockFile struct {
	path string
}

func newLockFile(documentPath string) *lockFile {
	return &lockFile{path: documentPath + ".lock"}
}

// withExclusiveLock runs fn while holding an exclusive flock on the lock
// path. The lock is held for the whole load-mutate-write cycle; lock or IO
// failures are fatal to the single operation and carry the offending path.
func (l *lockFile) withExclusiveLock(fn func() error) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file %s: %w", l.path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking %s: %w", l.path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}
