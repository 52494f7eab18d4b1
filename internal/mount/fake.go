package mount

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FakeManager is an in-memory Manager for tests of callers that need mount
// behavior without a FUSE stack. It honors the same idempotence contract
// as the real implementations.
type FakeManager struct {
	mu     sync.Mutex
	mounts map[string]Info

	// MountCalls counts external-tool-equivalent mount invocations,
	// letting tests assert the idempotent no-op path skipped the tool.
	MountCalls int

	// FailMounts makes the next Mount calls fail, for retry testing.
	FailMounts int
}

// NewFakeManager returns an empty fake.
func NewFakeManager() *FakeManager {
	return &FakeManager{mounts: make(map[string]Info)}
}

func (f *FakeManager) Mount(_ context.Context, sources []string, target string, opts Options) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	for _, src := range sources {
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mounts[target]; ok {
		return nil
	}
	f.MountCalls++
	if f.FailMounts > 0 {
		f.FailMounts--
		return fmt.Errorf("%w: simulated failure", ErrOperationFailed)
	}
	f.mounts[target] = Info{
		Target:  target,
		Sources: append([]string{}, sources...),
		Status:  StatusMounted,
		FSType:  "fake.union",
	}
	return nil
}

func (f *FakeManager) Unmount(_ context.Context, target string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mounts, target)
	return nil
}

func (f *FakeManager) IsMounted(target string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.mounts[target]
	return ok, nil
}

func (f *FakeManager) ListMounts() ([]Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []Info
	for _, info := range f.mounts {
		infos = append(infos, info)
	}
	return infos, nil
}

func (f *FakeManager) MountInfo(target string) (*Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.mounts[target]; ok {
		return &info, nil
	}
	return nil, nil
}

func (f *FakeManager) CheckHealth(context.Context) error {
	return nil
}

func (f *FakeManager) MountCommand(sources []string, target string, _ Options) string {
	return "fake-union " + strings.Join(sources, ":") + " " + target
}
