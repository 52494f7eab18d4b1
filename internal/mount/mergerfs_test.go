package mount

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/execx"
	"github.com/fyrsmithlabs/thoughtsd/internal/platform"
)

// fakeRunner records invocations and lets tests script results and side
// effects (like the mount appearing in the table).
type fakeRunner struct {
	commands []string
	fail     map[string]error
	onRun    func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := name + " " + strings.Join(args, " ")
	f.commands = append(f.commands, cmd)
	if f.onRun != nil {
		f.onRun(name, args)
	}
	for prefix, err := range f.fail {
		if strings.HasPrefix(cmd, prefix) {
			return "", err
		}
	}
	return "ok", nil
}

func (f *fakeRunner) LookPath(name string) string {
	return name
}

// newTestManager wires a mergerfsManager against an in-memory mount table.
// Mounting via the fake runner appends the target to the table; the
// returned pointer lets tests edit the table directly.
func newTestManager(t *testing.T, runner *fakeRunner) (*mergerfsManager, *string) {
	t.Helper()
	table := ""
	m := &mergerfsManager{
		mergerfsBin:   "mergerfs",
		fusermountBin: "fusermount3",
		runner:        runner,
		unmountRunner: runner,
		mountsPath:    "mounts",
		mountInfoPath: "mountinfo",
		readFile: func(path string) ([]byte, error) {
			if path == "mounts" {
				return []byte(table), nil
			}
			return nil, fmt.Errorf("no such file: %s", path)
		},
		sleep:  func(time.Duration) {},
		logger: zap.NewNop(),
	}
	if runner.onRun == nil {
		runner.onRun = func(name string, args []string) {
			if name == "mergerfs" && len(args) == 4 {
				table += fmt.Sprintf("%s %s fuse.mergerfs rw 0 0\n", args[2], args[3])
			}
			if name == "fusermount3" {
				table = ""
			}
		}
	}
	return m, &table
}

func TestMountBuildsExpectedCommand(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	src1, src2 := t.TempDir(), t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")

	opts := Options{ReadOnly: true, AllowOther: true, ExtraOptions: []string{"nonempty"}}
	require.NoError(t, m.Mount(context.Background(), []string{src1, src2}, target, opts))

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	assert.True(t, strings.HasPrefix(cmd, "mergerfs -o "), cmd)
	assert.Contains(t, cmd, "ro")
	assert.Contains(t, cmd, "allow_other")
	assert.Contains(t, cmd, "nonempty")
	assert.Contains(t, cmd, src1+":"+src2)
	assert.Contains(t, cmd, target)
}

func TestMountIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")

	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))

	// The second call must not invoke the tool again.
	assert.Len(t, runner.commands, 1)
}

func TestMountMissingSourceFailsBeforeTool(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	target := filepath.Join(t.TempDir(), "merged")

	missing := filepath.Join(t.TempDir(), "gone")
	err := m.Mount(context.Background(), []string{missing}, target, Options{})
	require.ErrorIs(t, err, ErrSourceNotFound)
	assert.Contains(t, err.Error(), missing)
	assert.Empty(t, runner.commands)
}

func TestMountEmptySources(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	err := m.Mount(context.Background(), nil, t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestMountRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	table := ""
	runner := &fakeRunner{}
	runner.onRun = func(name string, args []string) {
		if name != "mergerfs" {
			return
		}
		attempts++
		if attempts >= 3 {
			table = fmt.Sprintf("a:b %s fuse.mergerfs rw 0 0\n", args[3])
			delete(runner.fail, "mergerfs")
		}
	}
	runner.fail = map[string]error{"mergerfs": errors.New("transport endpoint is not connected")}

	m, _ := newTestManager(t, runner)
	m.readFile = func(path string) ([]byte, error) { return []byte(table), nil }

	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{Retries: 3}))
	assert.Equal(t, 3, attempts)
}

func TestMountFailureAfterRetriesExhausted(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"mergerfs": errors.New("boom")}}
	m, _ := newTestManager(t, runner)

	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	err := m.Mount(context.Background(), []string{src}, target, Options{Retries: 2})
	require.ErrorIs(t, err, ErrOperationFailed)
	// 1 initial + 2 retries.
	assert.Len(t, runner.commands, 3)
}

func TestMountVerifiesAgainstMountTable(t *testing.T) {
	// The tool exits 0 but the mount never appears in the table.
	runner := &fakeRunner{onRun: func(string, []string) {}}
	m, _ := newTestManager(t, runner)

	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	err := m.Mount(context.Background(), []string{src}, target, Options{})
	require.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "not in the mount table")
}

func TestUnmountNoOpWhenNotMounted(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	require.NoError(t, m.Unmount(context.Background(), "/never/mounted", false))
	assert.Empty(t, runner.commands)
}

func TestUnmountPrefersFusermount(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))

	require.NoError(t, m.Unmount(context.Background(), target, false))
	require.Len(t, runner.commands, 2)
	assert.Equal(t, "fusermount3 -u "+target, runner.commands[1])
}

func TestUnmountForceUsesLazyFlag(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))

	require.NoError(t, m.Unmount(context.Background(), target, true))
	assert.Equal(t, "fusermount3 -u -z "+target, runner.commands[len(runner.commands)-1])
}

func TestUnmountFallsBackToUmount(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"fusermount3": errors.New("device busy")}}
	m, table := newTestManager(t, runner)
	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))

	runner.onRun = func(name string, args []string) {
		if name == "umount" {
			*table = ""
		}
	}
	require.NoError(t, m.Unmount(context.Background(), target, false))
	last := runner.commands[len(runner.commands)-1]
	assert.Equal(t, "umount "+target, last)
}

func TestUnmountTimeoutIsDistinct(t *testing.T) {
	timeoutErr := &execx.TimeoutError{Command: "fusermount3", Timeout: time.Second}
	runner := &fakeRunner{fail: map[string]error{"fusermount3": timeoutErr}}
	m, _ := newTestManager(t, runner)
	src := t.TempDir()
	target := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, m.Mount(context.Background(), []string{src}, target, Options{}))

	err := m.Unmount(context.Background(), target, false)
	var te *execx.TimeoutError
	require.ErrorAs(t, err, &te)
	// No umount fallback after a timeout.
	for _, cmd := range runner.commands {
		assert.NotContains(t, cmd, "umount ")
	}
}

func TestListMountsFiltersToUnionMounts(t *testing.T) {
	runner := &fakeRunner{}
	m, table := newTestManager(t, runner)
	*table = sampleMounts

	infos, err := m.ListMounts()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, []string{"a", "b"}, infos[0].Sources)
	assert.Equal(t, StatusMounted, infos[0].Status)
}

func TestMountInfoIncludesMountInfoMetadata(t *testing.T) {
	runner := &fakeRunner{}
	m, table := newTestManager(t, runner)
	*table = sampleMounts
	m.readFile = func(path string) ([]byte, error) {
		if path == "mounts" {
			return []byte(*table), nil
		}
		return []byte(sampleMountInfo), nil
	}

	info, err := m.MountInfo("/home/user/thoughts-view")
	require.NoError(t, err)
	require.NotNil(t, info)
	require.NotNil(t, info.Linux)
	assert.Equal(t, 101, info.Linux.MountID)
	assert.Equal(t, 29, info.Linux.ParentID)
	assert.Equal(t, "0:45", info.Linux.Device)
}

func TestMountInfoFallsBackWithoutMountInfoTable(t *testing.T) {
	runner := &fakeRunner{}
	m, table := newTestManager(t, runner)
	*table = sampleMounts

	info, err := m.MountInfo("/home/user/thoughts-view")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Nil(t, info.Linux)
	assert.Equal(t, "fuse.mergerfs", info.FSType)
}

func TestMountInfoNilWhenNotMounted(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	info, err := m.MountInfo("/nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestMountCommandRendering(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newTestManager(t, runner)
	cmd := m.MountCommand([]string{"/a", "/b"}, "/merged", Options{ReadOnly: true})
	assert.Equal(t, "mergerfs -o cache.files=off,category.create=mfs,ro /a:/b /merged", cmd)
}

func TestNewManagerUnsupportedPlatform(t *testing.T) {
	info := &platform.Info{OS: "plan9", MissingTools: []string{"platform not supported: plan9"}}
	_, err := NewManager(info, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
