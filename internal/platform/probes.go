package platform

import (
	"context"
	"os"

	"github.com/fyrsmithlabs/thoughtsd/internal/execx"
)

// Probes are the host interactions the detector performs. Tests substitute
// fakes; production uses systemProbes.
type Probes struct {
	// LookPath reports the absolute path of an executable, or "".
	LookPath func(name string) string

	// Run executes a command and returns stdout.
	Run func(ctx context.Context, name string, args ...string) (string, error)

	// ReadFile reads a file's contents.
	ReadFile func(path string) ([]byte, error)

	// PathExists reports whether a filesystem path exists.
	PathExists func(path string) bool
}

func systemProbes() Probes {
	runner := &execx.Runner{}
	return Probes{
		LookPath: runner.LookPath,
		Run:      runner.Run,
		ReadFile: os.ReadFile,
		PathExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}
