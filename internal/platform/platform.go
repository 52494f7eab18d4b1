// Package platform probes the host OS for union/overlay mount tooling.
//
// Detection is always by probing, never by user configuration: the result
// reports exactly which prerequisites are missing so user-facing errors can
// name the remediation. Dispatch between platforms happens at runtime via
// Detect, so all probing logic stays testable on any host through the
// injectable probe functions.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrToolNotFound indicates a required external tool is absent.
var ErrToolNotFound = errors.New("required tool not found")

// Info describes the host's mount capabilities. Exactly one of Linux and
// MacOS is set for supported platforms; both are nil when unsupported.
type Info struct {
	OS   string
	Arch string

	Linux *LinuxInfo
	MacOS *MacOSInfo

	// CanMount is true only when every minimum required tool for the
	// platform is present.
	CanMount bool

	// MissingTools lists absent prerequisites for remediation messages.
	MissingTools []string
}

// Supported reports whether the platform has a mount implementation at all.
func (i *Info) Supported() bool {
	return i.Linux != nil || i.MacOS != nil
}

// LinuxInfo carries Linux-specific probe results.
type LinuxInfo struct {
	Distro  string
	Version string

	MergerfsPath    string
	MergerfsVersion string
	FusermountPath  string
	FuseAvailable   bool
}

// MacOSInfo carries macOS-specific probe results.
type MacOSInfo struct {
	Version string

	// MacFUSEVersion and FuseTVersion are empty when the respective
	// FUSE provider is not installed.
	MacFUSEVersion string
	FuseTVersion   string

	UnionfsPath string
}

// Detector probes the host. The zero value is not usable; call NewDetector.
type Detector struct {
	probes Probes

	// goos overrides runtime.GOOS in tests.
	goos string
}

// NewDetector returns a detector using real system probes.
func NewDetector() *Detector {
	return &Detector{probes: systemProbes(), goos: runtime.GOOS}
}

// NewDetectorWithProbes returns a detector with fake probes for tests.
func NewDetectorWithProbes(goos string, probes Probes) *Detector {
	return &Detector{probes: probes, goos: goos}
}

// Detect probes the host OS and reports its mount capabilities.
func (d *Detector) Detect(ctx context.Context) *Info {
	info := &Info{OS: d.goos, Arch: runtime.GOARCH}
	switch d.goos {
	case "linux":
		d.detectLinux(ctx, info)
	case "darwin":
		d.detectDarwin(ctx, info)
	default:
		info.MissingTools = append(info.MissingTools,
			fmt.Sprintf("platform not supported: %s", d.goos))
	}
	return info
}
