package platform

import (
	"context"
	"strings"
)

const osReleasePath = "/etc/os-release"

// detectLinux fills info with Linux probe results.
//
// The minimum requirement for mounting is mergerfs itself; fusermount and
// the FUSE device improve unmount and verification behavior and are
// reported when absent, with FUSE availability also gating CanMount since
// mergerfs cannot operate without it.
func (d *Detector) detectLinux(ctx context.Context, info *Info) {
	li := &LinuxInfo{}
	info.Linux = li

	li.Distro, li.Version = d.readOSRelease(ctx)

	li.MergerfsPath = d.probes.LookPath("mergerfs")
	if li.MergerfsPath == "" {
		info.MissingTools = append(info.MissingTools, "mergerfs")
	} else if out, err := d.probes.Run(ctx, li.MergerfsPath, "--version"); err == nil {
		li.MergerfsVersion = parseToolVersion(out)
	}

	li.FuseAvailable = d.fuseAvailable(ctx)
	if !li.FuseAvailable {
		info.MissingTools = append(info.MissingTools, "fuse kernel module")
	}

	li.FusermountPath = d.probes.LookPath("fusermount3")
	if li.FusermountPath == "" {
		li.FusermountPath = d.probes.LookPath("fusermount")
	}
	if li.FusermountPath == "" {
		info.MissingTools = append(info.MissingTools, "fusermount")
	}

	info.CanMount = li.MergerfsPath != "" && li.FuseAvailable
}

// readOSRelease parses the distro name and version from /etc/os-release,
// falling back to lsb_release when the file is absent.
func (d *Detector) readOSRelease(ctx context.Context) (distro, version string) {
	data, err := d.probes.ReadFile(osReleasePath)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			value = strings.Trim(value, `"`)
			switch key {
			case "NAME":
				distro = value
			case "VERSION_ID":
				version = value
			}
		}
		return distro, version
	}

	if out, err := d.probes.Run(ctx, "lsb_release", "-si"); err == nil {
		distro = strings.TrimSpace(out)
	}
	if out, err := d.probes.Run(ctx, "lsb_release", "-sr"); err == nil {
		version = strings.TrimSpace(out)
	}
	return distro, version
}

// fuseAvailable checks for FUSE support via the loaded-module list, the
// device node, or modinfo (covers modules built into the kernel image).
func (d *Detector) fuseAvailable(ctx context.Context) bool {
	if data, err := d.probes.ReadFile("/proc/filesystems"); err == nil &&
		strings.Contains(string(data), "fuse") {
		return true
	}
	if d.probes.PathExists("/dev/fuse") {
		return true
	}
	if _, err := d.probes.Run(ctx, "modinfo", "fuse"); err == nil {
		return true
	}
	return false
}

// parseToolVersion extracts the first version-looking token from tool
// version output (e.g. "mergerfs version: 2.40.2").
func parseToolVersion(out string) string {
	for _, field := range strings.Fields(out) {
		if len(field) > 0 && field[0] >= '0' && field[0] <= '9' {
			return field
		}
	}
	return strings.TrimSpace(out)
}
