package platform

import (
	"context"
	"strings"
)

// Filesystem bundle locations for the two supported FUSE providers.
const (
	macFUSEBundle      = "/Library/Filesystems/macfuse.fs"
	macFUSEInfoPlist   = "/Library/Filesystems/macfuse.fs/Contents/Info.plist"
	fuseTBundle        = "/Library/Application Support/fuse-t"
	fuseTVersionPlist  = "/Library/Application Support/fuse-t/fuse-t.plist"
	fuseTHelperBinName = "go-nfsv4"
)

// detectDarwin fills info with macOS probe results.
//
// Either FUSE provider (macFUSE or FUSE-T) satisfies the FUSE requirement;
// the unionfs binary is required either way.
func (d *Detector) detectDarwin(ctx context.Context, info *Info) {
	mi := &MacOSInfo{}
	info.MacOS = mi

	if out, err := d.probes.Run(ctx, "sw_vers", "-productVersion"); err == nil {
		mi.Version = strings.TrimSpace(out)
	}

	if d.probes.PathExists(macFUSEBundle) {
		mi.MacFUSEVersion = d.bundleVersion(macFUSEInfoPlist)
		if mi.MacFUSEVersion == "" {
			mi.MacFUSEVersion = "unknown"
		}
	}
	if d.probes.PathExists(fuseTBundle) {
		mi.FuseTVersion = d.bundleVersion(fuseTVersionPlist)
		if mi.FuseTVersion == "" {
			mi.FuseTVersion = "unknown"
		}
	} else if d.probes.LookPath(fuseTHelperBinName) != "" {
		// FUSE-T installed without its bundle metadata; the NFS helper
		// process is sufficient evidence.
		mi.FuseTVersion = "unknown"
	}

	haveFUSE := mi.MacFUSEVersion != "" || mi.FuseTVersion != ""
	if !haveFUSE {
		info.MissingTools = append(info.MissingTools, "macFUSE or FUSE-T")
	}

	mi.UnionfsPath = d.probes.LookPath("unionfs")
	if mi.UnionfsPath == "" {
		info.MissingTools = append(info.MissingTools, "unionfs")
	}

	info.CanMount = haveFUSE && mi.UnionfsPath != ""
}

// bundleVersion pulls a CFBundleVersion-style string out of a plist. The
// plists involved are small XML documents; a full plist parser is not
// warranted for one key.
func (d *Detector) bundleVersion(plistPath string) string {
	data, err := d.probes.ReadFile(plistPath)
	if err != nil {
		return ""
	}
	content := string(data)
	for _, key := range []string{"CFBundleShortVersionString", "CFBundleVersion"} {
		idx := strings.Index(content, "<key>"+key+"</key>")
		if idx < 0 {
			continue
		}
		rest := content[idx:]
		start := strings.Index(rest, "<string>")
		end := strings.Index(rest, "</string>")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		return strings.TrimSpace(rest[start+len("<string>") : end])
	}
	return ""
}
