package platform

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbes builds a Probes over in-memory tool/file tables.
func fakeProbes(tools map[string]string, files map[string]string, cmdOut map[string]string) Probes {
	return Probes{
		LookPath: func(name string) string { return tools[name] },
		Run: func(_ context.Context, name string, args ...string) (string, error) {
			key := name
			for _, a := range args {
				key += " " + a
			}
			if out, ok := cmdOut[key]; ok {
				return out, nil
			}
			return "", fmt.Errorf("command not found: %s", key)
		},
		ReadFile: func(path string) ([]byte, error) {
			if content, ok := files[path]; ok {
				return []byte(content), nil
			}
			return nil, fmt.Errorf("no such file: %s", path)
		},
		PathExists: func(path string) bool {
			_, ok := files[path]
			return ok
		},
	}
}

func TestDetectLinuxAllToolsPresent(t *testing.T) {
	probes := fakeProbes(
		map[string]string{
			"mergerfs":    "/usr/bin/mergerfs",
			"fusermount3": "/usr/bin/fusermount3",
		},
		map[string]string{
			osReleasePath:       "NAME=\"Ubuntu\"\nVERSION_ID=\"24.04\"\n",
			"/proc/filesystems": "nodev\tfuse\nnodev\tfusectl\n",
			"/dev/fuse":         "",
		},
		map[string]string{
			"/usr/bin/mergerfs --version": "mergerfs version: 2.40.2\n",
		},
	)

	info := NewDetectorWithProbes("linux", probes).Detect(context.Background())
	require.NotNil(t, info.Linux)
	assert.True(t, info.Supported())
	assert.True(t, info.CanMount)
	assert.Empty(t, info.MissingTools)
	assert.Equal(t, "Ubuntu", info.Linux.Distro)
	assert.Equal(t, "24.04", info.Linux.Version)
	assert.Equal(t, "2.40.2", info.Linux.MergerfsVersion)
	assert.Equal(t, "/usr/bin/fusermount3", info.Linux.FusermountPath)
	assert.True(t, info.Linux.FuseAvailable)
}

func TestDetectLinuxMissingMergerfs(t *testing.T) {
	probes := fakeProbes(
		map[string]string{"fusermount": "/usr/bin/fusermount"},
		map[string]string{"/dev/fuse": ""},
		nil,
	)

	info := NewDetectorWithProbes("linux", probes).Detect(context.Background())
	assert.False(t, info.CanMount)
	assert.Contains(t, info.MissingTools, "mergerfs")
	assert.NotContains(t, info.MissingTools, "fusermount")
}

func TestDetectLinuxNoFuse(t *testing.T) {
	probes := fakeProbes(
		map[string]string{"mergerfs": "/usr/bin/mergerfs"},
		nil,
		nil,
	)

	info := NewDetectorWithProbes("linux", probes).Detect(context.Background())
	assert.False(t, info.CanMount)
	assert.Contains(t, info.MissingTools, "fuse kernel module")
	assert.Contains(t, info.MissingTools, "fusermount")
}

func TestDetectLinuxOSReleaseFallback(t *testing.T) {
	probes := fakeProbes(
		map[string]string{"mergerfs": "/usr/bin/mergerfs"},
		map[string]string{"/dev/fuse": ""},
		map[string]string{
			"lsb_release -si": "Debian\n",
			"lsb_release -sr": "12\n",
		},
	)

	info := NewDetectorWithProbes("linux", probes).Detect(context.Background())
	assert.Equal(t, "Debian", info.Linux.Distro)
	assert.Equal(t, "12", info.Linux.Version)
}

func TestDetectDarwinMacFUSE(t *testing.T) {
	plist := `<plist><dict>
<key>CFBundleShortVersionString</key>
<string>4.8.3</string>
</dict></plist>`
	probes := fakeProbes(
		map[string]string{"unionfs": "/opt/local/bin/unionfs"},
		map[string]string{
			macFUSEBundle:    "",
			macFUSEInfoPlist: plist,
		},
		map[string]string{"sw_vers -productVersion": "14.6.1\n"},
	)

	info := NewDetectorWithProbes("darwin", probes).Detect(context.Background())
	require.NotNil(t, info.MacOS)
	assert.True(t, info.CanMount)
	assert.Equal(t, "14.6.1", info.MacOS.Version)
	assert.Equal(t, "4.8.3", info.MacOS.MacFUSEVersion)
	assert.Empty(t, info.MacOS.FuseTVersion)
}

func TestDetectDarwinFuseTHelperFallback(t *testing.T) {
	probes := fakeProbes(
		map[string]string{
			"unionfs":  "/opt/local/bin/unionfs",
			"go-nfsv4": "/usr/local/bin/go-nfsv4",
		},
		nil,
		nil,
	)

	info := NewDetectorWithProbes("darwin", probes).Detect(context.Background())
	assert.True(t, info.CanMount)
	assert.Equal(t, "unknown", info.MacOS.FuseTVersion)
}

func TestDetectDarwinNothingInstalled(t *testing.T) {
	info := NewDetectorWithProbes("darwin", fakeProbes(nil, nil, nil)).Detect(context.Background())
	assert.False(t, info.CanMount)
	assert.Contains(t, info.MissingTools, "macFUSE or FUSE-T")
	assert.Contains(t, info.MissingTools, "unionfs")
}

func TestDetectUnsupportedPlatform(t *testing.T) {
	info := NewDetectorWithProbes("windows", fakeProbes(nil, nil, nil)).Detect(context.Background())
	assert.False(t, info.Supported())
	assert.False(t, info.CanMount)
	require.Len(t, info.MissingTools, 1)
	assert.Contains(t, info.MissingTools[0], "platform not supported")
	assert.Contains(t, info.MissingTools[0], "windows")
}

func TestParseToolVersion(t *testing.T) {
	assert.Equal(t, "2.40.2", parseToolVersion("mergerfs version: 2.40.2"))
	assert.Equal(t, "1.0", parseToolVersion("1.0"))
}
