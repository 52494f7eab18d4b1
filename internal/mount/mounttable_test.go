package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMounts = `proc /proc proc rw,nosuid,nodev,noexec 0 0
/dev/sda1 / ext4 rw,relatime 0 0
a:b /home/user/thoughts-view fuse.mergerfs rw,nosuid,nodev,relatime,user_id=1000 0 0
/srv/one:/srv/two\040spaced /mnt/merged fuse.mergerfs rw,allow_other 0 0
malformed line
`

const sampleMountInfo = `22 1 0:21 / /proc rw,nosuid - proc proc rw
29 1 8:1 / / rw,relatime - ext4 /dev/sda1 rw
101 29 0:45 / /home/user/thoughts-view rw,nosuid,nodev - fuse.mergerfs a:b rw,user_id=1000
garbage
`

func TestParseMountsTable(t *testing.T) {
	entries := parseMountsTable(sampleMounts)
	require.Len(t, entries, 4)

	merged := entries[2]
	assert.Equal(t, "a:b", merged.Source)
	assert.Equal(t, "/home/user/thoughts-view", merged.Target)
	assert.Equal(t, "fuse.mergerfs", merged.FSType)
	assert.Contains(t, merged.Options, "user_id=1000")

	// Octal escapes in source paths are decoded.
	spaced := entries[3]
	assert.Equal(t, "/srv/one:/srv/two spaced", spaced.Source)
}

func TestParseMountInfoTable(t *testing.T) {
	entries := parseMountInfoTable(sampleMountInfo)
	require.Len(t, entries, 3)

	union := entries[2]
	assert.Equal(t, 101, union.MountID)
	assert.Equal(t, 29, union.ParentID)
	assert.Equal(t, "0:45", union.Device)
	assert.Equal(t, "/home/user/thoughts-view", union.Target)
	assert.Equal(t, "fuse.mergerfs", union.FSType)
}

func TestUnescapeMountField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/plain/path", "/plain/path"},
		{`/with\040space`, "/with space"},
		{`/tab\011here`, "/tab\there"},
		{`/back\134slash`, `/back\slash`},
		{`/trailing\04`, `/trailing\04`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescapeMountField(tt.in), tt.in)
	}
}

func TestParseDarwinMountOutput(t *testing.T) {
	out := `/dev/disk3s1s1 on / (apfs, sealed, local, read-only, journaled)
/srv/a:/srv/b on /Users/dev/thoughts-view (unionfs, local, nosuid, mounted by dev)
map auto_home on /System/Volumes/Data/home (autofs, automounted, nobrowse)
`
	entries := parseDarwinMountOutput(out)
	require.Len(t, entries, 3)

	union := entries[1]
	assert.Equal(t, "/srv/a:/srv/b", union.Source)
	assert.Equal(t, "/Users/dev/thoughts-view", union.Target)
	assert.Equal(t, "unionfs", union.FSType)
	assert.Contains(t, union.Options, "nosuid")
}
