package mount

import (
	"strconv"
	"strings"
)

// tableEntry is one line of /proc/self/mounts. Multi-source union mounts
// carry their sources colon-joined in the source field.
type tableEntry struct {
	Source  string
	Target  string
	FSType  string
	Options []string
}

// parseMountsTable parses /proc/self/mounts content. Malformed lines are
// skipped.
func parseMountsTable(data string) []tableEntry {
	var entries []tableEntry
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, tableEntry{
			Source:  unescapeMountField(fields[0]),
			Target:  unescapeMountField(fields[1]),
			FSType:  fields[2],
			Options: strings.Split(fields[3], ","),
		})
	}
	return entries
}

// mountInfoEntry is one line of /proc/self/mountinfo, carrying mount and
// parent IDs plus the major:minor device.
type mountInfoEntry struct {
	MountID  int
	ParentID int
	Device   string
	Target   string
	FSType   string
	Source   string
}

// parseMountInfoTable parses /proc/self/mountinfo content. Format per
// line: id parent major:minor root target options [optional...] -
// fstype source superopts.
func parseMountInfoTable(data string) []mountInfoEntry {
	var entries []mountInfoEntry
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}

		sep := -1
		for i, f := range fields {
			if f == "-" {
				sep = i
				break
			}
		}
		if sep < 0 || sep+2 >= len(fields) {
			continue
		}

		mountID, err1 := strconv.Atoi(fields[0])
		parentID, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}

		entries = append(entries, mountInfoEntry{
			MountID:  mountID,
			ParentID: parentID,
			Device:   fields[2],
			Target:   unescapeMountField(fields[4]),
			FSType:   fields[sep+1],
			Source:   unescapeMountField(fields[sep+2]),
		})
	}
	return entries
}

// unescapeMountField decodes the octal escapes the kernel uses for
// whitespace and backslashes in mount table fields (\040 for space, \011
// tab, \012 newline, \134 backslash).
func unescapeMountField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
