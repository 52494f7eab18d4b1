package repoconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrNotFound indicates the repository has no configuration file.
var ErrNotFound = errors.New("repository config not found")

// DefaultFileName is the configuration file name inside a repository.
const DefaultFileName = ".thoughts.json"

// Load reads the configuration at path, migrates a v1 document to v2,
// and validates the result.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Document{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document of either version.
func Parse(data []byte) (Document, error) {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Document{}, fmt.Errorf("decoding config: %w", err)
	}

	var doc Document
	switch probe.Version {
	case VersionV1:
		var v1 DocumentV1
		if err := json.Unmarshal(data, &v1); err != nil {
			return Document{}, fmt.Errorf("decoding v1 config: %w", err)
		}
		doc = MigrateV1(v1)
	case VersionV2:
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("decoding v2 config: %w", err)
		}
		if doc.MountDirs == (MountDirs{}) {
			doc.MountDirs = DefaultMountDirs()
		}
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, probe.Version)
	}

	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
