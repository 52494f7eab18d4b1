package repoconfig

import (
	"path"
	"strings"
)

// MigrateV1 reclassifies a legacy v1 document into the v2 shape. It is a
// pure function: the input is not modified and no IO happens.
//
// Each v1 require becomes one of three things:
//   - the thoughts mount, when its mount path is exactly the thoughts
//     directory name;
//   - a reference, when its mount path sits under the references
//     directory, or failing that when its sync strategy is "none";
//   - a context mount otherwise.
//
// Path placement wins over sync strategy: an entry under the context
// directory stays a context mount even with sync "none".
func MigrateV1(v1 DocumentV1) Document {
	dirs := v1.MountDirs
	if dirs == (MountDirs{}) {
		dirs = DefaultMountDirs()
	}
	if dirs.Thoughts == "" {
		dirs.Thoughts = DefaultMountDirs().Thoughts
	}
	if dirs.Context == "" {
		dirs.Context = DefaultMountDirs().Context
	}
	if dirs.References == "" {
		dirs.References = DefaultMountDirs().References
	}

	doc := Document{
		Version:   VersionV2,
		MountDirs: dirs,
	}

	for _, req := range v1.Requires {
		mountPath := path.Clean(req.MountPath)

		if mountPath == dirs.Thoughts && doc.ThoughtsMount == nil {
			doc.ThoughtsMount = &ThoughtsMount{
				Remote:  req.Remote,
				Subpath: req.Subpath,
				Sync:    req.Sync,
			}
			continue
		}

		if underDir(mountPath, dirs.References) {
			doc.References = append(doc.References, Reference{
				Remote:      req.Remote,
				Description: req.Description,
			})
			continue
		}
		if !underDir(mountPath, dirs.Context) && req.Sync == SyncNone {
			doc.References = append(doc.References, Reference{
				Remote:      req.Remote,
				Description: req.Description,
			})
			continue
		}

		doc.ContextMounts = append(doc.ContextMounts, ContextMount{
			Remote:      req.Remote,
			MountPath:   mountPath,
			Subpath:     req.Subpath,
			Description: req.Description,
			Optional:    req.Optional,
			Sync:        req.Sync,
		})
	}
	return doc
}

// underDir reports whether p is dir itself or nested below it.
func underDir(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}
