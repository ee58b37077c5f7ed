// Package browsefs adapts the store engine to billy.Filesystem for use
// with willscott/go-nfs: documents and collections project as
// directories, scalars project as files holding their raw string bytes.
// The filesystem is read-only — there is no write-back pipeline.
package browsefs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/schema"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// FS projects an Engine's document tree as a read-only billy.Filesystem.
type FS struct {
	engine    *engine.Engine
	root      *schema.Node
	mountTime time.Time
}

// New returns a browsefs.FS over eng, rooted at root.
func New(eng *engine.Engine, root *schema.Node) *FS {
	return &FS{engine: eng, root: root, mountTime: time.Now()}
}

func splitPath(name string) []string {
	name = cleanPath(name)
	if name == "/" {
		return nil
	}
	parts := strings.Split(strings.Trim(name, "/"), "/")
	return parts
}

func cleanPath(name string) string {
	name = filepath.Clean("/" + name)
	if name == "." {
		return "/"
	}
	return name
}

func (fs *FS) resolve(name string) ([]string, *schema.Node, error) {
	path := splitPath(name)
	node, err := fs.root.Resolve(path)
	if err != nil {
		return nil, nil, &os.PathError{Op: "resolve", Path: name, Err: os.ErrNotExist}
	}
	return path, node, nil
}

// --- billy.Basic ---

func (fs *FS) Create(filename string) (billy.File, error) { return nil, errReadOnly }

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, errReadOnly
	}

	path, node, err := fs.resolve(filename)
	if err != nil {
		return nil, err
	}
	if node.Kind() != schema.KindScalar {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}

	v, err := fs.engine.Get(context.Background(), path)
	if err != nil || v == nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	s, ok := v.(string)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("unexpected value kind")}
	}

	return &scalarFile{name: filename, data: []byte(s)}, nil
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *FS) Rename(oldpath, newpath string) error { return errReadOnly }

func (fs *FS) Remove(filename string) error { return errReadOnly }

func (fs *FS) Join(elem ...string) string { return filepath.Join(elem...) }

// --- billy.TempFile ---

func (fs *FS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(name string) ([]os.FileInfo, error) {
	path, node, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}

	switch node.Kind() {
	case schema.KindScalar:
		return nil, &os.PathError{Op: "readdir", Path: name, Err: fmt.Errorf("not a directory")}

	case schema.KindDocument:
		names := append([]string{}, node.Fields()...)
		sort.Strings(names)
		infos := make([]os.FileInfo, 0, len(names))
		for _, field := range names {
			child, _ := node.Field(field)
			info, err := fs.fieldInfo(path, field, child)
			if err != nil {
				continue
			}
			infos = append(infos, info)
		}
		return infos, nil

	case schema.KindCollection:
		v, err := fs.engine.Get(context.Background(), path)
		if err != nil {
			return nil, &os.PathError{Op: "readdir", Path: name, Err: err}
		}
		members, _ := v.(map[string]engine.Value)
		names := make([]string, 0, len(members))
		for member := range members {
			names = append(names, member)
		}
		sort.Strings(names)
		infos := make([]os.FileInfo, 0, len(names))
		for _, member := range names {
			info := &staticFileInfo{
				name:    member,
				mode:    os.ModeDir | 0o555,
				modTime: fs.mountTime,
			}
			if s, ok := members[member].(string); ok {
				info.size = int64(len(s))
				info.mode = 0o444
			}
			infos = append(infos, info)
		}
		return infos, nil
	}
	return nil, &os.PathError{Op: "readdir", Path: name, Err: os.ErrNotExist}
}

// fieldInfo builds the FileInfo for one declared Document field. Document
// and Collection fields always appear (the schema fixes their existence);
// a Scalar field appears only if it currently holds a value.
func (fs *FS) fieldInfo(parentPath []string, field string, node *schema.Node) (os.FileInfo, error) {
	switch node.Kind() {
	case schema.KindScalar:
		v, err := fs.engine.Get(context.Background(), childPath(parentPath, field))
		if err != nil || v == nil {
			return nil, os.ErrNotExist
		}
		s, _ := v.(string)
		return &staticFileInfo{name: field, size: int64(len(s)), mode: 0o444, modTime: fs.mountTime}, nil
	default:
		return &staticFileInfo{name: field, mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}
}

func childPath(path []string, name string) []string {
	return append(append([]string{}, path...), name)
}

func (fs *FS) MkdirAll(filename string, perm os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	path, node, err := fs.resolve(filename)
	if err != nil {
		return nil, err
	}

	if len(path) == 0 {
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}

	base := path[len(path)-1]
	switch node.Kind() {
	case schema.KindScalar:
		v, err := fs.engine.Get(context.Background(), path)
		if err != nil || v == nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
		}
		s, _ := v.(string)
		return &staticFileInfo{name: base, size: int64(len(s)), mode: 0o444, modTime: fs.mountTime}, nil
	default:
		return &staticFileInfo{name: base, mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}
}

func (fs *FS) Symlink(target, link string) error { return billy.ErrNotSupported }

func (fs *FS) Readlink(link string) (string, error) { return "", billy.ErrNotSupported }

// --- billy.Chroot ---

func (fs *FS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *FS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
