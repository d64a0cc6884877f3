package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
)

// Loader fetches raw resources by logical, slash-separated path. How the
// resources are stored is up to the implementation.
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
	// List returns the names of the regular files directly inside dir,
	// sorted.
	List(ctx context.Context, dir string) ([]string, error)
}

// FSLoader serves resources from an fs.FS.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader returns a loader reading from fsys.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

// NewDirLoader returns a loader rooted at the directory dir.
func NewDirLoader(dir string) *FSLoader {
	return NewFSLoader(os.DirFS(dir))
}

func (l *FSLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UnexpectedError{Op: "load " + name, Err: err}
	}
	if !fs.ValidPath(name) || name == "." {
		return nil, &InvalidPathError{Path: name, Reason: "escapes the resource root"}
	}

	info, err := fs.Stat(l.fsys, name)
	if err != nil {
		return nil, l.mapErr("load", name, err)
	}
	if info.IsDir() {
		return nil, &NotFoundError{Path: name}
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, l.mapErr("load", name, err)
	}
	return data, nil
}

func (l *FSLoader) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UnexpectedError{Op: "list " + dir, Err: err}
	}
	if !fs.ValidPath(dir) {
		return nil, &InvalidPathError{Path: dir, Reason: "escapes the resource root"}
	}

	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, l.mapErr("list", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, path.Join(dir, entry.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *FSLoader) mapErr(op, name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &NotFoundError{Path: name}
	case errors.Is(err, fs.ErrInvalid):
		return &InvalidPathError{Path: name, Reason: "not a valid resource name"}
	}
	return &UnexpectedError{Op: fmt.Sprintf("%s %s", op, name), Err: err}
}
