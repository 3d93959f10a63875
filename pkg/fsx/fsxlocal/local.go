package fsxlocal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/chatmemory/pkg/fsx"
)

// LocalFileSystem stores files below a root directory on disk.
type LocalFileSystem struct {
	root string
}

// NewLocalFileSystem creates the root directory if needed. An empty root
// means the current working directory.
func NewLocalFileSystem(root string) (*LocalFileSystem, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fsx.ErrIO(err).WithDetail("root", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fsx.ErrIO(err).WithDetail("root", abs)
	}
	return &LocalFileSystem{root: abs}, nil
}

func (l *LocalFileSystem) Root() string {
	return l.root
}

func (l *LocalFileSystem) resolve(p string) (string, error) {
	cleaned, err := fsx.Clean(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

func (l *LocalFileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fsx.ErrIO(err).WithDetail("path", path)
	}

	// Write to a sibling temp file first so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".fsx-*")
	if err != nil {
		return fsx.ErrIO(err).WithDetail("path", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fsx.ErrIO(err).WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		return fsx.ErrIO(err).WithDetail("path", path)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fsx.ErrIO(err).WithDetail("path", path)
	}
	return nil
}

func (l *LocalFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fsx.ErrFileNotFound().WithDetail("path", path)
		}
		return nil, fsx.ErrIO(err).WithDetail("path", path)
	}
	return data, nil
}

func (l *LocalFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fsx.ErrIO(err).WithDetail("path", path)
	}
	return !info.IsDir(), nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (l *LocalFileSystem) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fsx.ErrIO(err).WithDetail("path", path)
	}
	return nil
}
