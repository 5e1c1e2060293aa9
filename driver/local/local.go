// Package local implements the "file" scheme on the local filesystem.
// Importing it registers the driver.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/storekit"
)

func init() {
	storekit.RegisterDriver("file", New)
}

// Driver creates raw local files and prefixes.
type Driver struct {
	chunkSize int
}

// New creates the local driver.
func New(env *storekit.Env) (storekit.Driver, error) {
	return &Driver{chunkSize: env.Config.ChunkSize}, nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	return &File{path: localPath(obj), chunkSize: d.chunkSize}, nil
}

// OpenPrefix implements storekit.Driver.
func (d *Driver) OpenPrefix(obj *storekit.Object) (storekit.RawPrefix, error) {
	uri := obj.URI
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return &Prefix{path: localPath(obj), uri: uri}, nil
}

// localPath maps a file URI to a native path. File URIs carry an empty
// host ("file:///var/data" or a bare path); relative paths stay relative.
func localPath(obj *storekit.Object) string {
	return filepath.FromSlash(obj.Path)
}

// File is a raw local file backed by os.File.
type File struct {
	path      string
	chunkSize int
	f         *os.File
}

// Open opens the file with fopen-style flag mapping. Writable modes
// create missing parent directories.
func (f *File) Open(ctx context.Context, mode storekit.Mode) error {
	if f.f != nil {
		if err := f.f.Close(); err != nil {
			return err
		}
		f.f = nil
	}

	var flag int
	switch {
	case mode.Create:
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case mode.Read:
		flag = os.O_RDONLY
	case mode.Write:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case mode.Append:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	if mode.Update {
		flag = flag&^(os.O_WRONLY|os.O_RDONLY) | os.O_RDWR
	}

	if mode.Writable() {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return err
		}
	}
	h, err := os.OpenFile(f.path, flag, 0o644)
	if err != nil {
		return mapOSError(err)
	}
	f.f = h
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if f.f == nil {
		return 0, storekit.ErrClosed
	}
	return f.f.Read(p)
}

func (f *File) Write(p []byte) (int, error) {
	if f.f == nil {
		return 0, storekit.ErrClosed
	}
	return f.f.Write(p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.f == nil {
		return 0, storekit.ErrClosed
	}
	return f.f.Seek(offset, whence)
}

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// Exists implements storekit.RawFile.
func (f *File) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Size implements storekit.RawFile.
func (f *File) Size(ctx context.Context) (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, mapOSError(err)
	}
	return info.Size(), nil
}

// Delete implements storekit.RawFile.
func (f *File) Delete(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil {
		return mapOSError(err)
	}
	return nil
}

// LoadFrom implements storekit.RawFile.
func (f *File) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return 0, err
	}
	h, err := os.Create(f.path)
	if err != nil {
		return 0, mapOSError(err)
	}
	n, err := storekit.CopyChunks(ctx, h, r, f.chunkSize)
	if cerr := h.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// BlockSize implements storekit.CanBlockSize.
func (f *File) BlockSize() int {
	return blockSize(f.path, filepath.Dir(f.path))
}

// CopyTo implements storekit.CanCopyFile for file-to-file copies.
func (f *File) CopyTo(ctx context.Context, dest *storekit.Object) error {
	src, err := os.Open(f.path)
	if err != nil {
		return mapOSError(err)
	}
	defer src.Close()

	destPath := localPath(dest)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return mapOSError(err)
	}
	_, err = storekit.CopyChunks(ctx, dst, src, f.chunkSize)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

// Prefix is a raw local directory.
type Prefix struct {
	path string
	uri  string
}

// Exists implements storekit.RawPrefix.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Objects implements storekit.RawPrefix, walking the tree recursively.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	var uris []string
	err := filepath.WalkDir(p.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == p.path {
				return nil
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.path, path)
		if err != nil {
			return err
		}
		uris = append(uris, p.uri+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uris, nil
}

// Files implements storekit.RawPrefix.
func (p *Prefix) Files(ctx context.Context) ([]string, error) {
	files, _, err := p.list()
	return files, err
}

// Folders implements storekit.RawPrefix.
func (p *Prefix) Folders(ctx context.Context) ([]string, error) {
	_, folders, err := p.list()
	return folders, err
}

func (p *Prefix) list() (files, folders []string, err error) {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, p.uri+e.Name()+"/")
		} else {
			files = append(files, p.uri+e.Name())
		}
	}
	return files, folders, nil
}

// DeleteAll implements storekit.RawPrefix. It returns the number of files
// removed; removing a missing directory is not an error.
func (p *Prefix) DeleteAll(ctx context.Context) (int, error) {
	uris, err := p.Objects(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(p.path); err != nil {
		return 0, err
	}
	return len(uris), nil
}

// Create implements storekit.RawPrefix.
func (p *Prefix) Create(ctx context.Context) error {
	return os.MkdirAll(p.path, 0o755)
}

func mapOSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return storekit.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return storekit.ErrExist
	default:
		return err
	}
}
