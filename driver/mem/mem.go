// Package mem implements the "mem" scheme on an in-memory object store.
// Importing it registers the driver; each Service gets its own store.
// The driver exists for tests and ephemeral scratch space.
package mem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gobeaver/storekit"
)

func init() {
	storekit.RegisterDriver("mem", Factory)
}

// Driver is an in-memory object store.
type Driver struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{objects: make(map[string][]byte)}
}

// Factory is the registered storekit.DriverFactory.
func Factory(env *storekit.Env) (storekit.Driver, error) {
	return New(), nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	return &File{d: d, key: key(obj)}, nil
}

// OpenPrefix implements storekit.Driver. The key is used verbatim, so a
// prefix without a trailing slash matches partial names too.
func (d *Driver) OpenPrefix(obj *storekit.Object) (storekit.RawPrefix, error) {
	return &Prefix{d: d, key: key(obj), uri: obj.URI}, nil
}

// key flattens host and path into one store key: "mem://bkt/a/b" maps to
// "bkt/a/b".
func key(obj *storekit.Object) string {
	return obj.Host + obj.Path
}

func (d *Driver) get(key string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.objects[key]
	return data, ok
}

func (d *Driver) put(key string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[key] = data
}

// File is a raw in-memory file. The buffer is written back to the store
// on Close when the mode allows writing.
type File struct {
	d   *Driver
	key string

	open bool
	mode storekit.Mode
	data []byte
	pos  int64
}

// Open implements storekit.RawFile.
func (f *File) Open(ctx context.Context, mode storekit.Mode) error {
	if f.open {
		if err := f.Close(); err != nil {
			return err
		}
	}
	data, exists := f.d.get(f.key)

	switch {
	case mode.Create:
		if exists {
			return storekit.ErrExist
		}
		f.data = nil
	case mode.Read:
		if !exists {
			return storekit.ErrNotExist
		}
		f.data = append([]byte(nil), data...)
	case mode.Write:
		f.data = nil
	case mode.Append:
		f.data = append([]byte(nil), data...)
	}
	f.pos = 0
	if mode.Append {
		f.pos = int64(len(f.data))
	}
	f.mode = mode
	f.open = true
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *File) Write(p []byte) (int, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[f.pos:end], p)
	f.pos = end
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.data)) + offset
	default:
		return 0, fmt.Errorf("%w: whence %d", storekit.ErrInvalidOffset, whence)
	}
	if abs < 0 {
		return 0, storekit.ErrInvalidOffset
	}
	f.pos = abs
	return abs, nil
}

func (f *File) Close() error {
	if !f.open {
		return nil
	}
	f.open = false
	if f.mode.Writable() {
		f.d.put(f.key, f.data)
	}
	f.data = nil
	return nil
}

// Exists implements storekit.RawFile.
func (f *File) Exists(ctx context.Context) (bool, error) {
	_, ok := f.d.get(f.key)
	return ok, nil
}

// Size implements storekit.RawFile.
func (f *File) Size(ctx context.Context) (int64, error) {
	data, ok := f.d.get(f.key)
	if !ok {
		return 0, storekit.ErrNotExist
	}
	return int64(len(data)), nil
}

// Delete implements storekit.RawFile.
func (f *File) Delete(ctx context.Context) error {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if _, ok := f.d.objects[f.key]; !ok {
		return storekit.ErrNotExist
	}
	delete(f.d.objects, f.key)
	return nil
}

// LoadFrom implements storekit.RawFile.
func (f *File) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := storekit.CopyChunks(ctx, &buf, r, 0)
	if err != nil {
		return n, err
	}
	f.d.put(f.key, buf.Bytes())
	return n, nil
}

// Prefix is a raw in-memory key prefix.
type Prefix struct {
	d   *Driver
	key string
	uri string
}

// keys returns the store keys under the prefix, sorted, placeholder
// markers excluded.
func (p *Prefix) keys() []string {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()
	var out []string
	for k := range p.d.objects {
		if strings.HasPrefix(k, p.key) && !strings.HasSuffix(k, "/") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Exists implements storekit.RawPrefix.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()
	for k := range p.d.objects {
		if strings.HasPrefix(k, p.key) {
			return true, nil
		}
	}
	return false, nil
}

// Objects implements storekit.RawPrefix.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	var uris []string
	for _, k := range p.keys() {
		uris = append(uris, p.uri+strings.TrimPrefix(k, p.key))
	}
	return uris, nil
}

// Files implements storekit.RawPrefix.
func (p *Prefix) Files(ctx context.Context) ([]string, error) {
	files, _, err := p.shallow()
	return files, err
}

// Folders implements storekit.RawPrefix.
func (p *Prefix) Folders(ctx context.Context) ([]string, error) {
	_, folders, err := p.shallow()
	return folders, err
}

func (p *Prefix) shallow() (files, folders []string, err error) {
	seen := make(map[string]bool)
	for _, k := range p.keys() {
		rel := strings.TrimPrefix(k, p.key)
		if i := strings.Index(rel, "/"); i >= 0 {
			name := rel[:i+1]
			if !seen[name] {
				seen[name] = true
				folders = append(folders, p.uri+name)
			}
		} else {
			files = append(files, p.uri+rel)
		}
	}
	return files, folders, nil
}

// DeleteAll implements storekit.RawPrefix.
func (p *Prefix) DeleteAll(ctx context.Context) (int, error) {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	var deleted int
	for k := range p.d.objects {
		if strings.HasPrefix(k, p.key) {
			if !strings.HasSuffix(k, "/") {
				deleted++
			}
			delete(p.d.objects, k)
		}
	}
	return deleted, nil
}

// Create implements storekit.RawPrefix by storing a folder marker.
func (p *Prefix) Create(ctx context.Context) error {
	p.d.put(p.key, nil)
	return nil
}

// Len returns the number of stored objects, markers included.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}
