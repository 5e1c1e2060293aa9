// Package cloud provides the staging adapter object-store drivers build
// on. Object stores expose streamed reads and whole-object writes, not
// seekable files; the adapter bridges the gap by reading ranges straight
// from the store until the first write, then staging the object in a
// local temp file and uploading it on close.
package cloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gobeaver/storekit"
)

// ObjectAPI is the minimal per-object surface a backend must provide.
type ObjectAPI interface {
	// Exists reports whether the object exists.
	Exists(ctx context.Context) (bool, error)

	// Size returns the object size in bytes, or storekit.ErrNotExist.
	Size(ctx context.Context) (int64, error)

	// Delete removes the object, or returns storekit.ErrNotExist.
	Delete(ctx context.Context) error

	// ReadRange streams the object from offset. A negative length means
	// to the end of the object.
	ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)

	// Upload replaces the object content with the stream and returns the
	// number of bytes written.
	Upload(ctx context.Context, r io.Reader) (int64, error)
}

// File adapts an ObjectAPI to storekit.RawFile.
//
// Reads before the first write stream ranges directly from the store.
// The first write downloads the object into a temp file when the mode
// preserves existing content (append or update), or starts from an empty
// temp file otherwise; from then on all I/O hits the temp file. Close
// uploads the staged content and removes the temp file on every path.
type File struct {
	obj       *storekit.Object
	api       ObjectAPI
	chunkSize int

	// ctx comes from Open; the io interfaces carry no context.
	ctx  context.Context
	mode storekit.Mode
	open bool
	pos  int64

	body    io.ReadCloser
	bodyPos int64

	staged bool
	temp   *os.File
}

// NewFile creates a staging file over the given backend object.
func NewFile(obj *storekit.Object, api ObjectAPI, chunkSize int) *File {
	return &File{obj: obj, api: api, chunkSize: chunkSize}
}

// Open implements storekit.RawFile.
func (f *File) Open(ctx context.Context, mode storekit.Mode) error {
	if f.open {
		if err := f.Close(); err != nil {
			return err
		}
	}
	f.ctx = ctx
	f.mode = mode
	f.pos = 0

	switch {
	case mode.Create:
		ok, err := f.api.Exists(ctx)
		if err != nil {
			return err
		}
		if ok {
			return storekit.ErrExist
		}
	case mode.Read:
		ok, err := f.api.Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return storekit.ErrNotExist
		}
	case mode.Append:
		size, err := f.api.Size(ctx)
		if err != nil && !storekit.IsNotExist(err) {
			return err
		}
		f.pos = size
	}
	f.open = true
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	if !f.mode.Readable() {
		return 0, storekit.ErrNotSupported
	}
	if f.staged {
		return f.temp.Read(p)
	}
	if f.body == nil || f.bodyPos != f.pos {
		if f.body != nil {
			f.body.Close()
			f.body = nil
		}
		body, err := f.api.ReadRange(f.ctx, f.pos, -1)
		if err != nil {
			return 0, err
		}
		f.body = body
		f.bodyPos = f.pos
	}
	n, err := f.body.Read(p)
	f.pos += int64(n)
	f.bodyPos = f.pos
	return n, err
}

func (f *File) Write(p []byte) (int, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	if !f.mode.Writable() {
		return 0, storekit.ErrNotSupported
	}
	if !f.staged {
		if err := f.stage(); err != nil {
			return 0, err
		}
	}
	n, err := f.temp.Write(p)
	f.pos += int64(n)
	return n, err
}

// stage moves the object into a local temp file. Modes that preserve
// existing content download it first; write and create modes start empty.
func (f *File) stage() error {
	temp, err := os.CreateTemp("", "storekit-*")
	if err != nil {
		return err
	}
	if f.mode.Append || f.mode.Update {
		ok, eerr := f.api.Exists(f.ctx)
		if eerr != nil {
			temp.Close()
			os.Remove(temp.Name())
			return eerr
		}
		if ok {
			body, rerr := f.api.ReadRange(f.ctx, 0, -1)
			if rerr == nil {
				_, rerr = storekit.CopyChunks(f.ctx, temp, body, f.chunkSize)
				body.Close()
			}
			if rerr != nil {
				temp.Close()
				os.Remove(temp.Name())
				return rerr
			}
		}
	}
	if _, err := temp.Seek(f.pos, io.SeekStart); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return err
	}
	if f.body != nil {
		f.body.Close()
		f.body = nil
	}
	f.temp = temp
	f.staged = true
	slog.Debug("staged object to temp file", "uri", f.obj.URI, "temp", temp.Name())
	return nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	if f.staged {
		pos, err := f.temp.Seek(offset, whence)
		f.pos = pos
		return pos, err
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		size, err := f.api.Size(f.ctx)
		if err != nil {
			return 0, err
		}
		abs = size + offset
	default:
		return 0, fmt.Errorf("%w: whence %d", storekit.ErrInvalidOffset, whence)
	}
	if abs < 0 {
		return 0, storekit.ErrInvalidOffset
	}
	f.pos = abs
	return abs, nil
}

// Close uploads staged content and removes the temp file on every path,
// upload failure included.
func (f *File) Close() error {
	if !f.open {
		return nil
	}
	f.open = false

	if f.body != nil {
		f.body.Close()
		f.body = nil
	}
	if f.staged {
		temp := f.temp
		f.temp = nil
		f.staged = false
		defer os.Remove(temp.Name())
		defer temp.Close()

		if _, err := temp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		n, err := f.api.Upload(f.ctx, temp)
		if err != nil {
			return err
		}
		slog.Debug("uploaded staged object", "uri", f.obj.URI, "bytes", n)
		return nil
	}
	// A write or create mode with no writes still truncates the object.
	if f.mode.Write || f.mode.Create {
		_, err := f.api.Upload(f.ctx, &emptyReader{})
		return err
	}
	return nil
}

// Exists implements storekit.RawFile.
func (f *File) Exists(ctx context.Context) (bool, error) {
	return f.api.Exists(ctx)
}

// Size implements storekit.RawFile.
func (f *File) Size(ctx context.Context) (int64, error) {
	return f.api.Size(ctx)
}

// Delete implements storekit.RawFile.
func (f *File) Delete(ctx context.Context) error {
	return f.api.Delete(ctx)
}

// LoadFrom implements storekit.RawFile, streaming straight to the store
// without staging.
func (f *File) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	if f.open {
		return 0, storekit.ErrNotSupported
	}
	return f.api.Upload(ctx, r)
}

type emptyReader struct{}

func (*emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
