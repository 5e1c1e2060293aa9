package storekit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File is the buffered facade over a raw backend stream.
//
// Resolving a URI to a File performs no I/O; high-level operations
// (Exists, Delete, CopyTo, ReadAll) work without opening it. Open wraps
// the raw stream in buffered I/O sized to the backend's natural block
// size, plus a text encoder/decoder layer unless the mode is binary.
// Close the file on every path; an open File (and any temp file behind
// it) belongs to a single goroutine.
type File struct {
	obj  *Object
	svc  *Service
	raw  RawFile
	mode Mode
	open bool

	br  *bufio.Reader
	bw  *bufio.Writer
	r   io.Reader
	w   io.Writer
	tw  io.WriteCloser // text-mode transform writer, flushed on close
	enc encoding.Encoding
}

// OpenOption configures File.Open.
type OpenOption func(*openOptions)

type openOptions struct {
	encoding   encoding.Encoding
	bufferSize int
}

// WithEncoding sets the text-mode character encoding. The default is
// UTF-8. Combining an encoding with binary mode is rejected as an
// invalid mode.
func WithEncoding(enc encoding.Encoding) OpenOption {
	return func(o *openOptions) {
		o.encoding = enc
	}
}

// WithBufferSize overrides the buffered I/O size.
func WithBufferSize(n int) OpenOption {
	return func(o *openOptions) {
		o.bufferSize = n
	}
}

// Object returns the parsed URI value for the file.
func (f *File) Object() *Object { return f.obj }

// String returns the literal URI.
func (f *File) String() string { return f.obj.URI }

// Mode returns the mode the file is currently open in.
func (f *File) Mode() Mode { return f.mode }

// IsOpen reports whether the file is open.
func (f *File) IsOpen() bool { return f.open }

// Open opens the file in the given mode ("r", "wb", "a+", ...). The mode
// is validated before any I/O happens. Opening an already open file
// closes it first and reopens cleanly.
func (f *File) Open(ctx context.Context, mode string, opts ...OpenOption) error {
	m, err := ParseMode(mode)
	if err != nil {
		return NewPathError("open", f.obj.URI, err)
	}
	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if m.Binary && o.encoding != nil {
		return NewPathError("open", f.obj.URI,
			fmt.Errorf("%w: binary mode doesn't take an encoding", ErrInvalidMode))
	}
	if f.open {
		if err := f.Close(); err != nil {
			return err
		}
	}

	if err := f.raw.Open(ctx, m); err != nil {
		return NewPathError("open", f.obj.URI, err)
	}
	f.mode = m
	f.open = true

	size := o.bufferSize
	if size <= 0 {
		if bs, ok := f.raw.(CanBlockSize); ok {
			size = bs.BlockSize()
		}
	}
	if size <= 0 {
		size = f.svc.Config().BufferSize
	}

	enc := o.encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	f.enc = enc
	if m.Readable() {
		f.br = bufio.NewReaderSize(f.raw, size)
		f.r = f.br
		if m.Text() {
			f.r = transform.NewReader(f.br, enc.NewDecoder())
		}
	}
	if m.Writable() {
		f.bw = bufio.NewWriterSize(f.raw, size)
		f.w = f.bw
		if m.Text() {
			tw := transform.NewWriter(f.bw, enc.NewEncoder())
			f.tw = tw
			f.w = tw
		}
	}
	return nil
}

// Read reads from the open stream.
func (f *File) Read(p []byte) (int, error) {
	if !f.open {
		return 0, NewPathError("read", f.obj.URI, ErrClosed)
	}
	if !f.mode.Readable() {
		return 0, NewPathError("read", f.obj.URI, ErrNotSupported)
	}
	return f.r.Read(p)
}

// Write writes to the open stream at the logical position.
func (f *File) Write(p []byte) (int, error) {
	if !f.open {
		return 0, NewPathError("write", f.obj.URI, ErrClosed)
	}
	if !f.mode.Writable() {
		return 0, NewPathError("write", f.obj.URI, ErrNotSupported)
	}
	if err := f.discardReadAhead(); err != nil {
		return 0, err
	}
	return f.w.Write(p)
}

// WriteString writes a string through the text (or binary) layer.
func (f *File) WriteString(s string) (int, error) {
	if !f.open {
		return 0, NewPathError("write", f.obj.URI, ErrClosed)
	}
	if !f.mode.Writable() {
		return 0, NewPathError("write", f.obj.URI, ErrNotSupported)
	}
	if err := f.discardReadAhead(); err != nil {
		return 0, err
	}
	return io.WriteString(f.w, s)
}

// discardReadAhead moves the raw stream back to the logical position,
// dropping bytes the buffered reader fetched ahead, so a write after
// reads lands where the reads stopped.
func (f *File) discardReadAhead() error {
	if f.br == nil || f.br.Buffered() == 0 {
		return nil
	}
	if _, err := f.raw.Seek(-int64(f.br.Buffered()), io.SeekCurrent); err != nil {
		return NewPathError("write", f.obj.URI, err)
	}
	f.resetReader()
	return nil
}

// Seek moves the stream position, flushing buffered writes first. In text
// mode the offset is a byte offset into the encoded stream.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if !f.open {
		return 0, NewPathError("seek", f.obj.URI, ErrClosed)
	}
	if whence == io.SeekCurrent {
		// Translate against the logical position so buffered bytes are
		// accounted for.
		cur, err := f.Tell()
		if err != nil {
			return 0, err
		}
		offset += cur
		whence = io.SeekStart
	}
	if err := f.flushWriter(); err != nil {
		return 0, err
	}
	pos, err := f.raw.Seek(offset, whence)
	if err != nil {
		return 0, NewPathError("seek", f.obj.URI, err)
	}
	f.resetReader()
	return pos, nil
}

// Tell returns the logical stream position: the raw position adjusted for
// bytes still sitting in the read or write buffers.
func (f *File) Tell() (int64, error) {
	if !f.open {
		return 0, NewPathError("tell", f.obj.URI, ErrClosed)
	}
	// Bytes held by the text encoder are invisible to the buffer
	// accounting below; push them into the buffered writer first.
	if f.tw != nil {
		if err := f.flushWriter(); err != nil {
			return 0, err
		}
	}
	pos, err := f.raw.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, NewPathError("tell", f.obj.URI, err)
	}
	if f.br != nil {
		pos -= int64(f.br.Buffered())
	}
	if f.bw != nil {
		pos += int64(f.bw.Buffered())
	}
	return pos, nil
}

// Flush pushes buffered writes down to the raw stream.
func (f *File) Flush() error {
	if !f.open {
		return NewPathError("flush", f.obj.URI, ErrClosed)
	}
	return f.flushWriter()
}

func (f *File) flushWriter() error {
	if f.tw != nil {
		// transform.Writer only flushes on Close; rebuild it afterwards
		// so the stream stays writable.
		if err := f.tw.Close(); err != nil {
			return NewPathError("flush", f.obj.URI, err)
		}
		f.tw = nil
	}
	if f.bw != nil {
		if err := f.bw.Flush(); err != nil {
			return NewPathError("flush", f.obj.URI, err)
		}
		if f.mode.Text() {
			tw := transform.NewWriter(f.bw, f.enc.NewEncoder())
			f.tw = tw
			f.w = tw
		}
	}
	return nil
}

func (f *File) resetReader() {
	if f.br != nil {
		f.br.Reset(f.raw)
		if f.mode.Text() {
			f.r = transform.NewReader(f.br, f.enc.NewDecoder())
		} else {
			f.r = f.br
		}
	}
}

// Close flushes and closes the underlying stream. The raw stream is
// closed on every path, even when a flush fails.
func (f *File) Close() error {
	if !f.open {
		return nil
	}
	f.open = false

	var firstErr error
	if f.tw != nil {
		if err := f.tw.Close(); err != nil {
			firstErr = err
		}
		f.tw = nil
	}
	if f.bw != nil {
		if err := f.bw.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.bw = nil
	}
	if err := f.raw.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	f.br, f.r, f.w = nil, nil, nil
	return NewPathError("close", f.obj.URI, firstErr)
}

// Exists reports whether the object exists. A freshly written object may
// not exist until the file is closed.
func (f *File) Exists(ctx context.Context) (bool, error) {
	return f.raw.Exists(ctx)
}

// Size returns the object size in bytes.
func (f *File) Size(ctx context.Context) (int64, error) {
	return f.raw.Size(ctx)
}

// Delete closes the file if needed and removes the object.
func (f *File) Delete(ctx context.Context) error {
	if f.open {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return f.raw.Delete(ctx)
}

// ReadAll returns the whole object content. On a closed file this is a
// one-shot read: the raw stream is opened in "rb", drained and closed.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	if f.open {
		if !f.mode.Readable() {
			return nil, NewPathError("read", f.obj.URI, ErrNotSupported)
		}
		return io.ReadAll(f.r)
	}
	if err := f.raw.Open(ctx, Mode{Read: true, Binary: true}); err != nil {
		return nil, NewPathError("read", f.obj.URI, err)
	}
	defer f.raw.Close()
	return io.ReadAll(f.raw)
}

// WriteAll replaces the object content in one shot, without leaving the
// file open.
func (f *File) WriteAll(ctx context.Context, r io.Reader) (int64, error) {
	if f.open {
		if err := f.Close(); err != nil {
			return 0, err
		}
	}
	n, err := f.raw.LoadFrom(ctx, r)
	if err != nil {
		return n, NewPathError("write", f.obj.URI, err)
	}
	return n, nil
}

// LoadJSON reads the object and unmarshals it into v.
func (f *File) LoadJSON(ctx context.Context, v any) error {
	b, err := f.ReadAll(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// CopyTo copies the object to another URI, which may use any registered
// scheme. When source and destination share a scheme and the backend
// offers a server-side copy, that short-circuit is used; otherwise the
// source is streamed into the destination's LoadFrom in bounded chunks.
func (f *File) CopyTo(ctx context.Context, to string) error {
	dest, err := ParseObject(to)
	if err != nil {
		return err
	}
	if dest.Scheme == f.obj.Scheme {
		if c, ok := f.raw.(CanCopyFile); ok {
			err := c.CopyTo(ctx, dest)
			if err == nil {
				return nil
			}
			if !IsNotSupported(err) {
				return NewPathError("copy", f.obj.URI, err)
			}
		}
	}

	src, err := f.svc.rawFile(f.obj)
	if err != nil {
		return NewPathError("copy", f.obj.URI, err)
	}
	if err := src.Open(ctx, Mode{Read: true, Binary: true}); err != nil {
		return NewPathError("copy", f.obj.URI, err)
	}
	defer src.Close()

	destRaw, err := f.svc.rawFile(dest)
	if err != nil {
		return NewPathError("copy", to, err)
	}
	if _, err := destRaw.LoadFrom(ctx, src); err != nil {
		return NewPathError("copy", to, err)
	}
	return nil
}

// MoveTo copies the object to another URI and deletes the source once the
// destination is confirmed to exist.
func (f *File) MoveTo(ctx context.Context, to string) error {
	if err := f.CopyTo(ctx, to); err != nil {
		return err
	}
	dest, err := f.svc.File(to)
	if err != nil {
		return err
	}
	ok, err := dest.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return NewPathError("move", to, ErrNotExist)
	}
	return f.Delete(ctx)
}

// MD5Hex returns the backend-recorded content MD5 as a hex string, or
// ErrNotSupported when the backend records none.
func (f *File) MD5Hex(ctx context.Context) (string, error) {
	if m, ok := f.raw.(CanMD5); ok {
		return m.MD5Hex(ctx)
	}
	return "", NewPathError("md5", f.obj.URI, ErrNotSupported)
}
