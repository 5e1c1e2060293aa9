// Package web implements the read-only "http", "https" and "ftp"
// schemes. Importing it registers the driver; writes, deletes and folder
// operations report ErrNotSupported.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/gobeaver/storekit"
)

func init() {
	storekit.RegisterDriver("http", New)
	storekit.RegisterDriver("https", New)
	storekit.RegisterDriver("ftp", New)
}

// Driver creates raw read-only web files.
type Driver struct{}

// New creates the web driver.
func New(env *storekit.Env) (storekit.Driver, error) {
	return &Driver{}, nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	if obj.Scheme == "ftp" {
		return &FTPFile{obj: obj}, nil
	}
	return &HTTPFile{obj: obj, client: http.DefaultClient}, nil
}

// OpenPrefix implements storekit.Driver. Web sources have no listable
// folders.
func (d *Driver) OpenPrefix(obj *storekit.Object) (storekit.RawPrefix, error) {
	return nil, storekit.NewPathError("folder", obj.URI, storekit.ErrNotSupported)
}

// HTTPFile is a raw read-only HTTP(S) file. Reads stream the response
// body; seeking reopens the request with a Range header.
type HTTPFile struct {
	obj    *storekit.Object
	client *http.Client

	ctx     context.Context
	open    bool
	pos     int64
	body    io.ReadCloser
	bodyPos int64
}

// Open implements storekit.RawFile. Only read modes are accepted.
func (f *HTTPFile) Open(ctx context.Context, mode storekit.Mode) error {
	if mode.Writable() {
		return storekit.ErrNotSupported
	}
	if f.open {
		if err := f.Close(); err != nil {
			return err
		}
	}
	ok, err := f.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return storekit.ErrNotExist
	}
	f.ctx = ctx
	f.open = true
	f.pos = 0
	return nil
}

func (f *HTTPFile) Read(p []byte) (int, error) {
	if !f.open {
		return 0, storekit.ErrClosed
	}
	if f.body == nil || f.bodyPos != f.pos {
		if f.body != nil {
			f.body.Close()
			f.body = nil
		}
		req, err := http.NewRequestWithContext(f.ctx, http.MethodGet, f.obj.URI, nil)
		if err != nil {
			return 0, err
		}
		if f.pos > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", f.pos))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return 0, storekit.ErrNotExist
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return 0, fmt.Errorf("unexpected status %s", resp.Status)
		}
		// A server ignoring the Range header restarts at zero; skip up
		// to the wanted position.
		if f.pos > 0 && resp.StatusCode == http.StatusOK {
			if _, err := io.CopyN(io.Discard, resp.Body, f.pos); err != nil {
				resp.Body.Close()
				return 0, err
			}
		}
		f.body = resp.Body
		f.bodyPos = f.pos
	}
	n, err := f.body.Read(p)
	f.pos += int64(n)
	f.bodyPos = f.pos
	return n, err
}

func (f *HTTPFile) Write(p []byte) (int, error) {
	return 0, storekit.ErrNotSupported
}

func (f *HTTPFile) Seek(offset int64, whence int) (int64, error) {
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
		size, err := f.Size(f.ctx)
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

func (f *HTTPFile) Close() error {
	f.open = false
	if f.body != nil {
		err := f.body.Close()
		f.body = nil
		return err
	}
	return nil
}

// Exists implements storekit.RawFile: HEAD following redirects, with a
// GET fallback for servers that reject HEAD. Network failures report
// false rather than an error.
func (f *HTTPFile) Exists(ctx context.Context) (bool, error) {
	status, _, err := f.probe(ctx)
	if err != nil {
		return false, nil
	}
	return status < 300, nil
}

// Size implements storekit.RawFile from the Content-Length header.
func (f *HTTPFile) Size(ctx context.Context) (int64, error) {
	status, length, err := f.probe(ctx)
	if err != nil {
		return 0, err
	}
	if status == http.StatusNotFound {
		return 0, storekit.ErrNotExist
	}
	if status >= 300 {
		return 0, fmt.Errorf("unexpected status %d", status)
	}
	if length < 0 {
		return 0, storekit.ErrNotSupported
	}
	return length, nil
}

func (f *HTTPFile) probe(ctx context.Context) (status int, length int64, err error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, rerr := http.NewRequestWithContext(ctx, method, f.obj.URI, nil)
		if rerr != nil {
			return 0, 0, rerr
		}
		resp, derr := f.client.Do(req)
		if derr != nil {
			err = derr
			continue
		}
		resp.Body.Close()
		if method == http.MethodHead && resp.StatusCode >= 400 {
			// Some servers reject HEAD outright; confirm with GET.
			status, length = resp.StatusCode, resp.ContentLength
			continue
		}
		return resp.StatusCode, resp.ContentLength, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return status, length, nil
}

// Delete implements storekit.RawFile.
func (f *HTTPFile) Delete(ctx context.Context) error {
	return storekit.ErrNotSupported
}

// LoadFrom implements storekit.RawFile.
func (f *HTTPFile) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	return 0, storekit.ErrNotSupported
}

// FTPFile is a raw read-only FTP file using anonymous login.
type FTPFile struct {
	obj *storekit.Object

	conn *ftp.ServerConn
	pos  int64
	resp *ftp.Response
}

func (f *FTPFile) dial(ctx context.Context) (*ftp.ServerConn, error) {
	addr := f.obj.Host
	if !strings.Contains(addr, ":") {
		addr += ":21"
	}
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, err
	}
	if err := conn.Login("anonymous", "anonymous"); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

// Open implements storekit.RawFile. Only read modes are accepted.
func (f *FTPFile) Open(ctx context.Context, mode storekit.Mode) error {
	if mode.Writable() {
		return storekit.ErrNotSupported
	}
	if f.conn != nil {
		if err := f.Close(); err != nil {
			return err
		}
	}
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.FileSize(f.obj.Path); err != nil {
		conn.Quit()
		return storekit.ErrNotExist
	}
	f.conn = conn
	f.pos = 0
	return nil
}

func (f *FTPFile) Read(p []byte) (int, error) {
	if f.conn == nil {
		return 0, storekit.ErrClosed
	}
	if f.resp == nil {
		resp, err := f.conn.RetrFrom(f.obj.Path, uint64(f.pos))
		if err != nil {
			return 0, err
		}
		f.resp = resp
	}
	n, err := f.resp.Read(p)
	f.pos += int64(n)
	return n, err
}

func (f *FTPFile) Write(p []byte) (int, error) {
	return 0, storekit.ErrNotSupported
}

func (f *FTPFile) Seek(offset int64, whence int) (int64, error) {
	if f.conn == nil {
		return 0, storekit.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		size, err := f.conn.FileSize(f.obj.Path)
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
	if abs != f.pos && f.resp != nil {
		f.resp.Close()
		f.resp = nil
	}
	f.pos = abs
	return abs, nil
}

func (f *FTPFile) Close() error {
	if f.resp != nil {
		f.resp.Close()
		f.resp = nil
	}
	if f.conn != nil {
		err := f.conn.Quit()
		f.conn = nil
		return err
	}
	return nil
}

// Exists implements storekit.RawFile. Connection failures report false
// rather than an error.
func (f *FTPFile) Exists(ctx context.Context) (bool, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return false, nil
	}
	defer conn.Quit()
	if _, err := conn.FileSize(f.obj.Path); err != nil {
		return false, nil
	}
	return true, nil
}

// Size implements storekit.RawFile.
func (f *FTPFile) Size(ctx context.Context) (int64, error) {
	if f.conn != nil {
		return f.conn.FileSize(f.obj.Path)
	}
	conn, err := f.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Quit()
	size, err := conn.FileSize(f.obj.Path)
	if err != nil {
		return 0, storekit.ErrNotExist
	}
	return size, nil
}

// Delete implements storekit.RawFile.
func (f *FTPFile) Delete(ctx context.Context) error {
	return storekit.ErrNotSupported
}

// LoadFrom implements storekit.RawFile.
func (f *FTPFile) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	return 0, storekit.ErrNotSupported
}
