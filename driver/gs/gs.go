// Package gs implements the "gs" scheme on Google Cloud Storage.
// Importing it registers the driver.
package gs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/gobeaver/storekit"
	"github.com/gobeaver/storekit/driver/cloud"
	"github.com/gobeaver/storekit/retry"
)

func init() {
	storekit.RegisterDriver("gs", New)
}

// Driver creates raw GCS files and prefixes. The storage client is
// created once per process through the client cache.
type Driver struct {
	env    *storekit.Env
	policy retry.Policy
}

// New creates the GCS driver.
func New(env *storekit.Env) (storekit.Driver, error) {
	cfg := env.Config
	return &Driver{
		env: env,
		policy: retry.Policy{
			MaxRetries:   cfg.RetryMax,
			BaseInterval: cfg.RetryInterval(),
			Pattern:      cfg.RetryPattern,
			Retryable:    isServerError,
		},
	}, nil
}

func (d *Driver) client() (*storage.Client, error) {
	v, err := d.env.Clients.GetOrCreate("gs", func() (any, error) {
		return storage.NewClient(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return v.(*storage.Client), nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}
	handle := client.Bucket(obj.Host).Object(obj.Key())
	api := &objectAPI{handle: handle, policy: d.policy}
	return &File{
		File:   cloud.NewFile(obj, api, d.env.Config.ChunkSize),
		client: client,
		handle: handle,
		api:    api,
	}, nil
}

// OpenPrefix implements storekit.Driver.
func (d *Driver) OpenPrefix(obj *storekit.Object) (storekit.RawPrefix, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}
	return &Prefix{
		client:    client,
		bucket:    obj.Host,
		key:       obj.Key(),
		uri:       obj.URI,
		batchSize: d.env.Config.BatchSize,
		policy:    d.policy,
	}, nil
}

// isServerError reports whether err is a GCS server-side failure worth
// retrying.
func isServerError(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code >= 500
}

// objectAPI implements cloud.ObjectAPI over a GCS object handle.
// Server-side failures are retried per the driver policy.
type objectAPI struct {
	handle *storage.ObjectHandle
	policy retry.Policy
}

func (a *objectAPI) attrs(ctx context.Context) (*storage.ObjectAttrs, error) {
	var attrs *storage.ObjectAttrs
	err := retry.Do(ctx, a.policy, func() error {
		var err error
		attrs, err = a.handle.Attrs(ctx)
		return err
	})
	return attrs, err
}

func (a *objectAPI) Exists(ctx context.Context) (bool, error) {
	_, err := a.attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *objectAPI) Size(ctx context.Context) (int64, error) {
	attrs, err := a.attrs(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	return attrs.Size, nil
}

func (a *objectAPI) Delete(ctx context.Context) error {
	err := retry.Do(ctx, a.policy, func() error {
		return a.handle.Delete(ctx)
	})
	return mapError(err)
}

func (a *objectAPI) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	var r *storage.Reader
	err := retry.Do(ctx, a.policy, func() error {
		var err error
		r, err = a.handle.NewRangeReader(ctx, offset, length)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (a *objectAPI) Upload(ctx context.Context, r io.Reader) (int64, error) {
	w := a.handle.NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// File is a raw GCS file: the staging adapter plus GCS-native copy and
// checksum support.
type File struct {
	*cloud.File
	client *storage.Client
	handle *storage.ObjectHandle
	api    *objectAPI
}

// CopyTo implements storekit.CanCopyFile with a server-side copy.
func (f *File) CopyTo(ctx context.Context, dest *storekit.Object) error {
	if dest.Scheme != "gs" {
		return storekit.ErrNotSupported
	}
	dst := f.client.Bucket(dest.Host).Object(dest.Key())
	err := retry.Do(ctx, f.api.policy, func() error {
		_, err := dst.CopierFrom(f.handle).Run(ctx)
		return err
	})
	return mapError(err)
}

// MD5Hex implements storekit.CanMD5 from the object attributes. Composite
// objects carry no MD5.
func (f *File) MD5Hex(ctx context.Context) (string, error) {
	attrs, err := f.api.attrs(ctx)
	if err != nil {
		return "", mapError(err)
	}
	if len(attrs.MD5) == 0 {
		return "", storekit.ErrNotSupported
	}
	return hex.EncodeToString(attrs.MD5), nil
}

// Prefix is a raw GCS key prefix.
type Prefix struct {
	client    *storage.Client
	bucket    string
	key       string
	uri       string
	batchSize int
	policy    retry.Policy
}

// Exists implements storekit.RawPrefix. The root of a bucket exists when
// the bucket does.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	if p.key == "" || p.key == "/" {
		_, err := p.client.Bucket(p.bucket).Attrs(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrBucketNotExist) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.key})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Objects implements storekit.RawPrefix.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	var uris []string
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.key})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return uris, nil
		}
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(attrs.Name, "/") {
			// Folder placeholder objects are not content.
			continue
		}
		uris = append(uris, p.objectURI(attrs.Name))
	}
}

// Files implements storekit.RawPrefix using a delimited listing.
func (p *Prefix) Files(ctx context.Context) ([]string, error) {
	files, _, err := p.shallow(ctx)
	return files, err
}

// Folders implements storekit.RawPrefix using a delimited listing.
func (p *Prefix) Folders(ctx context.Context) ([]string, error) {
	_, folders, err := p.shallow(ctx)
	return folders, err
}

func (p *Prefix) shallow(ctx context.Context) (files, folders []string, err error) {
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{
		Prefix:    p.key,
		Delimiter: "/",
	})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return files, folders, nil
		}
		if err != nil {
			return nil, nil, err
		}
		switch {
		case attrs.Prefix != "":
			folders = append(folders, p.objectURI(attrs.Prefix))
		case attrs.Name != p.key:
			files = append(files, p.objectURI(attrs.Name))
		}
	}
}

// DeleteAll implements storekit.RawPrefix, deleting in bounded batches.
func (p *Prefix) DeleteAll(ctx context.Context) (int, error) {
	batcher := storekit.NewBatcher(p.batchSize, func(ctx context.Context, batch []string) (int, error) {
		for i, key := range batch {
			handle := p.client.Bucket(p.bucket).Object(key)
			err := retry.Do(ctx, p.policy, func() error {
				return handle.Delete(ctx)
			})
			if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
				return i, err
			}
		}
		slog.Debug("deleted object batch", "bucket", p.bucket, "count", len(batch))
		return len(batch), nil
	})

	var deleted int
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.key})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return deleted, err
		}
		n, err := batcher.Add(ctx, attrs.Name)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	n, err := batcher.Flush(ctx)
	deleted += n
	return deleted, err
}

// Create implements storekit.RawPrefix by writing a zero-byte folder
// placeholder. The root of a bucket needs none.
func (p *Prefix) Create(ctx context.Context) error {
	if p.key == "" || p.key == "/" {
		return nil
	}
	key := p.key
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	return w.Close()
}

// CopyAll implements storekit.CanCopyPrefix with server-side copies, in
// bounded batches.
func (p *Prefix) CopyAll(ctx context.Context, dest *storekit.Object) (int, error) {
	if dest.Scheme != "gs" {
		return 0, storekit.ErrNotSupported
	}
	destBucket := p.client.Bucket(dest.Host)
	destKey := dest.Key()

	batcher := storekit.NewBatcher(p.batchSize, func(ctx context.Context, batch []string) (int, error) {
		for i, key := range batch {
			src := p.client.Bucket(p.bucket).Object(key)
			dst := destBucket.Object(destKey + strings.TrimPrefix(key, p.key))
			err := retry.Do(ctx, p.policy, func() error {
				_, err := dst.CopierFrom(src).Run(ctx)
				return err
			})
			if err != nil {
				return i, err
			}
		}
		return len(batch), nil
	})

	var copied int
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.key})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return copied, err
		}
		n, err := batcher.Add(ctx, attrs.Name)
		copied += n
		if err != nil {
			return copied, err
		}
	}
	n, err := batcher.Flush(ctx)
	copied += n
	return copied, err
}

func (p *Prefix) objectURI(key string) string {
	return fmt.Sprintf("gs://%s/%s", p.bucket, key)
}

func mapError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return storekit.ErrNotExist
	}
	return err
}
