// Package s3 implements the "s3" scheme on Amazon S3 and S3-compatible
// stores. Importing it registers the driver.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gobeaver/storekit"
	"github.com/gobeaver/storekit/driver/cloud"
	"github.com/gobeaver/storekit/retry"
)

func init() {
	storekit.RegisterDriver("s3", New)
}

// Driver creates raw S3 files and prefixes. The S3 client is created
// once per process through the client cache.
type Driver struct {
	env    *storekit.Env
	policy retry.Policy
}

// New creates the S3 driver.
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

func (d *Driver) client() (*s3.Client, error) {
	v, err := d.env.Clients.GetOrCreate("s3", func() (any, error) {
		return newClient(d.env.Config)
	})
	if err != nil {
		return nil, err
	}
	return v.(*s3.Client), nil
}

// newClient builds the S3 client from configuration, falling back to the
// default AWS credential chain when no static keys are configured.
func newClient(cfg *storekit.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	}), nil
}

// OpenFile implements storekit.Driver.
func (d *Driver) OpenFile(obj *storekit.Object) (storekit.RawFile, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}
	api := &objectAPI{
		client: client,
		bucket: obj.Host,
		key:    obj.Key(),
		policy: d.policy,
	}
	return &File{
		File: cloud.NewFile(obj, api, d.env.Config.ChunkSize),
		api:  api,
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
		batchSize: d.env.Config.BatchSize,
		policy:    d.policy,
	}, nil
}

// isServerError reports whether err is an S3 server-side failure worth
// retrying.
func isServerError(err error) bool {
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() >= 500
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}

// isNotFound reports whether err is a missing-key or missing-bucket
// response.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nf)
}

// objectAPI implements cloud.ObjectAPI over one S3 key.
type objectAPI struct {
	client *s3.Client
	bucket string
	key    string
	policy retry.Policy
}

func (a *objectAPI) head(ctx context.Context) (*s3.HeadObjectOutput, error) {
	var out *s3.HeadObjectOutput
	err := retry.Do(ctx, a.policy, func() error {
		var err error
		out, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.key),
		})
		return err
	})
	return out, err
}

func (a *objectAPI) Exists(ctx context.Context) (bool, error) {
	_, err := a.head(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *objectAPI) Size(ctx context.Context) (int64, error) {
	out, err := a.head(ctx)
	if err != nil {
		if isNotFound(err) {
			return 0, storekit.ErrNotExist
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Delete heads first: DeleteObject succeeds on missing keys, which would
// hide the error callers rely on.
func (a *objectAPI) Delete(ctx context.Context) error {
	if _, err := a.head(ctx); err != nil {
		if isNotFound(err) {
			return storekit.ErrNotExist
		}
		return err
	}
	return retry.Do(ctx, a.policy, func() error {
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.key),
		})
		return err
	})
}

func (a *objectAPI) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	rng := fmt.Sprintf("bytes=%d-", offset)
	if length >= 0 {
		rng = fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	}
	var out *s3.GetObjectOutput
	err := retry.Do(ctx, a.policy, func() error {
		var err error
		out, err = a.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.key),
			Range:  aws.String(rng),
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storekit.ErrNotExist
		}
		return nil, err
	}
	return out.Body, nil
}

func (a *objectAPI) Upload(ctx context.Context, r io.Reader) (int64, error) {
	counting := &countingReader{r: r}
	uploader := manager.NewUploader(a.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key),
		Body:   counting,
	})
	return counting.n, err
}

// File is a raw S3 file: the staging adapter plus S3-native copy and
// checksum support.
type File struct {
	*cloud.File
	api *objectAPI
}

// CopyTo implements storekit.CanCopyFile with a server-side copy.
func (f *File) CopyTo(ctx context.Context, dest *storekit.Object) error {
	if dest.Scheme != "s3" {
		return storekit.ErrNotSupported
	}
	err := retry.Do(ctx, f.api.policy, func() error {
		_, err := f.api.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(dest.Host),
			Key:        aws.String(dest.Key()),
			CopySource: aws.String(f.api.bucket + "/" + f.api.key),
		})
		return err
	})
	if isNotFound(err) {
		return storekit.ErrNotExist
	}
	return err
}

// MD5Hex implements storekit.CanMD5 from the object ETag. Multipart
// uploads carry a composite ETag, not an MD5.
func (f *File) MD5Hex(ctx context.Context) (string, error) {
	out, err := f.api.head(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", storekit.ErrNotExist
		}
		return "", err
	}
	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	if strings.Contains(etag, "-") || len(etag) != 32 {
		return "", storekit.ErrNotSupported
	}
	return etag, nil
}

// Prefix is a raw S3 key prefix.
type Prefix struct {
	client    *s3.Client
	bucket    string
	key       string
	batchSize int
	policy    retry.Policy
}

// Exists implements storekit.RawPrefix. The root of a bucket exists when
// the bucket does.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	if p.key == "" || p.key == "/" {
		_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return aws.ToInt32(out.KeyCount) > 0, nil
}

// Objects implements storekit.RawPrefix.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	var uris []string
	err := p.walk(ctx, nil, func(key string) {
		uris = append(uris, p.objectURI(key))
	}, nil)
	return uris, err
}

// Files implements storekit.RawPrefix using a delimited listing.
func (p *Prefix) Files(ctx context.Context) ([]string, error) {
	var uris []string
	delim := "/"
	err := p.walk(ctx, &delim, func(key string) {
		uris = append(uris, p.objectURI(key))
	}, nil)
	return uris, err
}

// Folders implements storekit.RawPrefix using a delimited listing.
func (p *Prefix) Folders(ctx context.Context) ([]string, error) {
	var uris []string
	delim := "/"
	err := p.walk(ctx, &delim, nil, func(prefix string) {
		uris = append(uris, p.objectURI(prefix))
	})
	return uris, err
}

// walk pages through the listing, invoking onKey for object keys and
// onPrefix for common prefixes. Folder placeholder objects are skipped.
func (p *Prefix) walk(ctx context.Context, delimiter *string, onKey, onPrefix func(string)) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.key),
	}
	if delimiter != nil {
		input.Delimiter = delimiter
	}
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if onKey != nil {
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if strings.HasSuffix(key, "/") {
					continue
				}
				onKey(key)
			}
		}
		if onPrefix != nil {
			for _, cp := range page.CommonPrefixes {
				onPrefix(aws.ToString(cp.Prefix))
			}
		}
	}
	return nil
}

// DeleteAll implements storekit.RawPrefix with batched DeleteObjects
// calls.
func (p *Prefix) DeleteAll(ctx context.Context) (int, error) {
	batcher := storekit.NewBatcher(p.batchSize, func(ctx context.Context, batch []string) (int, error) {
		ids := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			ids[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		err := retry.Do(ctx, p.policy, func() error {
			_, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(p.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			return err
		})
		if err != nil {
			return 0, err
		}
		slog.Debug("deleted object batch", "bucket", p.bucket, "count", len(batch))
		return len(batch), nil
	})

	var deleted int
	err := p.collect(ctx, func(key string) error {
		n, err := batcher.Add(ctx, key)
		deleted += n
		return err
	})
	if err != nil {
		return deleted, err
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
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	})
	return err
}

// CopyAll implements storekit.CanCopyPrefix with server-side copies, in
// bounded batches.
func (p *Prefix) CopyAll(ctx context.Context, dest *storekit.Object) (int, error) {
	if dest.Scheme != "s3" {
		return 0, storekit.ErrNotSupported
	}
	destKey := dest.Key()

	batcher := storekit.NewBatcher(p.batchSize, func(ctx context.Context, batch []string) (int, error) {
		for i, key := range batch {
			err := retry.Do(ctx, p.policy, func() error {
				_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
					Bucket:     aws.String(dest.Host),
					Key:        aws.String(destKey + strings.TrimPrefix(key, p.key)),
					CopySource: aws.String(p.bucket + "/" + key),
				})
				return err
			})
			if err != nil {
				return i, err
			}
		}
		return len(batch), nil
	})

	var copied int
	err := p.collect(ctx, func(key string) error {
		n, err := batcher.Add(ctx, key)
		copied += n
		return err
	})
	if err != nil {
		return copied, err
	}
	n, err := batcher.Flush(ctx)
	copied += n
	return copied, err
}

// collect walks every object key under the prefix, placeholders
// included, so bulk operations cover them too.
func (p *Prefix) collect(ctx context.Context, fn func(string) error) error {
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.key),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if err := fn(aws.ToString(obj.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Prefix) objectURI(key string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, key)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
