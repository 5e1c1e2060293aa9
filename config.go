package storekit

import (
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// S3 backend configuration
	S3Region          string `env:"STOREKIT_S3_REGION,default:us-east-1"`
	S3Endpoint        string `env:"STOREKIT_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"STOREKIT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"STOREKIT_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"STOREKIT_S3_FORCE_PATH_STYLE,default:false"`

	// SFTP backend configuration. The host from the URI wins when set;
	// these provide the fallback and the credentials.
	SFTPHost       string `env:"STOREKIT_SFTP_HOST"`
	SFTPPort       int    `env:"STOREKIT_SFTP_PORT,default:22"`
	SFTPUsername   string `env:"STOREKIT_SFTP_USERNAME"`
	SFTPPassword   string `env:"STOREKIT_SFTP_PASSWORD"`
	SFTPPrivateKey string `env:"STOREKIT_SFTP_PRIVATE_KEY"` // Path to private key file

	// CacheTTLSeconds bounds the staleness of cached backend clients and
	// bucket handles.
	CacheTTLSeconds int `env:"STOREKIT_CACHE_TTL_SECONDS,default:1200"`

	// BatchSize caps the number of objects per bulk delete/copy call.
	BatchSize int `env:"STOREKIT_BATCH_SIZE,default:900"`

	// ChunkSize is the chunk size for bulk stream copies.
	ChunkSize int `env:"STOREKIT_CHUNK_SIZE,default:1048576"`

	// BufferSize is the buffered I/O size for remote backends. Local
	// files use the filesystem block size instead.
	BufferSize int `env:"STOREKIT_BUFFER_SIZE,default:262144"`

	// Retry policy for transient backend errors (server-side 5xx).
	RetryMax             int    `env:"STOREKIT_RETRY_MAX,default:3"`
	RetryIntervalSeconds int    `env:"STOREKIT_RETRY_INTERVAL_SECONDS,default:60"`
	RetryPattern         string `env:"STOREKIT_RETRY_PATTERN,default:linear"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	cfg.withDefaults()
	return cfg, nil
}

// withDefaults fills zero values so a hand-built Config behaves like an
// env-loaded one.
func (c *Config) withDefaults() {
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 1200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256 << 10
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.RetryIntervalSeconds <= 0 {
		c.RetryIntervalSeconds = 60
	}
	if c.RetryPattern == "" {
		c.RetryPattern = "linear"
	}
	if c.SFTPPort <= 0 {
		c.SFTPPort = 22
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
}

// CacheTTL returns the client cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RetryInterval returns the base retry interval as a duration.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}
