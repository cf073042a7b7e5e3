// Package config handles loading and managing Classhub configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names for Config.Backend. Exactly one backend is active for
// the lifetime of the process; switching requires a restart.
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Storage provider names for StorageConfig.Provider.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
)

// Config is the top-level configuration for Classhub.
type Config struct {
	Backend  string         `yaml:"backend"` // postgres | rest
	Database DatabaseConfig `yaml:"database"`
	REST     RESTConfig     `yaml:"rest"`
	Storage  StorageConfig  `yaml:"storage"`
}

// DatabaseConfig controls the Postgres backend client.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RESTConfig controls the REST backend client.
type RESTConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// StorageConfig controls the blob storage adapter.
type StorageConfig struct {
	Provider string       `yaml:"provider"` // local | s3 | gcs
	LocalDir string       `yaml:"local_dir"`
	S3       S3Config     `yaml:"s3"`
	GCS      GCSConfig    `yaml:"gcs"`
	Buckets  []BucketSpec `yaml:"buckets"`
}

// S3Config holds credentials and endpoint for the S3 provider.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // set for S3-compatible stores like MinIO
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// GCSConfig holds settings for the GCS provider. Credentials come from
// Application Default Credentials.
type GCSConfig struct {
	SignerEmail string `yaml:"signer_email"`
}

// BucketSpec describes one logical bucket and its client-side upload
// constraints. Constraints are enforced before any network call.
type BucketSpec struct {
	Name         string   `yaml:"name"`
	Public       bool     `yaml:"public"`
	MaxSizeBytes int64    `yaml:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_types"` // exact or wildcard prefix, e.g. image/*
}

// Well-known logical bucket names.
const (
	BucketAvatars     = "avatars"
	BucketDocuments   = "documents"
	BucketAttachments = "attachments"
)

// DefaultConfig returns a Config with sensible defaults: the Postgres
// backend, local blob storage, and the three standard buckets.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendPostgres,
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/classhub?sslmode=disable",
		},
		REST: RESTConfig{
			BaseURL: "http://localhost:8080",
		},
		Storage: StorageConfig{
			Provider: ProviderLocal,
			LocalDir: "/tmp/classhub-blobs",
			Buckets: []BucketSpec{
				{
					Name:         BucketAvatars,
					Public:       true,
					MaxSizeBytes: 5 << 20,
					AllowedTypes: []string{"image/*"},
				},
				{
					Name:         BucketDocuments,
					MaxSizeBytes: 50 << 20,
					AllowedTypes: []string{
						"application/pdf",
						"application/msword",
						"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
						"application/vnd.ms-excel",
						"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
						"text/*",
					},
				},
				{
					Name:         BucketAttachments,
					MaxSizeBytes: 20 << 20,
					AllowedTypes: []string{"image/*", "application/pdf"},
				},
			},
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the parts of the config that would otherwise fail deep
// inside a request.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPostgres, BackendREST:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendPostgres, BackendREST)
	}
	switch c.Storage.Provider {
	case ProviderLocal, ProviderS3, ProviderGCS:
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	seen := make(map[string]bool)
	for _, b := range c.Storage.Buckets {
		if b.Name == "" {
			return fmt.Errorf("bucket with empty name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate bucket %q", b.Name)
		}
		seen[b.Name] = true
		if b.MaxSizeBytes <= 0 {
			return fmt.Errorf("bucket %q: max_size_bytes must be positive", b.Name)
		}
	}
	return nil
}

// Bucket looks up a bucket spec by logical name.
func (c *Config) Bucket(name string) (BucketSpec, bool) {
	for _, b := range c.Storage.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return BucketSpec{}, false
}
