// Package storage abstracts blob storage for avatars, documents and
// announcement attachments. Providers are selected at boot; all of them
// classify failures with the fault taxonomy and report upload progress
// through a callback.
package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/fault"
)

// File is the payload of one upload: a content stream plus the metadata
// needed for validation and object naming.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// UploadOptions controls where and how an object is written.
type UploadOptions struct {
	Folder    string // optional prefix inside the bucket
	Overwrite bool   // default false: name collisions are a conflict error
	Public    bool   // populate PublicURL on the result
}

// UploadResult describes a stored object.
type UploadResult struct {
	Path      string // key inside the bucket
	FullPath  string // bucket-qualified key
	PublicURL string // only set when uploaded with Public
}

// ObjectInfo is the metadata returned by List.
type ObjectInfo struct {
	Path        string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// ProgressFunc receives upload progress in percent. Implementations call
// it with non-decreasing values and finish at 100 on success.
type ProgressFunc func(percent int)

// Adapter is the blob storage contract. Every method performs remote I/O
// (except PublicURL) and honors context cancellation.
type Adapter interface {
	// Probe checks that the bucket exists and is accessible. A missing
	// bucket is a configuration error, not a transient one.
	Probe(ctx context.Context, bucket string) error

	// Upload writes the file and reports progress. It probes the bucket
	// first so a misconfigured bucket fails fast before any transfer.
	// A failed upload leaves no partial object visible to readers.
	Upload(ctx context.Context, bucket string, file File, opts UploadOptions, onProgress ProgressFunc) (*UploadResult, error)

	// Download reads an object. Absent objects are a not-found error.
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Delete removes an object, reporting whether it existed.
	Delete(ctx context.Context, bucket, path string) (bool, error)

	// List returns up to limit objects under folder.
	List(ctx context.Context, bucket, folder string, limit int) ([]ObjectInfo, error)

	// PublicURL returns the stable URL of a public object. No I/O.
	PublicURL(bucket, path string) string

	// SignedURL returns a time-boxed download URL. Callers must not
	// cache it beyond expires.
	SignedURL(ctx context.Context, bucket, path string, expires time.Duration) (string, error)
}

// Validate checks a file against a bucket's constraints. It never
// performs I/O; rejections are validation errors with user-facing text.
func Validate(file File, spec config.BucketSpec) error {
	if file.Size > spec.MaxSizeBytes {
		return fault.New(fault.Validation,
			"file %s is too large (%d bytes, limit %d)", file.Name, file.Size, spec.MaxSizeBytes)
	}
	if len(spec.AllowedTypes) == 0 {
		return nil
	}
	for _, pattern := range spec.AllowedTypes {
		if typeMatches(file.ContentType, pattern) {
			return nil
		}
	}
	return fault.New(fault.Validation,
		"file %s has unsupported type %q", file.Name, file.ContentType)
}

// typeMatches reports whether a MIME type satisfies an allow-list
// pattern: exact match, or wildcard prefix such as image/*.
func typeMatches(contentType, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(contentType, prefix+"/")
	}
	return contentType == pattern
}

// NewAdapter builds the configured provider.
func NewAdapter(ctx context.Context, cfg config.StorageConfig) (Adapter, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		return NewLocalAdapter(cfg.LocalDir), nil
	case config.ProviderS3:
		return NewS3Adapter(ctx, cfg.S3)
	case config.ProviderGCS:
		return NewGCSAdapter(ctx, cfg.GCS)
	default:
		return nil, fault.New(fault.Configuration, "unknown storage provider %q", cfg.Provider)
	}
}

// progressReader wraps a content stream and reports percent read.
// Reported values never decrease and are capped at 99; providers report
// the final 100 themselves once the write is fully committed.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, progress: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.progress != nil && p.total > 0 {
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.progress(pct)
		}
	}
	return n, err
}

func finishProgress(fn ProgressFunc) {
	if fn != nil {
		fn(100)
	}
}
