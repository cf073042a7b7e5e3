package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/fault"
)

// GCSAdapter implements Adapter using Google Cloud Storage.
type GCSAdapter struct {
	client      *gcs.Client
	signerEmail string
}

// NewGCSAdapter creates a GCS-backed Adapter.
// It uses Application Default Credentials (works with Workload Identity,
// SA keys, gcloud auth).
func NewGCSAdapter(ctx context.Context, cfg config.GCSConfig) (*GCSAdapter, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSAdapter{client: client, signerEmail: cfg.SignerEmail}, nil
}

// classifyGCS maps a GCS SDK error onto the fault taxonomy.
func classifyGCS(err error, what string) error {
	switch {
	case errors.Is(err, gcs.ErrBucketNotExist):
		return fault.Wrap(fault.Configuration, err, "bucket for %s does not exist", what)
	case errors.Is(err, gcs.ErrObjectNotExist):
		return fault.Wrap(fault.NotFound, err, "%s not found", what)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fault.Wrap(fault.NotFound, err, "%s not found", what)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fault.Wrap(fault.Authorization, err, "access denied for %s", what)
		case http.StatusPreconditionFailed:
			return fault.Wrap(fault.Conflict, err, "%s already exists", what)
		}
	}
	return fault.Wrap(fault.Transport, err, "gcs %s", what)
}

// Probe checks bucket existence and accessibility.
func (a *GCSAdapter) Probe(ctx context.Context, bucket string) error {
	_, err := a.client.Bucket(bucket).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return fault.Wrap(fault.Configuration, err, "bucket %s does not exist", bucket)
		}
		return classifyGCS(err, "bucket "+bucket)
	}
	return nil
}

// Upload writes the object with progress reporting. The no-overwrite
// policy is enforced server-side with a DoesNotExist precondition, so a
// collision surfaces as a conflict without a prior round trip.
func (a *GCSAdapter) Upload(ctx context.Context, bucket string, file File, opts UploadOptions, onProgress ProgressFunc) (*UploadResult, error) {
	if err := a.Probe(ctx, bucket); err != nil {
		return nil, err
	}

	key := objectKey(opts.Folder, file.Name)
	obj := a.client.Bucket(bucket).Object(key)
	if !opts.Overwrite {
		obj = obj.If(gcs.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = file.ContentType

	pr := newProgressReader(file.Content, file.Size, onProgress)
	if _, err := io.Copy(w, pr); err != nil {
		w.Close()
		a.cleanupPartial(ctx, bucket, key, opts.Overwrite)
		return nil, classifyGCS(err, "upload "+key)
	}
	// GCS commits the object on Close; nothing is visible before then.
	if err := w.Close(); err != nil {
		a.cleanupPartial(ctx, bucket, key, opts.Overwrite)
		return nil, classifyGCS(err, "upload "+key)
	}
	finishProgress(onProgress)

	res := &UploadResult{Path: key, FullPath: bucket + "/" + key}
	if opts.Public {
		res.PublicURL = a.PublicURL(bucket, key)
	}
	return res, nil
}

// cleanupPartial removes an object left visible by a failed upload.
// With the DoesNotExist precondition a failed write cannot have replaced
// an existing object, so deletion is safe.
func (a *GCSAdapter) cleanupPartial(ctx context.Context, bucket, key string, overwrote bool) {
	if overwrote {
		return
	}
	_ = a.client.Bucket(bucket).Object(key).Delete(ctx)
}

// Download reads an object.
func (a *GCSAdapter) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	r, err := a.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, classifyGCS(err, "object "+path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fault.Wrap(fault.Transport, err, "read object %s", path)
	}
	return data, nil
}

// Delete removes an object, reporting whether it existed.
func (a *GCSAdapter) Delete(ctx context.Context, bucket, path string) (bool, error) {
	err := a.client.Bucket(bucket).Object(path).Delete(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, classifyGCS(err, "delete "+path)
	}
	return true, nil
}

// List returns up to limit objects under folder.
func (a *GCSAdapter) List(ctx context.Context, bucket, folder string, limit int) ([]ObjectInfo, error) {
	q := &gcs.Query{}
	if folder != "" {
		q.Prefix = strings.Trim(folder, "/") + "/"
	}

	it := a.client.Bucket(bucket).Objects(ctx, q)
	var infos []ObjectInfo
	for limit <= 0 || len(infos) < limit {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyGCS(err, "list "+bucket)
		}
		infos = append(infos, ObjectInfo{
			Path:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			UpdatedAt:   attrs.Updated,
		})
	}
	return infos, nil
}

// PublicURL returns the stable URL of a public object.
func (a *GCSAdapter) PublicURL(bucket, path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, path)
}

// SignedURL returns a V4 signed GET valid for the given duration.
func (a *GCSAdapter) SignedURL(ctx context.Context, bucket, path string, expires time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expires),
	}
	if a.signerEmail != "" {
		opts.GoogleAccessID = a.signerEmail
	}
	url, err := a.client.Bucket(bucket).SignedURL(path, opts)
	if err != nil {
		return "", classifyGCS(err, "sign "+path)
	}
	return url, nil
}
