package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/classhub/classhub/pkg/fault"
)

// LocalAdapter implements Adapter on the local filesystem.
// Useful for development and testing. Buckets are directories under
// BaseDir and must exist before use, mirroring the remote providers.
type LocalAdapter struct {
	BaseDir string
}

// NewLocalAdapter creates a LocalAdapter rooted at the given directory.
func NewLocalAdapter(baseDir string) *LocalAdapter {
	return &LocalAdapter{BaseDir: baseDir}
}

// CreateBucket makes a bucket directory. Provisioning helper; the
// Adapter contract itself never creates buckets.
func (a *LocalAdapter) CreateBucket(name string) error {
	return os.MkdirAll(filepath.Join(a.BaseDir, name), 0o755)
}

func (a *LocalAdapter) objectPath(bucket, path string) string {
	return filepath.Join(a.BaseDir, bucket, filepath.FromSlash(path))
}

// Probe checks that the bucket directory exists.
func (a *LocalAdapter) Probe(ctx context.Context, bucket string) error {
	fi, err := os.Stat(filepath.Join(a.BaseDir, bucket))
	if err != nil || !fi.IsDir() {
		return fault.New(fault.Configuration, "bucket %s does not exist", bucket)
	}
	return nil
}

// Upload writes the file under bucket/folder/name. The object becomes
// visible only after the write completes in full.
func (a *LocalAdapter) Upload(ctx context.Context, bucket string, file File, opts UploadOptions, onProgress ProgressFunc) (*UploadResult, error) {
	if err := a.Probe(ctx, bucket); err != nil {
		return nil, err
	}

	key := objectKey(opts.Folder, file.Name)
	dst := a.objectPath(bucket, key)

	if !opts.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return nil, fault.New(fault.Conflict, "object %s already exists in %s", key, bucket)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "create folder for %s", key)
	}

	// Write to a temp file and rename so readers never see a partial
	// object.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fault.Wrap(fault.Transport, err, "create temp for %s", key)
	}
	defer os.Remove(tmp.Name())

	pr := newProgressReader(file.Content, file.Size, onProgress)
	if err := copyChunked(ctx, tmp, pr); err != nil {
		tmp.Close()
		return nil, fault.Wrap(fault.Transport, err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "close %s", key)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "commit %s", key)
	}
	finishProgress(onProgress)

	res := &UploadResult{Path: key, FullPath: bucket + "/" + key}
	if opts.Public {
		res.PublicURL = a.PublicURL(bucket, key)
	}
	return res, nil
}

// copyChunked copies in fixed-size chunks, checking for cancellation
// between chunks so an abandoned upload stops promptly.
func copyChunked(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 256<<10)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Download reads an object.
func (a *LocalAdapter) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	data, err := os.ReadFile(a.objectPath(bucket, path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.New(fault.NotFound, "object %s not found in %s", path, bucket)
		}
		return nil, fault.Wrap(fault.Transport, err, "read %s", path)
	}
	return data, nil
}

// Delete removes an object, reporting whether it existed.
func (a *LocalAdapter) Delete(ctx context.Context, bucket, path string) (bool, error) {
	err := os.Remove(a.objectPath(bucket, path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fault.Wrap(fault.Transport, err, "delete %s", path)
	}
	return true, nil
}

// List returns up to limit objects under folder, sorted by key.
func (a *LocalAdapter) List(ctx context.Context, bucket, folder string, limit int) ([]ObjectInfo, error) {
	if err := a.Probe(ctx, bucket); err != nil {
		return nil, err
	}

	root := filepath.Join(a.BaseDir, bucket)
	prefix := strings.Trim(folder, "/")

	var infos []ObjectInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix+"/") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, ObjectInfo{Path: key, Size: fi.Size(), UpdatedAt: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.Transport, err, "list %s", bucket)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// PublicURL returns a file:// URL for a local object.
func (a *LocalAdapter) PublicURL(bucket, path string) string {
	return "file://" + filepath.ToSlash(a.objectPath(bucket, path))
}

// SignedURL returns the object URL with an expiry marker. Local storage
// has no signing; the expiry is advisory only.
func (a *LocalAdapter) SignedURL(ctx context.Context, bucket, path string, expires time.Duration) (string, error) {
	if _, err := os.Stat(a.objectPath(bucket, path)); err != nil {
		return "", fault.New(fault.NotFound, "object %s not found in %s", path, bucket)
	}
	exp := time.Now().Add(expires).Unix()
	return fmt.Sprintf("%s?expires=%d", a.PublicURL(bucket, path), exp), nil
}

// objectKey joins an optional folder and file name into an object key.
func objectKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
