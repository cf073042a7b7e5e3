package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/fault"
)

// S3Adapter implements Adapter using AWS S3 (or S3-compatible stores
// like MinIO when an endpoint is configured).
type S3Adapter struct {
	client   *s3.Client
	presign  *s3.PresignClient
	region   string
	endpoint string
}

// NewS3Adapter creates an S3-backed Adapter.
func NewS3Adapter(ctx context.Context, cfg config.S3Config) (*S3Adapter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Adapter{
		client:   client,
		presign:  s3.NewPresignClient(client),
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
	}, nil
}

// classifyS3 maps an S3 SDK error onto the fault taxonomy.
func classifyS3(err error, what string) error {
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fault.Wrap(fault.Configuration, err, "bucket for %s does not exist", what)
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return fault.Wrap(fault.NotFound, err, "%s not found", what)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return fault.Wrap(fault.Configuration, err, "bucket for %s does not exist", what)
		case "NoSuchKey", "NotFound":
			return fault.Wrap(fault.NotFound, err, "%s not found", what)
		case "AccessDenied", "Forbidden":
			return fault.Wrap(fault.Authorization, err, "access denied for %s", what)
		}
	}
	return fault.Wrap(fault.Transport, err, "s3 %s", what)
}

// Probe checks bucket existence and accessibility via HeadBucket.
func (a *S3Adapter) Probe(ctx context.Context, bucket string) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchBucket") {
			return fault.Wrap(fault.Configuration, err, "bucket %s does not exist", bucket)
		}
		return classifyS3(err, "bucket "+bucket)
	}
	return nil
}

func (a *S3Adapter) exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return false, nil
		}
		return false, classifyS3(err, "object "+key)
	}
	return true, nil
}

// Upload writes the object with progress reporting. S3 puts are atomic,
// but a failed put is still double-checked so no partial object survives.
func (a *S3Adapter) Upload(ctx context.Context, bucket string, file File, opts UploadOptions, onProgress ProgressFunc) (*UploadResult, error) {
	if err := a.Probe(ctx, bucket); err != nil {
		return nil, err
	}

	key := objectKey(opts.Folder, file.Name)
	if !opts.Overwrite {
		found, err := a.exists(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, fault.New(fault.Conflict, "object %s already exists in %s", key, bucket)
		}
	}

	pr := newProgressReader(file.Content, file.Size, onProgress)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          pr,
		ContentLength: aws.Int64(file.Size),
		ContentType:   aws.String(file.ContentType),
	})
	if err != nil {
		a.cleanupPartial(ctx, bucket, key)
		return nil, classifyS3(err, "upload "+key)
	}
	finishProgress(onProgress)

	res := &UploadResult{Path: key, FullPath: bucket + "/" + key}
	if opts.Public {
		res.PublicURL = a.PublicURL(bucket, key)
	}
	return res, nil
}

// cleanupPartial removes any object left visible by a failed put.
func (a *S3Adapter) cleanupPartial(ctx context.Context, bucket, key string) {
	found, err := a.exists(ctx, bucket, key)
	if err != nil || !found {
		return
	}
	_, _ = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

// Download reads an object.
func (a *S3Adapter) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, classifyS3(err, "object "+path)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "read object %s", path)
	}
	return buf.Bytes(), nil
}

// Delete removes an object, reporting whether it existed.
func (a *S3Adapter) Delete(ctx context.Context, bucket, path string) (bool, error) {
	found, err := a.exists(ctx, bucket, path)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return false, classifyS3(err, "delete "+path)
	}
	return true, nil
}

// List returns up to limit objects under folder.
func (a *S3Adapter) List(ctx context.Context, bucket, folder string, limit int) ([]ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if folder != "" {
		in.Prefix = aws.String(strings.Trim(folder, "/") + "/")
	}
	if limit > 0 && limit <= 1000 {
		in.MaxKeys = aws.Int32(int32(limit))
	}

	out, err := a.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, classifyS3(err, "list "+bucket)
	}

	var infos []ObjectInfo
	for _, obj := range out.Contents {
		if limit > 0 && len(infos) >= limit {
			break
		}
		info := ObjectInfo{Path: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			info.UpdatedAt = *obj.LastModified
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PublicURL returns the stable URL of a public object.
func (a *S3Adapter) PublicURL(bucket, path string) string {
	if a.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.endpoint, "/"), bucket, path)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, a.region, path)
}

// SignedURL returns a presigned GET valid for the given duration.
func (a *S3Adapter) SignedURL(ctx context.Context, bucket, path string, expires time.Duration) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", classifyS3(err, "sign "+path)
	}
	return req.URL, nil
}
