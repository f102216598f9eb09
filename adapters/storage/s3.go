package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
)

// S3Client defines the minimal S3 interface used by the adapter, allowing
// injection of real aws-sdk-go-v2 clients or test doubles.
type S3Client interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, meta map[string]string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	HeadObject(ctx context.Context, bucket, key string) (bool, error)
}

// S3 delivers finished prints to an S3-compatible store (print-shop upload
// target, MinIO, etc.). Network failures are transient and retryable.
type S3 struct {
	client S3Client
	bucket string
}

// NewS3 creates an S3 adapter. client must not be nil.
func NewS3(client S3Client, defaultBucket string) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	return &S3{client: client, bucket: defaultBucket}, nil
}

func (s *S3) bucketFor(key core.StorageKey) string {
	if key.Bucket != "" {
		return key.Bucket
	}
	return s.bucket
}

func (s *S3) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "s3.put", err)
	}
	if err := s.client.PutObject(ctx, s.bucketFor(key), key.Path, r, meta); err != nil {
		return apperrors.Transient("s3.put", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "s3.get", err)
	}
	rc, err := s.client.GetObject(ctx, s.bucketFor(key), key.Path)
	if err != nil {
		return nil, apperrors.Transient("s3.get", err)
	}
	return rc, nil
}

func (s *S3) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "s3.delete", err)
	}
	return s.client.DeleteObject(ctx, s.bucketFor(key), key.Path)
}

func (s *S3) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryIO, "s3.exists", err)
	}
	return s.client.HeadObject(ctx, s.bucketFor(key), key.Path)
}

var _ core.StorageAdapter = (*S3)(nil)
