package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/FAIRDataPipeline/data-registry/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrS3NotConfigured     = errors.New("s3 endpoint is not configured")
	ErrS3BucketRequired    = errors.New("s3 bucket is required")
	ErrS3ObjectKeyRequired = errors.New("s3 object key is required")
)

type objectOpener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type minioOpener struct {
	client *minio.Client
}

func (o *minioOpener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy, Stat surfaces a missing key before the copy starts
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

// S3Fetcher reads s3://bucket/key storage locations from one S3-compatible endpoint.
type S3Fetcher struct {
	opener objectOpener
}

func NewS3Fetcher(cfg config.S3Config) (*S3Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrS3NotConfigured
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}
	return &S3Fetcher{opener: &minioOpener{client: client}}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, uri *url.URL, dst io.Writer) error {
	bucket := strings.TrimSpace(uri.Host)
	if bucket == "" {
		return ErrS3BucketRequired
	}
	key := strings.TrimPrefix(uri.Path, "/")
	if key == "" {
		return ErrS3ObjectKeyRequired
	}

	obj, err := f.opener.Open(ctx, bucket, key)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("s3 object %s/%s: %w", bucket, key, ErrRemoteFileNotFound)
		}
		return fmt.Errorf("open s3 object failed (bucket=%s key=%s): %w", bucket, key, err)
	}
	defer obj.Close()

	if _, err := io.Copy(dst, obj); err != nil {
		return fmt.Errorf("read s3 object failed (bucket=%s key=%s): %w", bucket, key, err)
	}
	return nil
}
