package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	OutputBucket string
}

// MinIO reads uploaded videos from one bucket and writes comics to another.
type MinIO struct {
	client       *miniogo.Client
	uploadBucket string
	outputBucket string
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIO{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		outputBucket: cfg.OutputBucket,
	}, nil
}

func (s *MinIO) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.outputBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// Fetch downloads an uploaded video into dir and returns its local path.
func (s *MinIO) Fetch(ctx context.Context, objectKey, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, path.Base(objectKey))
	if err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, dest, miniogo.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s: %w", objectKey, err)
	}
	return dest, nil
}

func (s *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := cleanName(name)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.outputBucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.outputBucket, key), nil
}
