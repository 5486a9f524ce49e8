package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for a MinIO server.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioStore reads objects from a MinIO server.
type MinioStore struct {
	client *minio.Client
}

// NewMinioClient creates a MinIO client.
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return cli, nil
}

// NewMinioStore wraps a MinIO client.
func NewMinioStore(client *minio.Client) *MinioStore {
	return &MinioStore{client: client}
}

// Client exposes the underlying client for bucket notifications.
func (s *MinioStore) Client() *minio.Client {
	return s.client
}

// EnsureBucket creates the bucket if it does not exist.
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket, region string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Get reads the whole object.
func (s *MinioStore) Get(ctx context.Context, ref ObjectRef) (*Object, error) {
	obj, err := s.client.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err, ref)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		return nil, mapMinioError(err, ref)
	}

	data, err := readAll(obj, ref)
	if err != nil {
		return nil, err
	}
	return &Object{
		Ref:         ref,
		Data:        data,
		ContentType: info.ContentType,
		ETag:        info.ETag,
	}, nil
}

func mapMinioError(err error, ref ObjectRef) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return fmt.Errorf("failed to get %s: %w", ref, err)
}
