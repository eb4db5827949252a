package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds connection settings for an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// objectAPI is the subset of *minio.Client the store uses.
type objectAPI interface {
	getObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type minioClient struct{ *minio.Client }

func (c minioClient) getObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// MinIO is a Store over an S3-compatible object store.
type MinIO struct {
	api objectAPI
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: minio client: %w", err)
	}
	return &MinIO{api: minioClient{c}}, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// Get reads the whole object. GetObject is lazy, so a missing key surfaces on
// the first read.
func (s *MinIO) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.api.getObject(ctx, bucket, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("blob: %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("blob: get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("blob: %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("blob: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put uploads data into an existing bucket.
func (s *MinIO) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("blob: put %s/%s: %w", bucket, key, err)
	}
	return nil
}
