package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures an S3-compatible store.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio stores objects in an S3-compatible bucket. Locators have the form
// "s3://<bucket>/<key>".
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the endpoint and creates the bucket if missing.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blob: create bucket %s: %w", opts.Bucket, err)
		}
	}
	return &Minio{client: client, bucket: opts.Bucket}, nil
}

func (m *Minio) prefix() string { return "s3://" + m.bucket + "/" }

func (m *Minio) key(locator string) (string, error) {
	key, ok := strings.CutPrefix(locator, m.prefix())
	if !ok || key == "" {
		return "", fmt.Errorf("blob: locator %q is not in bucket %s", locator, m.bucket)
	}
	return key, nil
}

func (m *Minio) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("blob: put %s: %w", path, err)
	}
	return m.prefix() + path, nil
}

func (m *Minio) Delete(ctx context.Context, locator string) error {
	key, err := m.key(locator)
	if err != nil {
		return err
	}
	if ok, err := m.Exists(ctx, locator); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blob: delete %s: %w", locator, err)
	}
	return nil
}

func (m *Minio) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := m.key(locator)
	if err != nil {
		return false, err
	}
	_, err = m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("blob: stat %s: %w", locator, err)
}
