package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket. Locators have the
// form "gs://<bucket>/<key>".
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCS opens a client for bucket. An empty credentialsFile uses the
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("blob: gcs bucket not set")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: gcs client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) prefix() string { return "gs://" + g.name + "/" }

func (g *GCS) key(locator string) (string, error) {
	key, ok := strings.CutPrefix(locator, g.prefix())
	if !ok || key == "" {
		return "", fmt.Errorf("blob: locator %q is not in bucket %s", locator, g.name)
	}
	return key, nil
}

func (g *GCS) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	w := g.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("blob: put %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", path, err)
	}
	return g.prefix() + path, nil
}

func (g *GCS) Delete(ctx context.Context, locator string) error {
	key, err := g.key(locator)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		return fmt.Errorf("blob: delete %s: %w", locator, err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := g.key(locator)
	if err != nil {
		return false, err
	}
	_, err = g.bucket.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("blob: stat %s: %w", locator, err)
	}
}
