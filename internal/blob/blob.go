// Package blob stores document bytes. Stores address objects by an opaque
// locator returned from Put.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/docket/internal/config"
)

// ErrNotFound is returned by Delete when the object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store is a blob store.
type Store interface {
	// Put writes data under path and returns the object's locator.
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// Delete removes the object named by locator.
	Delete(ctx context.Context, locator string) error
	// Exists reports whether the object named by locator is present.
	Exists(ctx context.Context, locator string) (bool, error)
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocal(cfg.Dir)
	case "memory":
		return NewMemory(), nil
	case "minio":
		return NewMinio(ctx, MinioOptions{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("blob: unsupported backend %q", cfg.Backend)
	}
}
