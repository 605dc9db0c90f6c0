package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/storyqa/storyqa/internal/config"
)

// ArtifactStore persists pipeline artifacts: screenshots, rendered
// reports, exported test suites. Save returns a URI that identifies the
// stored object; Load accepts either a bare key or a URI produced by
// Save on the same store.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
}

// New builds the store selected by configuration. The local filesystem
// store is the default; MinIO requires a reachable endpoint because the
// bucket is ensured during construction.
func New(ctx context.Context, cfg config.StorageConfig) (ArtifactStore, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStore(cfg.LocalRoot)
	case "minio":
		return NewMinIOStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// objectKey strips the s3 scheme and bucket from URIs produced by the
// MinIO store, passing bare keys through untouched.
func objectKey(uriOrKey, bucket string) string {
	prefix := "s3://" + bucket + "/"
	if strings.HasPrefix(uriOrKey, prefix) {
		return strings.TrimPrefix(uriOrKey, prefix)
	}
	return uriOrKey
}
