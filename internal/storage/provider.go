// Package storage selects the blob store that receives failure snapshots.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ovalfantasy/ovalsync/internal/config"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
	"github.com/ovalfantasy/ovalsync/internal/storage/gcs"
	"github.com/ovalfantasy/ovalsync/internal/storage/local"
	"github.com/ovalfantasy/ovalsync/internal/storage/memory"
)

// Open builds the configured blob store. The returned store is nil for the
// "none" provider. The close function is always safe to call.
func Open(ctx context.Context, cfg config.StorageConfig) (scrape.BlobStore, func() error, error) {
	noop := func() error { return nil }

	var (
		store   scrape.BlobStore
		closeFn = noop
	)
	switch cfg.Provider {
	case config.StorageNone, "":
		return nil, noop, nil
	case config.StorageMemory:
		store = memory.NewBlobStore()
	case config.StorageLocal:
		s, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, noop, fmt.Errorf("open local blob store: %w", err)
		}
		store = s
	case config.StorageGCS:
		s, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, noop, fmt.Errorf("open gcs blob store: %w", err)
		}
		store, closeFn = s, s.Close
	default:
		return nil, noop, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
	return WithPrefix(store, cfg.Prefix, cfg.ContentType), closeFn, nil
}

// Prefixed places every object under a common prefix and applies a default
// content type when the caller passes none.
type Prefixed struct {
	inner       scrape.BlobStore
	prefix      string
	contentType string
}

// WithPrefix wraps store. An empty prefix and content type leave calls unchanged.
func WithPrefix(store scrape.BlobStore, prefix, contentType string) *Prefixed {
	return &Prefixed{inner: store, prefix: strings.Trim(prefix, "/"), contentType: contentType}
}

// PutObject implements scrape.BlobStore.
func (p *Prefixed) PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error) {
	if p.prefix != "" {
		name = path.Join(p.prefix, name)
	}
	if contentType == "" {
		contentType = p.contentType
	}
	return p.inner.PutObject(ctx, name, contentType, data)
}
