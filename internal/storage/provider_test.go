package storage_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovalfantasy/ovalsync/internal/config"
	"github.com/ovalfantasy/ovalsync/internal/storage"
	"github.com/ovalfantasy/ovalsync/internal/storage/memory"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantNil bool
		wantURI string
		wantErr bool
	}{
		{name: "none", cfg: config.StorageConfig{Provider: config.StorageNone}, wantNil: true},
		{name: "memory", cfg: config.StorageConfig{Provider: config.StorageMemory, Prefix: "snapshots"}, wantURI: "memory://snapshots/lineups/1/a.html"},
		{
			name:    "local",
			cfg:     config.StorageConfig{Provider: config.StorageLocal, LocalDir: dir, Prefix: "/snapshots/"},
			wantURI: "file://" + filepath.Join(dir, "snapshots", "lineups", "1", "a.html"),
		},
		{name: "local without dir", cfg: config.StorageConfig{Provider: config.StorageLocal}, wantErr: true},
		{name: "unknown", cfg: config.StorageConfig{Provider: "s3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, closeFn, err := storage.Open(context.Background(), tt.cfg)
			require.NotNil(t, closeFn)
			require.NoError(t, closeFn())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				require.Nil(t, store)
				return
			}
			uri, err := store.PutObject(context.Background(), "lineups/1/a.html", "", strings.NewReader("x"))
			require.NoError(t, err)
			require.Equal(t, tt.wantURI, uri)
		})
	}
}

type recordingStore struct {
	name        string
	contentType string
}

func (r *recordingStore) PutObject(_ context.Context, name, contentType string, _ io.Reader) (string, error) {
	r.name, r.contentType = name, contentType
	return "test://" + name, nil
}

func TestWithPrefixDefaultsContentType(t *testing.T) {
	t.Parallel()

	inner := &recordingStore{}
	store := storage.WithPrefix(inner, "", "text/html; charset=utf-8")

	_, err := store.PutObject(context.Background(), "a.html", "", strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "a.html", inner.name)
	require.Equal(t, "text/html; charset=utf-8", inner.contentType)

	_, err = store.PutObject(context.Background(), "b.json", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "application/json", inner.contentType)
}

func TestWithPrefixOverMemory(t *testing.T) {
	t.Parallel()

	mem := memory.NewBlobStore()
	store := storage.WithPrefix(mem, "snapshots", "")
	_, err := store.PutObject(context.Background(), "x.html", "", strings.NewReader("body"))
	require.NoError(t, err)
	require.Equal(t, []string{"snapshots/x.html"}, mem.Paths())
}
