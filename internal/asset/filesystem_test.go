package asset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Write(ctx, "/item/abc.png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "item/abc.png", key)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("data"), got)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	require.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, s.Delete(ctx, key))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "item/a.png", []byte("data"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "item"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.png", entries[0].Name())
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "item/a.png", want: "item/a.png"},
		{key: `item\a.png`, want: "item/a.png"},
		{key: "./item/../item/a.png", want: "item/a.png"},
		{key: "../etc/passwd", wantErr: true},
		{key: "..", wantErr: true},
		{key: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	_, err := NewFileStore("  ")
	require.Error(t, err)
}
