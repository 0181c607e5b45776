package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/musicals/internal/imagestore"
)

func TestStoreSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake png data")

	key, err := store.Save(ctx, "image/png", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	reader, mimeType, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/png", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestStoreDelete(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	key, err := store.Save(ctx, "image/jpeg", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), imagestore.ErrNotFound)
}

func TestStoreNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), "nonexistent.jpg")
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
}

func TestStoreRejectsKeysOutsideDirectory(t *testing.T) {
	base := t.TempDir()
	store, err := New(filepath.Join(base, "images"))
	require.NoError(t, err)

	// A file next to the image directory must stay unreachable.
	outside := filepath.Join(base, "secret.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	ctx := context.Background()
	for _, key := range []string{"../secret.jpg", "..", ".hidden.jpg", "sub/key.jpg", ""} {
		_, _, err := store.Open(ctx, key)
		assert.ErrorIs(t, err, imagestore.ErrInvalidKey, "Open %q", key)
		assert.ErrorIs(t, store.Delete(ctx, key), imagestore.ErrInvalidKey, "Delete %q", key)
	}

	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestStoreKeyExtensionFollowsMIME(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for mimeType, ext := range map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	} {
		key, err := store.Save(ctx, mimeType, bytes.NewReader([]byte("x")))
		require.NoError(t, err)
		assert.Equal(t, ext, filepath.Ext(key), mimeType)

		rc, got, err := store.Open(ctx, key)
		require.NoError(t, err)
		_ = rc.Close()
		assert.Equal(t, mimeType, got)
	}
}
