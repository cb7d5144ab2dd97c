package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduardolzevallos/backup-websites/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesBaseDir", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "archives")
		_, err := local.New(local.Config{BaseDir: base})
		require.NoError(t, err)
		assert.DirExists(t, base)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: f})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	base := t.TempDir()
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	t.Run("WritesFileAndReturnsURI", func(t *testing.T) {
		uri, err := store.PutObject(context.Background(), "example/index.html", "text/html", bytes.NewReader([]byte("<html/>")))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(base, "example", "index.html"), uri)

		got, err := os.ReadFile(filepath.Join(base, "example", "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "<html/>", string(got))
	})

	t.Run("OverwriteIsIdempotent", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "example/page.html", "text/html", bytes.NewReader([]byte("v1")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "example/page.html", "text/html", bytes.NewReader([]byte("v2")))
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(base, "example", "page.html"))
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "  ", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("KeyEscapesBase", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../outside.html", "", bytes.NewReader([]byte("x")))
		assert.Error(t, err)
	})
}
