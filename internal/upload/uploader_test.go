package upload_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/storage/memory"
	"github.com/eduardolzevallos/backup-websites/internal/upload"
)

func seedTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func TestUploadTree(t *testing.T) {
	t.Parallel()

	root := seedTree(t, map[string]string{
		"index.html":            "<html/>",
		"bitacora/node/1.html":  "uno",
		"assets/style.css":      "body{}",
		"assets/img/header.png": "png-bytes",
	})

	store := memory.NewBlobStore()
	up := upload.New(store, upload.Config{Prefix: "mirrors"}, zap.NewNop())

	summary, err := up.UploadTree(context.Background(), root, "tortillaconsal")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Uploaded)
	assert.Zero(t, summary.Failed)
	assert.Positive(t, summary.Bytes)

	keys := store.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{
		"mirrors/tortillaconsal/assets/img/header.png",
		"mirrors/tortillaconsal/assets/style.css",
		"mirrors/tortillaconsal/bitacora/node/1.html",
		"mirrors/tortillaconsal/index.html",
	}, keys)

	content, ok := store.Object("mirrors/tortillaconsal/index.html")
	require.True(t, ok)
	assert.Equal(t, "<html/>", string(content))
}

func TestUploadTreeIdempotent(t *testing.T) {
	t.Parallel()

	root := seedTree(t, map[string]string{
		"index.html":     "<html/>",
		"page/deep.html": "deep",
	})

	store := memory.NewBlobStore()
	up := upload.New(store, upload.Config{}, zap.NewNop())

	first, err := up.UploadTree(context.Background(), root, "site")
	require.NoError(t, err)
	firstKeys := store.Keys()
	sort.Strings(firstKeys)

	second, err := up.UploadTree(context.Background(), root, "site")
	require.NoError(t, err)
	secondKeys := store.Keys()
	sort.Strings(secondKeys)

	assert.Equal(t, first.Uploaded, second.Uploaded)
	assert.Equal(t, firstKeys, secondKeys, "re-running an unchanged tree must produce the same object set")
}

func TestUploadTreeSkipsMarker(t *testing.T) {
	t.Parallel()

	root := seedTree(t, map[string]string{
		"index.html":       "<html/>",
		".backup_complete": "",
	})

	store := memory.NewBlobStore()
	up := upload.New(store, upload.Config{SkipNames: []string{".backup_complete"}}, zap.NewNop())

	summary, err := up.UploadTree(context.Background(), root, "site")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	_, ok := store.Object("site/.backup_complete")
	assert.False(t, ok)
}

// failingStore rejects keys containing a marker substring.
type failingStore struct {
	inner *memory.BlobStore
}

func (s *failingStore) PutObject(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	if strings.Contains(key, "broken") {
		return "", errors.New("backend rejected object")
	}
	return s.inner.PutObject(ctx, key, contentType, data)
}

func TestUploadTreePartialFailure(t *testing.T) {
	t.Parallel()

	root := seedTree(t, map[string]string{
		"index.html":        "<html/>",
		"broken/lost.html":  "never arrives",
		"bitacora/ok.html":  "fine",
		"broken/lost2.html": "never arrives either",
	})

	store := &failingStore{inner: memory.NewBlobStore()}
	up := upload.New(store, upload.Config{}, zap.NewNop())

	summary, err := up.UploadTree(context.Background(), root, "site")
	require.Error(t, err)

	var uploadErr *upload.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Len(t, uploadErr.FailedPaths, 2)
	assert.Equal(t, 2, summary.Uploaded, "remaining files must still upload")
	assert.Equal(t, 2, summary.Failed)

	_, ok := store.inner.Object("site/bitacora/ok.html")
	assert.True(t, ok, "sibling files of a failed upload must not be aborted")
}

func TestUploadTreeEmptyTree(t *testing.T) {
	t.Parallel()

	up := upload.New(memory.NewBlobStore(), upload.Config{}, zap.NewNop())
	_, err := up.UploadTree(context.Background(), t.TempDir(), "site")
	assert.Error(t, err, "an empty mirror is not a valid archive")
}

func TestUploadTreeMissingDir(t *testing.T) {
	t.Parallel()

	up := upload.New(memory.NewBlobStore(), upload.Config{}, zap.NewNop())
	_, err := up.UploadTree(context.Background(), filepath.Join(t.TempDir(), "absent"), "site")
	assert.Error(t, err)
}
