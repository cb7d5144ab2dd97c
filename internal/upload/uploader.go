// Package upload archives a mirrored site tree into the blob store,
// one object per file, keyed by namespace and tree-relative path.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/storage"
)

// UploadError reports files that could not be uploaded. The rest of
// the tree is still uploaded; the error exists so the caller can fail
// the site's pipeline while the archive stays as complete as possible.
type UploadError struct {
	Namespace   string
	FailedPaths []string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to namespace %s: %d file(s) failed: %s",
		e.Namespace, len(e.FailedPaths), strings.Join(e.FailedPaths, ", "))
}

// Summary describes one finished tree upload.
type Summary struct {
	Namespace string
	Uploaded  int
	Failed    int
	Bytes     int64
}

// Config tunes the uploader.
type Config struct {
	// Prefix is prepended to every object key, before the namespace.
	Prefix string
	// SkipNames are file base names excluded from upload, e.g. the
	// completion marker.
	SkipNames []string
}

// Uploader walks local trees and writes them through a BlobStore.
type Uploader struct {
	store  storage.BlobStore
	cfg    Config
	logger *zap.Logger
}

// New constructs an Uploader.
func New(store storage.BlobStore, cfg Config, logger *zap.Logger) *Uploader {
	return &Uploader{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// UploadTree uploads every regular file under localDir to
// prefix/namespace/relative_path. Re-running over an unchanged tree
// overwrites the same keys, so the call is idempotent. Individual
// file failures are collected and reported together; they do not stop
// the walk.
func (u *Uploader) UploadTree(ctx context.Context, localDir, namespace string) (Summary, error) {
	summary := Summary{Namespace: namespace}

	info, err := os.Stat(localDir)
	if err != nil {
		return summary, fmt.Errorf("stat local dir %s: %w", localDir, err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("local path %s is not a directory", localDir)
	}

	var failed []string
	walkErr := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if u.skip(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		key := u.objectKey(namespace, rel)

		n, err := u.putFile(ctx, key, path)
		if err != nil {
			u.logger.Warn("file upload failed",
				zap.String("path", path),
				zap.String("key", key),
				zap.Error(err))
			failed = append(failed, rel)
			summary.Failed++
			return nil
		}
		summary.Uploaded++
		summary.Bytes += n
		return nil
	})
	if walkErr != nil {
		return summary, fmt.Errorf("walk %s: %w", localDir, walkErr)
	}

	if summary.Uploaded == 0 && summary.Failed == 0 {
		return summary, fmt.Errorf("no files found under %s; nothing to archive", localDir)
	}
	if len(failed) > 0 {
		return summary, &UploadError{Namespace: namespace, FailedPaths: failed}
	}

	u.logger.Info("tree uploaded",
		zap.String("namespace", namespace),
		zap.Int("files", summary.Uploaded),
		zap.Int64("bytes", summary.Bytes))
	return summary, nil
}

func (u *Uploader) putFile(ctx context.Context, key, path string) (int64, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from walking the owned download dir.
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := u.store.PutObject(ctx, key, contentType, f); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (u *Uploader) objectKey(namespace, rel string) string {
	parts := []string{}
	if u.cfg.Prefix != "" {
		parts = append(parts, u.cfg.Prefix)
	}
	parts = append(parts, namespace, filepath.ToSlash(rel))
	return strings.Join(parts, "/")
}

func (u *Uploader) skip(name string) bool {
	for _, s := range u.cfg.SkipNames {
		if name == s {
			return true
		}
	}
	return false
}
