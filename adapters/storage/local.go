// Package storage provides StorageAdapter implementations for output delivery.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
)

// Local stores images on the local filesystem. Writes are atomic: data goes
// to a temp file in the destination directory, is fsynced, and is renamed
// into place, so a failed write never leaves a partial output behind.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

func (l *Local) absPath(key core.StorageKey) string {
	// Bucket maps to a subdirectory; Path is the filename.
	return filepath.Join(l.rootDir, filepath.Clean(key.Bucket), filepath.Clean(key.Path))
}

func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put", err)
	}

	path := l.absPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.tmp", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName) // no-op once renamed
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.copy", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.sync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.close", err)
	}
	if err := os.Chmod(tmpName, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.chmod", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.put.rename", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "local.get", err)
	}
	f, err := os.Open(l.absPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryIO, "local.get", fmt.Errorf("key not found: %v", key))
		}
		return nil, apperrors.Wrap(apperrors.CategoryIO, "local.get.open", err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "local.delete", err)
	}
	if err := os.Remove(l.absPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryIO, "local.delete", err)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryIO, "local.exists", err)
	}
	_, err := os.Stat(l.absPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryIO, "local.exists.stat", err)
}

var _ core.StorageAdapter = (*Local)(nil)
