// Package localstorage keeps artifacts on the local disk, with an
// optional byte budget for the output directory.
package localstorage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"mediaconv/media"
	"mediaconv/storage"
)

type Config struct {
	// OutDir receives written artifacts. Created on first Put.
	OutDir string

	// MaxBytes caps the total bytes written through this instance.
	// Zero means unlimited.
	MaxBytes int64
}

type LocalStorage struct {
	cfg Config

	mu      sync.Mutex
	written int64
}

func New(cfg Config) *LocalStorage {
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}

	return &LocalStorage{cfg: cfg}
}

func (ls *LocalStorage) Fetch(ctx context.Context, path string) (*media.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(media.ErrCancelled, err.Error())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(media.ErrFileReadError, "%s: %v", path, err)
	}

	return media.NewBlob(b, media.GuessMimeFromExtension(filepath.Ext(path))), nil
}

// Put writes through a temp file and renames, so a crashed write never
// leaves a half-baked artifact under the final name.
func (ls *LocalStorage) Put(ctx context.Context, name string, source io.Reader) (storage.Item, error) {
	if err := ctx.Err(); err != nil {
		return storage.Item{}, errors.Wrap(media.ErrCancelled, err.Error())
	}

	if err := os.MkdirAll(ls.cfg.OutDir, 0o755); err != nil {
		return storage.Item{}, errors.Wrapf(media.ErrStorageError, "create %s: %v", ls.cfg.OutDir, err)
	}

	tmp, err := os.CreateTemp(ls.cfg.OutDir, ".mediaconv-*")
	if err != nil {
		return storage.Item{}, errors.Wrap(media.ErrStorageError, err.Error())
	}

	n, err := io.Copy(tmp, source)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return storage.Item{}, errors.Wrap(media.ErrStorageError, err.Error())
	}

	if err := ls.charge(n); err != nil {
		_ = os.Remove(tmp.Name())
		return storage.Item{}, err
	}

	final := filepath.Join(ls.cfg.OutDir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return storage.Item{}, errors.Wrap(media.ErrStorageError, err.Error())
	}

	return storage.Item{Path: final, Size: int(n)}, nil
}

func (ls *LocalStorage) charge(n int64) error {
	if ls.cfg.MaxBytes == 0 {
		return nil
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.written+n > ls.cfg.MaxBytes {
		return errors.Wrapf(media.ErrQuotaExceeded,
			"writing %d bytes would exceed the %d byte budget", n, ls.cfg.MaxBytes)
	}
	ls.written += n

	return nil
}
