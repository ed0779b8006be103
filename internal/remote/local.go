package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lfc-dev/lfc/internal/cache"
)

// localBackend serves a plain directory path as a remote: the same
// two-level hex layout as the local cache, written via temp-and-rename.
// A remote populated this way is byte-exact portable to any other local
// remote — rsync the directory and the hash set moves with it.
type localBackend struct {
	root string
}

func newLocalBackend(root string) *localBackend {
	return &localBackend{root: root}
}

func (b *localBackend) pathOf(h cache.Hash) string {
	hex := h.String()
	return filepath.Join(b.root, hex[:2], hex[2:])
}

func (b *localBackend) Has(ctx context.Context, h cache.Hash) (bool, error) {
	_, err := os.Stat(b.pathOf(h))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, classify(KindPermanent, err)
}

func (b *localBackend) Get(ctx context.Context, h cache.Hash) (io.ReadCloser, error) {
	f, err := os.Open(b.pathOf(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, classify(KindMissing, err)
		}
		return nil, classify(KindPermanent, err)
	}
	return f, nil
}

func (b *localBackend) Put(ctx context.Context, h cache.Hash, r io.Reader, size int64) error {
	final := b.pathOf(h)
	if _, err := os.Stat(final); err == nil {
		return nil // blobs are immutable; nothing to do.
	}

	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return classify(KindPermanent, err)
	}

	tmp, err := os.CreateTemp(dir, ".lfc-remote-*")
	if err != nil {
		return classify(KindPermanent, err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return classify(KindTransient, err)
	}
	if err := tmp.Close(); err != nil {
		return classify(KindPermanent, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		if _, statErr := os.Stat(final); statErr == nil {
			ok = true
			return nil // lost the race to an identical concurrent Put.
		}
		return classify(KindPermanent, err)
	}
	ok = true
	return nil
}

func (b *localBackend) List(ctx context.Context) (<-chan cache.Hash, <-chan error) {
	hashes := make(chan cache.Hash)
	errc := make(chan error, 1)

	go func() {
		defer close(hashes)
		defer close(errc)

		entries, err := os.ReadDir(b.root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			errc <- classify(KindPermanent, err)
			return
		}
		for _, top := range entries {
			if !top.IsDir() || len(top.Name()) != 2 {
				continue
			}
			subDir := filepath.Join(b.root, top.Name())
			subEntries, err := os.ReadDir(subDir)
			if err != nil {
				errc <- classify(KindPermanent, err)
				return
			}
			for _, sub := range subEntries {
				if sub.IsDir() {
					continue
				}
				h, err := cache.ParseHash(top.Name() + sub.Name())
				if err != nil {
					continue
				}
				select {
				case hashes <- h:
				case <-ctx.Done():
					errc <- classify(KindTransient, fmt.Errorf("remote: %w", ctx.Err()))
					return
				}
			}
		}
	}()

	return hashes, errc
}
