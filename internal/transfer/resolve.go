package transfer

import (
	"bytes"
	"os"
	"sort"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/gitutil"
	"github.com/lfc-dev/lfc/internal/pointer"
)

// ResolvePush computes push's hash set: every hash in the local cache
// referenced by a tracked sidecar under paths.
func ResolvePush(store *cache.Store, paths ...string) ([]cache.Hash, error) {
	return resolveFromWorkingTree(paths, func(h cache.Hash) bool {
		return store.Has(h)
	})
}

// ResolvePull computes pull's hash set: every hash referenced by a
// tracked sidecar but absent from the local cache.
func ResolvePull(store *cache.Store, paths ...string) ([]cache.Hash, error) {
	return resolveFromWorkingTree(paths, func(h cache.Hash) bool {
		return !store.Has(h)
	})
}

// resolveFromWorkingTree lists tracked sidecars via `git ls-files` and
// keeps the hashes for which keep returns true.
func resolveFromWorkingTree(paths []string, keep func(cache.Hash) bool) ([]cache.Hash, error) {
	files, err := gitutil.LsFiles(paths...)
	if err != nil {
		return nil, err
	}
	return hashesFromSidecarPaths(files, os.ReadFile, keep)
}

// ResolveClone computes clone's hash set: every hash referenced by a
// sidecar recorded at ref, without requiring a checked-out working tree.
func ResolveClone(ref string) ([]cache.Hash, error) {
	files, err := gitutil.LsTree(ref)
	if err != nil {
		return nil, err
	}
	return hashesFromSidecarPaths(files, func(path string) ([]byte, error) {
		return gitutil.ShowFile(ref, path)
	}, func(cache.Hash) bool { return true })
}

func hashesFromSidecarPaths(files []string, read func(string) ([]byte, error), keep func(cache.Hash) bool) ([]cache.Hash, error) {
	seen := map[cache.Hash]bool{}
	var hashes []cache.Hash
	for _, f := range files {
		if !pointer.IsSidecar(f) {
			continue
		}
		b, err := read(f)
		if err != nil {
			continue // unreadable sidecar: skip rather than fail the whole resolution.
		}
		rec, err := pointer.Parse(bytes.NewReader(b))
		if err != nil {
			continue
		}
		h, err := cache.ParseHash(rec.SHA256)
		if err != nil {
			continue
		}
		if seen[h] || !keep(h) {
			continue
		}
		seen[h] = true
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].String() < hashes[j].String() })
	return hashes, nil
}
