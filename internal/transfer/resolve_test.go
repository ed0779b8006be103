package transfer

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/pointer"
)

func setupTempRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	if out, err := exec.Command("git", "init", repo).CombinedOutput(); err != nil {
		t.Fatalf("git init failed: %v: %s", err, out)
	}
	if out, err := exec.Command("git", "-C", repo, "config", "user.email", "test@example.com").CombinedOutput(); err != nil {
		t.Fatalf("git config user.email failed: %v: %s", err, out)
	}
	if out, err := exec.Command("git", "-C", repo, "config", "user.name", "Test").CombinedOutput(); err != nil {
		t.Fatalf("git config user.name failed: %v: %s", err, out)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(repo); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return repo
}

func writeSidecar(t *testing.T, repo, trackedPath string, h cache.Hash, size int64) {
	t.Helper()
	full := filepath.Join(repo, pointer.SidecarPath(trackedPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	rec := &pointer.Record{SHA256: h.String(), Size: size, Path: trackedPath}
	f, err := os.Create(full)
	if err != nil {
		t.Fatalf("create sidecar: %v", err)
	}
	defer f.Close()
	if err := rec.Encode(f); err != nil {
		t.Fatalf("encode sidecar: %v", err)
	}
}

func gitAddCommit(t *testing.T, repo, message string) {
	t.Helper()
	if out, err := exec.Command("git", "-C", repo, "add", "-A").CombinedOutput(); err != nil {
		t.Fatalf("git add failed: %v: %s", err, out)
	}
	if out, err := exec.Command("git", "-C", repo, "commit", "-m", message).CombinedOutput(); err != nil {
		t.Fatalf("git commit failed: %v: %s", err, out)
	}
}

func hashOf(t *testing.T, content string) cache.Hash {
	t.Helper()
	store := cache.New(t.TempDir())
	h, _, err := store.StoreReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}
	return h
}

func TestResolvePushOnlyIncludesCachedHashes(t *testing.T) {
	repo := setupTempRepo(t)
	cached := hashOf(t, "cached-payload")
	uncached := hashOf(t, "uncached-payload")

	writeSidecar(t, repo, "a.bin", cached, 14)
	writeSidecar(t, repo, "b.bin", uncached, 16)
	gitAddCommit(t, repo, "add sidecars")

	store := cache.New(t.TempDir())
	if _, _, err := store.StoreReader(strings.NewReader("cached-payload")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	hashes, err := ResolvePush(store)
	if err != nil {
		t.Fatalf("ResolvePush: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != cached {
		t.Fatalf("hashes = %v, want [%s]", hashes, cached)
	}
}

func TestResolvePullOnlyIncludesMissingHashes(t *testing.T) {
	repo := setupTempRepo(t)
	cached := hashOf(t, "cached-payload")
	missing := hashOf(t, "missing-payload")

	writeSidecar(t, repo, "a.bin", cached, 14)
	writeSidecar(t, repo, "b.bin", missing, 15)
	gitAddCommit(t, repo, "add sidecars")

	store := cache.New(t.TempDir())
	if _, _, err := store.StoreReader(strings.NewReader("cached-payload")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	hashes, err := ResolvePull(store)
	if err != nil {
		t.Fatalf("ResolvePull: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != missing {
		t.Fatalf("hashes = %v, want [%s]", hashes, missing)
	}
}

func TestResolvePushDeduplicatesSharedHash(t *testing.T) {
	repo := setupTempRepo(t)
	shared := hashOf(t, "shared-payload")

	writeSidecar(t, repo, "a.bin", shared, 14)
	writeSidecar(t, repo, "b.bin", shared, 14)
	gitAddCommit(t, repo, "add sidecars")

	store := cache.New(t.TempDir())
	if _, _, err := store.StoreReader(strings.NewReader("shared-payload")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	hashes, err := ResolvePush(store)
	if err != nil {
		t.Fatalf("ResolvePush: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("hashes = %v, want exactly one deduplicated entry", hashes)
	}
}

func TestResolveCloneReadsFromRefWithoutWorkingTree(t *testing.T) {
	repo := setupTempRepo(t)
	h := hashOf(t, "ref-payload")
	writeSidecar(t, repo, "a.bin", h, 11)
	gitAddCommit(t, repo, "add sidecar")

	// Remove the working-tree sidecar to prove ResolveClone reads from the
	// committed ref, not the checkout.
	if err := os.Remove(filepath.Join(repo, pointer.SidecarPath("a.bin"))); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}

	hashes, err := ResolveClone("HEAD")
	if err != nil {
		t.Fatalf("ResolveClone: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != h {
		t.Fatalf("hashes = %v, want [%s]", hashes, h)
	}
}

func TestResolveIgnoresNonSidecarFiles(t *testing.T) {
	repo := setupTempRepo(t)
	if err := os.WriteFile(filepath.Join(repo, "plain.txt"), []byte("not a sidecar"), 0o644); err != nil {
		t.Fatalf("write plain file: %v", err)
	}
	h := hashOf(t, "tracked-payload")
	writeSidecar(t, repo, "a.bin", h, 15)
	gitAddCommit(t, repo, "add files")

	store := cache.New(t.TempDir())
	if _, _, err := store.StoreReader(strings.NewReader("tracked-payload")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	hashes, err := ResolvePush(store)
	if err != nil {
		t.Fatalf("ResolvePush: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != h {
		t.Fatalf("hashes = %v, want [%s]", hashes, h)
	}
}
