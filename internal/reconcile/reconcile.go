// Package reconcile implements lfc's working-tree state machine: tracking
// a large file (Add), restoring its content from the cache (Checkout), and
// reporting where each tracked file currently stands (Status).
package reconcile

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/gitutil"
	"github.com/lfc-dev/lfc/internal/pointer"
	"github.com/lfc-dev/lfc/internal/repostate"
)

// ErrConflict is returned when Checkout would overwrite a working-tree
// file whose content no longer matches its sidecar.
var ErrConflict = errors.New("reconcile: working tree file differs from sidecar (use --force to overwrite)")

// Mode selects how Checkout materializes a tracked file's content into the
// working tree.
type Mode string

const (
	// ModePointer leaves only the sidecar in place; the original path is
	// not written.
	ModePointer Mode = "pointer"
	// ModeLink materializes content via hardlink/reflink when possible,
	// falling back to a copy. The default.
	ModeLink Mode = "link"
	// ModeCopy always materializes via a plain copy.
	ModeCopy Mode = "copy"
)

// State describes where a tracked file stands relative to its sidecar and
// the cache.
type State int

const (
	StateAbsentBlob State = iota // sidecar exists, cache doesn't have the blob
	StateCached                  // blob cached, not materialized in the working tree
	StatePresent                 // materialized and matching the sidecar
	StateModified                // working tree content no longer matches the sidecar
)

func (s State) String() string {
	switch s {
	case StateAbsentBlob:
		return "absent-blob"
	case StateCached:
		return "cached"
	case StatePresent:
		return "present"
	case StateModified:
		return "modified"
	default:
		return "unknown"
	}
}

// FileStatus reports one tracked file's reconciliation state.
type FileStatus struct {
	Path   string
	State  State
	Record *pointer.Record
}

// materializeMethod is the mechanism used to put cached content into the
// working tree.
type materializeMethod int

const (
	methodHardlink materializeMethod = iota
	methodReflink
	methodCopy
)

// Reconciler ties a repository's state, cache store, and materialization
// mode together.
type Reconciler struct {
	Repo  *repostate.Repo
	Store *cache.Store
	Mode  Mode

	// HashCheck selects how a working-tree file is compared against its
	// sidecar: "always" re-hashes the content, "never" trusts bare
	// existence, anything else ("size", the default) compares lengths.
	HashCheck string

	// Force lets Checkout overwrite a working-tree file that no longer
	// matches its sidecar instead of surfacing ErrConflict.
	Force bool

	probeOnce sync.Once
	method    materializeMethod
}

// New returns a Reconciler for repo, defaulting Mode to ModeLink.
func New(repo *repostate.Repo, store *cache.Store) *Reconciler {
	return &Reconciler{Repo: repo, Store: store, Mode: ModeLink}
}

// Add hashes the file at relPath (relative to Repo.Root), stores its
// content in the cache, writes its sidecar, and stages the sidecar with
// git. In ModePointer it also deletes the original from the working tree
// (the original is git-ignored, so there is nothing to stage). The blob lands
// in the cache before the sidecar is written, so no sidecar ever
// references a hash the cache can't serve.
func (rc *Reconciler) Add(relPath string) (*pointer.Record, error) {
	absPath := filepath.Join(rc.Repo.Root, relPath)
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, size, err := rc.Store.StoreReader(f)
	if err != nil {
		return nil, err
	}

	rec := &pointer.Record{SHA256: h.String(), Size: size, Path: relPath}
	sidecarPath := filepath.Join(rc.Repo.Root, pointer.SidecarPath(relPath))
	if err := rec.Write(sidecarPath); err != nil {
		return nil, err
	}

	if err := rc.Repo.IgnoreTrackedPath(relPath); err != nil {
		return nil, err
	}

	switch rc.Mode {
	case ModePointer:
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	default:
		// ModeLink/ModeCopy leave the working file in place; it already
		// matches the sidecar we just wrote, so no materialization needed.
	}

	if err := gitutil.AddToIndex(pointer.SidecarPath(relPath)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Checkout materializes tracked files listed by git (or the given paths)
// from the cache into the working tree, according to rc.Mode. Files whose
// blob isn't cached are left alone and reported as absent by Status.
func (rc *Reconciler) Checkout(paths ...string) error {
	sidecars, err := rc.trackedSidecars(paths...)
	if err != nil {
		return err
	}
	for _, sidecarPath := range sidecars {
		if err := rc.checkoutOne(sidecarPath); err != nil {
			return fmt.Errorf("checkout %s: %w", sidecarPath, err)
		}
	}
	return nil
}

func (rc *Reconciler) checkoutOne(sidecarPath string) error {
	if rc.Mode == ModePointer {
		return nil
	}
	original, ok := pointer.OriginalOf(sidecarPath)
	if !ok {
		return nil
	}

	rec, err := pointer.Read(filepath.Join(rc.Repo.Root, sidecarPath))
	if err != nil {
		return err
	}
	h, err := cache.ParseHash(rec.SHA256)
	if err != nil {
		return err
	}
	if !rc.Store.Has(h) {
		return nil // caller resolves this via transfer.Pull first.
	}

	dst := filepath.Join(rc.Repo.Root, original)
	if _, err := os.Lstat(dst); err == nil {
		if rc.upToDate(dst, rec) {
			return nil
		}
		if !rc.Force {
			return fmt.Errorf("%w: %s", ErrConflict, original)
		}
	}
	return rc.materialize(h, dst)
}

// upToDate reports whether dst already holds content matching rec, so
// Checkout doesn't needlessly re-materialize (and re-link) unchanged
// files. The comparison depth follows rc.HashCheck.
func (rc *Reconciler) upToDate(dst string, rec *pointer.Record) bool {
	info, err := os.Lstat(dst)
	if err != nil {
		return false
	}
	switch rc.HashCheck {
	case "never":
		return true
	case "always":
		if info.Size() != rec.Size {
			return false
		}
		h, err := hashFile(dst)
		return err == nil && h.String() == rec.SHA256
	default:
		return info.Size() == rec.Size
	}
}

// hashFile computes the SHA-256 of path's contents, streaming.
func hashFile(path string) (cache.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return cache.Hash{}, err
	}
	defer f.Close()

	acc := sha256.New()
	if _, err := io.Copy(acc, f); err != nil {
		return cache.Hash{}, err
	}
	var h cache.Hash
	copy(h[:], acc.Sum(nil))
	return h, nil
}

// materialize puts the cached blob for h at dst, trying hardlink, then a
// copy-on-write reflink, then a plain copy. The method is probed once
// per Reconciler and memoized. ModeCopy always uses a plain copy.
func (rc *Reconciler) materialize(h cache.Hash, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src := rc.Store.PathOf(h)

	if rc.Mode == ModeCopy {
		os.Remove(dst)
		if err := plainCopy(src, dst); err != nil {
			return err
		}
		return chmodMaterialized(dst)
	}

	rc.probeOnce.Do(func() {
		rc.method = probeMethod(src, dst)
	})

	switch rc.method {
	case methodHardlink:
		os.Remove(dst)
		if err := os.Link(src, dst); err == nil {
			return chmodMaterialized(dst)
		}
		fallthrough
	case methodReflink:
		os.Remove(dst)
		if err := reflinkCopy(src, dst); err == nil {
			return chmodMaterialized(dst)
		}
		fallthrough
	default:
		os.Remove(dst)
		if err := plainCopy(src, dst); err != nil {
			return err
		}
		return chmodMaterialized(dst)
	}
}

// chmodMaterialized sets u+rw on a materialized working-tree file, as
// opposed to the u+r-only cache blob it was copied or linked from.
func chmodMaterialized(path string) error {
	return os.Chmod(path, 0o644)
}

// probeMethod tries a hardlink and a reflink of src into dst's directory
// to determine what this filesystem supports, falling back to methodCopy.
// Run once per Reconciler lifetime, not per file.
func probeMethod(src, dst string) materializeMethod {
	probeDst := dst + ".lfc-probe"
	defer os.Remove(probeDst)

	if err := os.Link(src, probeDst); err == nil {
		return methodHardlink
	}
	if err := reflinkCopy(src, probeDst); err == nil {
		return methodReflink
	}
	return methodCopy
}

func plainCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Status reports the reconciliation state of every tracked sidecar.
func (rc *Reconciler) Status() ([]FileStatus, error) {
	sidecars, err := rc.trackedSidecars()
	if err != nil {
		return nil, err
	}
	statuses := make([]FileStatus, 0, len(sidecars))
	for _, sidecarPath := range sidecars {
		st, err := rc.statusOne(sidecarPath)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (rc *Reconciler) statusOne(sidecarPath string) (FileStatus, error) {
	original, _ := pointer.OriginalOf(sidecarPath)
	rec, err := pointer.Read(filepath.Join(rc.Repo.Root, sidecarPath))
	if err != nil {
		return FileStatus{}, err
	}
	h, err := cache.ParseHash(rec.SHA256)
	if err != nil {
		return FileStatus{}, err
	}

	if !rc.Store.Has(h) {
		return FileStatus{Path: original, State: StateAbsentBlob, Record: rec}, nil
	}

	info, err := os.Lstat(filepath.Join(rc.Repo.Root, original))
	if errors.Is(err, os.ErrNotExist) {
		return FileStatus{Path: original, State: StateCached, Record: rec}, nil
	}
	if err != nil {
		return FileStatus{}, err
	}
	if rc.HashCheck != "never" && info.Size() != rec.Size {
		return FileStatus{Path: original, State: StateModified, Record: rec}, nil
	}
	if rc.HashCheck == "always" {
		h, err := hashFile(filepath.Join(rc.Repo.Root, original))
		if err != nil {
			return FileStatus{}, err
		}
		if h.String() != rec.SHA256 {
			return FileStatus{Path: original, State: StateModified, Record: rec}, nil
		}
	}
	return FileStatus{Path: original, State: StatePresent, Record: rec}, nil
}

// Strays lists working-tree files that live under a tracked-file ignore
// entry but no longer have a sidecar: leftovers from a sidecar the user
// deleted through git without removing the data file.
func (rc *Reconciler) Strays() ([]string, error) {
	ignored, err := rc.Repo.TrackedIgnores()
	if err != nil {
		return nil, err
	}
	var strays []string
	for _, rel := range ignored {
		if _, err := os.Lstat(filepath.Join(rc.Repo.Root, pointer.SidecarPath(rel))); err == nil {
			continue // expected: sidecar still tracks this path.
		}
		if _, err := os.Lstat(filepath.Join(rc.Repo.Root, rel)); err == nil {
			strays = append(strays, rel)
		}
	}
	return strays, nil
}

// trackedSidecars lists tracked ".lfc" sidecar paths under the given
// paths (or the whole tree when none given), via git ls-files.
func (rc *Reconciler) trackedSidecars(paths ...string) ([]string, error) {
	all, err := gitutil.LsFiles(paths...)
	if err != nil {
		return nil, err
	}
	var sidecars []string
	for _, p := range all {
		if pointer.IsSidecar(p) {
			sidecars = append(sidecars, p)
		}
	}
	return sidecars, nil
}
