// Package repostate manages lfc's per-repository state directory,
// ".lfc/", including its config file, remote registry, and .gitignore
// bookkeeping.
package repostate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrNotARepo is returned when an operation requires an initialized ".lfc"
// directory that doesn't exist.
var ErrNotARepo = errors.New("repostate: not an lfc repository (run 'lfc init')")

// ErrRemoteExists is returned by RemoteAdd when the name is already taken.
var ErrRemoteExists = errors.New("repostate: remote already exists")

// ErrRemoteNotFound is returned by RemoteRemove/RemoteSetURL for an unknown
// remote name.
var ErrRemoteNotFound = errors.New("repostate: remote not found")

// RemoteSpec is one entry in the remote registry: a name bound to a URL
// whose scheme selects the backend (remote.Open dispatches on it).
type RemoteSpec struct {
	URL string `yaml:"url"`
}

// Config is the persisted contents of ".lfc/config".
type Config struct {
	DefaultRemote string                `yaml:"default_remote,omitempty"`
	Remotes       map[string]RemoteSpec `yaml:"remotes,omitempty"`
	AutoPull      bool                  `yaml:"auto_pull"`

	// HashCheck selects how working-tree files are compared against their
	// sidecars: "always" re-hashes content, "never" trusts existence, and
	// "size" (the default when empty) compares byte lengths.
	HashCheck string `yaml:"hash_check,omitempty"`

	// Umask lists the permission bits cleared from newly written cache
	// blobs; 0 clears none. Materialized working-tree files are always
	// set to 0644 and do not consult it.
	Umask int `yaml:"umask"`
}

// Repo is a handle to an initialized repository's ".lfc" state, threaded
// through reconcile/transfer operations explicitly rather than held in a
// process-wide singleton.
type Repo struct {
	// Root is the repository's top-level working directory.
	Root string
	// Dir is Root's ".lfc" subdirectory.
	Dir string

	cfg Config
}

// configPath returns the config file's path, honoring LFC_CONFIG when
// set.
func configPath(dir string) string {
	if v := os.Getenv("LFC_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(dir, "config")
}

func lockPath(dir string) string { return configPath(dir) + ".lock" }

// cacheDir returns the cache root, honoring LFC_CACHE_DIR when set.
func cacheDir(dir string) string {
	if v := os.Getenv("LFC_CACHE_DIR"); v != "" {
		return v
	}
	return filepath.Join(dir, "cache")
}

// Init creates ".lfc" under root if absent, writes a default config, and
// ensures ".lfc/cache" is ignored by git. It's idempotent: calling Init on
// an already-initialized repo returns the existing state unchanged.
func Init(root string) (*Repo, error) {
	dir := filepath.Join(root, ".lfc")
	if err := os.MkdirAll(cacheDir(dir), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(cacheDir(dir), "tmp"), 0o755); err != nil {
		return nil, err
	}

	if err := ensureIgnoreLine(filepath.Join(dir, ".gitignore"), "cache/"); err != nil {
		return nil, err
	}
	if err := ensureIgnoreLine(filepath.Join(dir, ".gitignore"), "config.lock"); err != nil {
		return nil, err
	}

	repo := &Repo{Root: root, Dir: dir}
	if _, err := os.Stat(configPath(dir)); errors.Is(err, fs.ErrNotExist) {
		repo.cfg = Config{Remotes: map[string]RemoteSpec{}}
		if err := repo.save(); err != nil {
			return nil, err
		}
		return repo, nil
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Open loads an existing repository's state, failing with ErrNotARepo if
// ".lfc/config" doesn't exist.
func Open(root string) (*Repo, error) {
	dir := filepath.Join(root, ".lfc")
	repo := &Repo{Root: root, Dir: dir}
	if _, err := os.Stat(configPath(dir)); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotARepo
	} else if err != nil {
		return nil, err
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

// CacheDir returns "<root>/.lfc/cache", or LFC_CACHE_DIR when set.
func (r *Repo) CacheDir() string { return cacheDir(r.Dir) }

// Config returns a copy of the current in-memory config.
func (r *Repo) Config() Config { return r.cfg }

func (r *Repo) load() error {
	b, err := os.ReadFile(configPath(r.Dir))
	if err != nil {
		return err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return fmt.Errorf("repostate: parsing config: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]RemoteSpec{}
	}
	r.cfg = cfg
	return nil
}

// save writes the config atomically (temp file + rename), holding an
// exclusive lock file for the write window.
func (r *Repo) save() error {
	unlock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	b, err := yaml.Marshal(r.cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.Dir, ".config-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, configPath(r.Dir)); err != nil {
		return err
	}
	ok = true
	return nil
}

// acquireLock takes the exclusive ".lfc/config.lock" file via O_EXCL,
// returning a function that releases it. Held only for the duration of a
// config write; not a general-purpose repository lock.
func (r *Repo) acquireLock() (func(), error) {
	f, err := os.OpenFile(lockPath(r.Dir), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("repostate: config is locked by another process: %w", err)
	}
	f.Close()
	return func() { os.Remove(lockPath(r.Dir)) }, nil
}

// RemoteAdd registers a new remote name/URL pair.
func (r *Repo) RemoteAdd(name, url string) error {
	if _, exists := r.cfg.Remotes[name]; exists {
		return fmt.Errorf("%w: %q", ErrRemoteExists, name)
	}
	if r.cfg.Remotes == nil {
		r.cfg.Remotes = map[string]RemoteSpec{}
	}
	r.cfg.Remotes[name] = RemoteSpec{URL: url}
	if r.cfg.DefaultRemote == "" {
		r.cfg.DefaultRemote = name
	}
	return r.save()
}

// RemoteRemove deletes a remote by name.
func (r *Repo) RemoteRemove(name string) error {
	if _, exists := r.cfg.Remotes[name]; !exists {
		return fmt.Errorf("%w: %q", ErrRemoteNotFound, name)
	}
	delete(r.cfg.Remotes, name)
	if r.cfg.DefaultRemote == name {
		r.cfg.DefaultRemote = ""
	}
	return r.save()
}

// RemoteSetURL changes the URL of an existing remote.
func (r *Repo) RemoteSetURL(name, url string) error {
	spec, exists := r.cfg.Remotes[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrRemoteNotFound, name)
	}
	spec.URL = url
	r.cfg.Remotes[name] = spec
	return r.save()
}

// RemoteList returns remote names in sorted order.
func (r *Repo) RemoteList() []string {
	names := make([]string, 0, len(r.cfg.Remotes))
	for name := range r.cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remote looks up a remote's spec by name, falling back to DefaultRemote
// when name is empty.
func (r *Repo) Remote(name string) (RemoteSpec, error) {
	if name == "" {
		name = r.cfg.DefaultRemote
	}
	spec, ok := r.cfg.Remotes[name]
	if !ok {
		return RemoteSpec{}, fmt.Errorf("%w: %q", ErrRemoteNotFound, name)
	}
	return spec, nil
}

// SetConfigValue sets a scalar config option by dotted key (e.g.
// "core.autopull", "core.hashcheck", "core.umask") and persists it.
func (r *Repo) SetConfigValue(key, value string) error {
	switch key {
	case "core.autopull":
		r.cfg.AutoPull = value == "true" || value == "1"
	case "core.hashcheck":
		r.cfg.HashCheck = value
	case "core.defaultremote":
		r.cfg.DefaultRemote = value
	case "core.umask":
		n, err := strconv.ParseInt(value, 8, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("repostate: invalid umask %q (want octal, e.g. 022)", value)
		}
		r.cfg.Umask = int(n)
	default:
		return fmt.Errorf("repostate: unknown config key %q", key)
	}
	return r.save()
}

// GetConfigValue reads a scalar config option by dotted key.
func (r *Repo) GetConfigValue(key string) (string, error) {
	switch key {
	case "core.autopull":
		return fmt.Sprintf("%v", r.cfg.AutoPull), nil
	case "core.hashcheck":
		return r.cfg.HashCheck, nil
	case "core.defaultremote":
		return r.cfg.DefaultRemote, nil
	case "core.umask":
		return strconv.FormatInt(int64(r.cfg.Umask), 8), nil
	default:
		return "", fmt.Errorf("repostate: unknown config key %q", key)
	}
}
