// Package gitutil wraps the pieces of Git plumbing lfc depends on: finding
// the repository root, reading/writing git config, and listing tracked
// files. Everything here either shells out to the git binary or, for
// structured config writes, goes through go-git.
package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// LFCDirName is the directory name lfc stores its state under, relative to
// the repository root.
const LFCDirName = ".lfc"

// TopLevel returns the absolute path of the working tree's root.
func TopLevel() (string, error) {
	out, err := run("git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository (or any parent): %w", err)
	}
	return out, nil
}

// LFCDir returns "<repo-root>/.lfc".
func LFCDir() (string, error) {
	top, err := TopLevel()
	if err != nil {
		return "", err
	}
	return filepath.Join(top, LFCDirName), nil
}

// OpenRepo opens the repository containing the current directory.
func OpenRepo() (*git.Repository, error) {
	top, err := TopLevel()
	if err != nil {
		return nil, err
	}
	return git.PlainOpenWithOptions(top, &git.PlainOpenOptions{DetectDotGit: true})
}

// ConfigGet reads a single git config value, scanning all scopes. Returns
// ("", nil) if the key is unset.
func ConfigGet(key string) (string, error) {
	out, err := run("git", "config", "--get", key)
	if err != nil {
		// git config exits 1 when the key is unset; that's not an error here.
		return "", nil
	}
	return out, nil
}

// ConfigSet writes git config entries scoped to the repository (local
// config), through go-git so the write is transactional with the rest of
// go-git's config model.
func ConfigSet(values map[string]string) error {
	repo, err := OpenRepo()
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	for key, value := range values {
		parts := strings.SplitN(key, ".", 2)
		if len(parts) != 2 {
			continue
		}
		sub := strings.Split(parts[1], ".")
		name := sub[len(sub)-1]
		if len(sub) == 1 {
			cfg.Raw.Section(parts[0]).SetOption(name, value)
			continue
		}
		cfg.Raw.Section(parts[0]).Subsection(strings.Join(sub[:len(sub)-1], ".")).SetOption(name, value)
	}
	return repo.Storer.SetConfig(cfg)
}

// LsFiles lists tracked, non-ignored files under the working tree,
// honoring whatever ignore rules Git itself applies — no re-implemented
// ignore parsing.
func LsFiles(paths ...string) ([]string, error) {
	args := []string{"ls-files", "-z", "--"}
	if len(paths) > 0 {
		args = append(args, paths...)
	} else {
		args = append(args, ".")
	}
	out, err := runRaw("git", args...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) == 0 {
			continue
		}
		files = append(files, string(p))
	}
	return files, nil
}

// AddToIndex stages a path.
func AddToIndex(path string) error {
	_, err := run("git", "add", "--", path)
	return err
}

// Clone runs "git clone" of repoURL into dir (empty for git's own default
// naming), returning the cloned working tree's top-level path. lfc's own
// `clone` verb shells out to git for the porcelain clone itself and only
// takes over once the working tree exists, to resolve and pull sidecar
// blobs.
func Clone(repoURL, dir string) (string, error) {
	args := []string{"clone", repoURL}
	if dir != "" {
		args = append(args, dir)
	}
	if _, err := runRaw("git", args...); err != nil {
		return "", err
	}
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	name := strings.TrimSuffix(filepath.Base(repoURL), ".git")
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	return abs, nil
}

// LsTree lists every file path recorded at ref, so clone can resolve the
// hashes referenced by a ref's sidecars before any checkout happens.
func LsTree(ref string) ([]string, error) {
	out, err := runRaw("git", "ls-tree", "-r", "-z", "--name-only", ref)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) == 0 {
			continue
		}
		files = append(files, string(p))
	}
	return files, nil
}

// ShowFile reads path's content as it exists at ref, without touching the
// working tree.
func ShowFile(ref, path string) ([]byte, error) {
	return runRaw("git", "show", fmt.Sprintf("%s:%s", ref, path))
}

func run(name string, args ...string) (string, error) {
	out, err := runRaw(name, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runRaw(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.Bytes(), nil
}
