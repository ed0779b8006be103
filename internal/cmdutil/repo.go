package cmdutil

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/gitutil"
	"github.com/lfc-dev/lfc/internal/reconcile"
	"github.com/lfc-dev/lfc/internal/remote"
	"github.com/lfc-dev/lfc/internal/repostate"
	"github.com/lfc-dev/lfc/internal/transfer"
)

// sweepAge bounds how old an orphaned cache temp file must be before the
// startup sweep removes it, leaving room for a concurrent writer that is
// still streaming.
const sweepAge = 24 * time.Hour

// OpenRepo opens the lfc repository rooted at the current Git working
// tree's top level, failing with repostate.ErrNotARepo if "lfc init" was
// never run there.
func OpenRepo() (*repostate.Repo, error) {
	top, err := gitutil.TopLevel()
	if err != nil {
		return nil, err
	}
	return repostate.Open(top)
}

// Store returns a cache.Store rooted at repo's cache directory, carrying
// the repository's umask option, after sweeping orphaned temp files left
// by crashed writers.
func Store(repo *repostate.Repo) *cache.Store {
	s := cache.New(repo.CacheDir())
	s.Umask = repo.Config().Umask
	s.Sweep(sweepAge)
	return s
}

// Reconciler returns a reconcile.Reconciler for repo/store, applying mode
// when non-empty (otherwise reconcile.New's ModeLink default stands). The
// repository's hash-check policy and the --force flag ride along.
func Reconciler(repo *repostate.Repo, store *cache.Store, mode string, force bool) *reconcile.Reconciler {
	rc := reconcile.New(repo, store)
	if mode != "" {
		rc.Mode = reconcile.Mode(mode)
	}
	rc.HashCheck = repo.Config().HashCheck
	rc.Force = force
	return rc
}

// Backend resolves name (or the repository's default remote when empty)
// to a concrete remote.Backend.
func Backend(repo *repostate.Repo, name string) (remote.Backend, error) {
	spec, err := repo.Remote(name)
	if err != nil {
		return nil, err
	}
	return remote.Open(spec)
}

// Jobs resolves transfer concurrency: the -j/--jobs flag wins, then
// LFC_JOBS, then the git config key "lfc.jobs", then
// transfer.DefaultJobs.
func Jobs(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if v := os.Getenv("LFC_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if v, err := gitutil.ConfigGet("lfc.jobs"); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return transfer.DefaultJobs
}

// SignalContext derives a context cancelled on SIGINT (os.Interrupt), so
// in-flight transfer tasks stop at their next I/O boundary and temp
// files get cleaned up before the process exits.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
