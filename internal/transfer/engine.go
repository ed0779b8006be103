package transfer

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/lfclog"
	"github.com/lfc-dev/lfc/internal/remote"
)

// DefaultJobs is the engine's default worker-pool size.
const DefaultJobs = 4

type reason string

const (
	reasonTransient reason = "transient"
	reasonPermanent reason = "permanent"
	reasonAuth      reason = "auth"
	reasonCorrupt   reason = "corrupt"
	reasonIO        reason = "io"
)

// Engine coordinates concurrent transfers between a local cache and one
// remote backend. It carries no process-wide state: one Engine value per
// run, threaded explicitly like every other lfc component.
type Engine struct {
	Store   *cache.Store
	Backend remote.Backend
	Jobs    int

	// Retries bounds how often a transient backend failure is retried;
	// RetryWait is the first backoff interval, doubled per attempt.
	// Permanent, auth, and corrupt failures are never retried.
	Retries   int
	RetryWait time.Duration
}

// New returns an Engine with jobs defaulted to DefaultJobs when <= 0 and
// the standard retry policy (up to 3 retries, 1s/2s/4s backoff).
func New(store *cache.Store, backend remote.Backend, jobs int) *Engine {
	if jobs <= 0 {
		jobs = DefaultJobs
	}
	return &Engine{Store: store, Backend: backend, Jobs: jobs, Retries: 3, RetryWait: time.Second}
}

// retry runs op, re-running it on transient classification up to
// e.Retries times with exponential backoff. The last error wins.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	wait := e.RetryWait
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || remote.Classify(err) != remote.KindTransient || attempt >= e.Retries {
			return err
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return err
		}
		wait *= 2
	}
}

// Run transfers the given hashes in dir's direction, against e.Backend.
// A per-hash failure is recorded and does not abort the batch; the
// returned Summary's Success() reflects the aggregate outcome. Run
// itself only returns a non-nil error for a setup failure that prevented
// the batch from starting at all.
func (e *Engine) Run(ctx context.Context, dir Direction, hashes []cache.Hash) (*Summary, error) {
	runID := uuid.NewString()
	sorted := append([]cache.Hash(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var (
		mu     sync.Mutex
		events = make([]Event, 0, len(sorted))
	)
	record := func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Jobs)
	var sf singleflight.Group

	for _, h := range sorted {
		h := h
		g.Go(func() error {
			var ev Event
			switch dir {
			case Push:
				ev = e.push(gctx, &sf, runID, h)
			case Pull, Clone:
				ev = e.pull(gctx, &sf, runID, h)
			}
			record(ev)
			return nil // per-hash failures don't abort the batch.
		})
	}
	// errgroup's inner functions never return non-nil, so Wait only
	// waits for the tasks; its error is always nil.
	_ = g.Wait()

	sort.Slice(events, func(i, j int) bool { return events[i].Hash < events[j].Hash })
	summary := &Summary{RunID: runID, Direction: dir, Events: events}

	log := lfclog.Get()
	for _, ev := range summary.Events {
		log.Info("transfer", "run_id", runID, "direction", dir, "hash", ev.Hash, "outcome", ev.Outcome, "reason", ev.Reason)
	}
	return summary, nil
}

// push uploads h from the local cache to the backend, skipping it if the
// backend already has it.
func (e *Engine) push(ctx context.Context, sf *singleflight.Group, runID string, h cache.Hash) Event {
	ev := Event{RunID: runID, Hash: h.String()}

	present, err := e.hasDedup(ctx, sf, h)
	if err != nil {
		return failEvent(ev, err)
	}
	if present {
		ev.Outcome = OutcomeSkippedPresent
		return ev
	}

	size, err := e.Store.Size(h)
	if err != nil {
		if errors.Is(err, cache.ErrMissing) {
			ev.Outcome = OutcomeFailed
			ev.Reason = string(reasonIO)
			return ev
		}
		return failEvent(ev, err)
	}
	// Each attempt reopens the blob: a failed Put may have consumed part
	// of the previous reader.
	if err := e.retry(ctx, func() error {
		r, err := e.Store.Open(h)
		if err != nil {
			return err
		}
		defer r.Close()
		return e.Backend.Put(ctx, h, r, size)
	}); err != nil {
		return failEvent(ev, err)
	}
	ev.Outcome = OutcomeSent
	return ev
}

// pull downloads h from the backend into the local cache, verifying its
// digest before promoting it.
func (e *Engine) pull(ctx context.Context, sf *singleflight.Group, runID string, h cache.Hash) Event {
	ev := Event{RunID: runID, Hash: h.String()}

	if e.Store.Has(h) {
		ev.Outcome = OutcomeSkippedPresent
		return ev
	}

	present, err := e.hasDedup(ctx, sf, h)
	if err != nil {
		return failEvent(ev, err)
	}
	if !present {
		ev.Outcome = OutcomeSkippedMissingAtSource
		return ev
	}

	err = e.retry(ctx, func() error {
		r, err := e.Backend.Get(ctx, h)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = e.Store.StoreExpecting(r, h)
		return err
	})
	if err != nil {
		if remote.Classify(err) == remote.KindMissing {
			ev.Outcome = OutcomeSkippedMissingAtSource
			return ev
		}
		if errors.Is(err, cache.ErrCorrupt) {
			ev.Outcome = OutcomeFailed
			ev.Reason = string(reasonCorrupt)
			return ev
		}
		return failEvent(ev, err)
	}
	ev.Outcome = OutcomeReceived
	return ev
}

// hasDedup coalesces concurrent Has probes against the same hash within
// one Run, since overlapping hash sets would otherwise double the
// backend's HEAD/stat traffic.
func (e *Engine) hasDedup(ctx context.Context, sf *singleflight.Group, h cache.Hash) (bool, error) {
	v, err, _ := sf.Do(h.String(), func() (interface{}, error) {
		var present bool
		err := e.retry(ctx, func() error {
			var err error
			present, err = e.Backend.Has(ctx, h)
			return err
		})
		return present, err
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func failEvent(ev Event, err error) Event {
	ev.Outcome = OutcomeFailed
	switch remote.Classify(err) {
	case remote.KindAuth:
		ev.Reason = string(reasonAuth)
	case remote.KindPermanent:
		ev.Reason = string(reasonPermanent)
	case remote.KindTransient:
		ev.Reason = string(reasonTransient)
	default:
		if errors.Is(err, io.ErrUnexpectedEOF) {
			ev.Reason = string(reasonTransient)
		} else {
			ev.Reason = string(reasonIO)
		}
	}
	return ev
}
