package transfer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/lfc-dev/lfc/internal/cache"
)

// fakeBackend is an in-memory remote.Backend for exercising Engine
// without a real transport.
type fakeBackend struct {
	blobs map[cache.Hash][]byte
	// failHas, when set, makes Has fail for this hash with an
	// unclassified error (recorded by the engine as reason "io") instead
	// of returning false.
	failHas map[cache.Hash]bool
	corrupt map[cache.Hash]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{blobs: map[cache.Hash][]byte{}}
}

func (b *fakeBackend) Has(ctx context.Context, h cache.Hash) (bool, error) {
	if b.failHas[h] {
		return false, &transientErr{}
	}
	_, ok := b.blobs[h]
	return ok, nil
}

func (b *fakeBackend) Get(ctx context.Context, h cache.Hash) (io.ReadCloser, error) {
	content, ok := b.blobs[h]
	if !ok {
		return nil, fakeMissingErr{}
	}
	if b.corrupt[h] {
		return io.NopCloser(bytes.NewReader(append(append([]byte{}, content...), 'x'))), nil
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *fakeBackend) Put(ctx context.Context, h cache.Hash, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.blobs[h] = data
	return nil
}

func (b *fakeBackend) List(ctx context.Context) (<-chan cache.Hash, <-chan error) {
	hashes := make(chan cache.Hash, len(b.blobs))
	errc := make(chan error, 1)
	for h := range b.blobs {
		hashes <- h
	}
	close(hashes)
	close(errc)
	return hashes, errc
}

type transientErr struct{}

func (transientErr) Error() string { return "transient failure" }

type fakeMissingErr struct{}

func (fakeMissingErr) Error() string { return "missing" }

func TestEnginePushSkipsPresent(t *testing.T) {
	store := cache.New(t.TempDir())
	h, _, err := store.StoreReader(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}

	backend := newFakeBackend()
	backend.blobs[h] = []byte("payload")

	e := New(store, backend, 2)
	summary, err := e.Run(context.Background(), Push, []cache.Hash{h})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Success() {
		t.Fatalf("Success() = false, events = %+v", summary.Events)
	}
	if summary.Events[0].Outcome != OutcomeSkippedPresent {
		t.Fatalf("Outcome = %v, want skipped-present", summary.Events[0].Outcome)
	}
}

func TestEnginePushSendsMissing(t *testing.T) {
	store := cache.New(t.TempDir())
	h, _, err := store.StoreReader(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}

	backend := newFakeBackend()
	e := New(store, backend, 2)
	summary, err := e.Run(context.Background(), Push, []cache.Hash{h})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Success() {
		t.Fatalf("Success() = false, events = %+v", summary.Events)
	}
	if summary.Events[0].Outcome != OutcomeSent {
		t.Fatalf("Outcome = %v, want sent", summary.Events[0].Outcome)
	}
	if string(backend.blobs[h]) != "payload" {
		t.Fatalf("backend content = %q, want payload", backend.blobs[h])
	}
}

func TestEnginePullReceivesAndVerifies(t *testing.T) {
	source := cache.New(t.TempDir())
	h, _, err := source.StoreReader(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}

	backend := newFakeBackend()
	backend.blobs[h] = []byte("payload")

	dest := cache.New(t.TempDir())
	e := New(dest, backend, 2)
	summary, err := e.Run(context.Background(), Pull, []cache.Hash{h})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Success() {
		t.Fatalf("Success() = false, events = %+v", summary.Events)
	}
	if summary.Events[0].Outcome != OutcomeReceived {
		t.Fatalf("Outcome = %v, want received", summary.Events[0].Outcome)
	}
	if !dest.Has(h) {
		t.Fatalf("destination cache missing %s after pull", h)
	}
}

func TestEnginePullCorruptFails(t *testing.T) {
	source := cache.New(t.TempDir())
	h, _, err := source.StoreReader(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}

	backend := newFakeBackend()
	backend.blobs[h] = []byte("payload")
	backend.corrupt = map[cache.Hash]bool{h: true}

	dest := cache.New(t.TempDir())
	e := New(dest, backend, 2)
	summary, err := e.Run(context.Background(), Pull, []cache.Hash{h})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Success() {
		t.Fatalf("Success() = true, want false for corrupt transfer")
	}
	if summary.Events[0].Outcome != OutcomeFailed || summary.Events[0].Reason != "corrupt" {
		t.Fatalf("event = %+v, want failed/corrupt", summary.Events[0])
	}
	if !summary.AnyCorrupt() {
		t.Fatalf("AnyCorrupt() = false, want true")
	}
	if dest.Has(h) {
		t.Fatalf("corrupt blob was promoted into destination cache")
	}
}

func TestEnginePullMissingAtSource(t *testing.T) {
	dest := cache.New(t.TempDir())
	backend := newFakeBackend()

	var h cache.Hash
	h[0] = 7
	e := New(dest, backend, 1)
	summary, err := e.Run(context.Background(), Pull, []cache.Hash{h})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Success() {
		t.Fatalf("Success() = false; skipped-missing-at-source is not a failure")
	}
	if summary.Events[0].Outcome != OutcomeSkippedMissingAtSource {
		t.Fatalf("Outcome = %v, want skipped-missing-at-source", summary.Events[0].Outcome)
	}
}

func TestEventsSortedByHash(t *testing.T) {
	store := cache.New(t.TempDir())
	backend := newFakeBackend()
	var hashes []cache.Hash
	for _, content := range []string{"a", "b", "c", "d"} {
		h, _, err := store.StoreReader(strings.NewReader(content))
		if err != nil {
			t.Fatalf("StoreReader: %v", err)
		}
		backend.blobs[h] = []byte(content)
		hashes = append(hashes, h)
	}

	e := New(store, backend, 4)
	summary, err := e.Run(context.Background(), Push, hashes)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i < len(summary.Events); i++ {
		if summary.Events[i-1].Hash > summary.Events[i].Hash {
			t.Fatalf("events not sorted by hash: %+v", summary.Events)
		}
	}
}
