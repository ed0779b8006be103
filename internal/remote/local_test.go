package remote

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/repostate"
)

func storeHash(t *testing.T, content string) (cache.Hash, int64) {
	t.Helper()
	h, size, err := cache.New(t.TempDir()).StoreReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("StoreReader: %v", err)
	}
	return h, size
}

func TestLocalBackendPutHasGet(t *testing.T) {
	ctx := context.Background()
	b := newLocalBackend(t.TempDir())
	h, size := storeHash(t, "remote content")

	if ok, err := b.Has(ctx, h); err != nil || ok {
		t.Fatalf("Has before Put = %v, %v, want false, nil", ok, err)
	}

	if err := b.Put(ctx, h, strings.NewReader("remote content"), size); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ok, err := b.Has(ctx, h)
	if err != nil || !ok {
		t.Fatalf("Has after Put = %v, %v, want true, nil", ok, err)
	}

	r, err := b.Get(ctx, h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "remote content" {
		t.Fatalf("content = %q, want %q", got, "remote content")
	}
}

func TestLocalBackendGetMissingClassifiesMissing(t *testing.T) {
	ctx := context.Background()
	b := newLocalBackend(t.TempDir())
	var h cache.Hash
	h[0] = 9

	_, err := b.Get(ctx, h)
	if err == nil {
		t.Fatalf("Get: want error")
	}
	if Classify(err) != KindMissing {
		t.Fatalf("Classify = %v, want KindMissing", Classify(err))
	}
}

func TestLocalBackendList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := newLocalBackend(dir)

	h1, s1 := storeHash(t, "one")
	h2, s2 := storeHash(t, "two")
	if err := b.Put(ctx, h1, strings.NewReader("one"), s1); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := b.Put(ctx, h2, strings.NewReader("two"), s2); err != nil {
		t.Fatalf("Put 2: %v", err)
	}

	hashes, errc := b.List(ctx)
	seen := map[cache.Hash]bool{}
	for h := range hashes {
		seen[h] = true
	}
	if err := <-errc; err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(seen) != 2 || !seen[h1] || !seen[h2] {
		t.Fatalf("List = %v, want {%s, %s}", seen, h1, h2)
	}
}

func TestLocalBackendPutIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newLocalBackend(t.TempDir())
	h, size := storeHash(t, "same bytes")

	if err := b.Put(ctx, h, strings.NewReader("same bytes"), size); err != nil {
		t.Fatalf("Put #1: %v", err)
	}
	if err := b.Put(ctx, h, strings.NewReader("same bytes"), size); err != nil {
		t.Fatalf("Put #2 (already present): %v", err)
	}
}

func TestParseSCPLike(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPath string
		wantOK   bool
	}{
		{"user@host:path/to/store", "user@host", "path/to/store", true},
		{"https://example.com/x", "", "", false},
		{"/abs/local/path", "", "", false},
		{"host:path", "host", "path", true},
	}
	for _, c := range cases {
		host, path, ok := parseSCPLike(c.in)
		if ok != c.wantOK || host != c.wantHost || path != c.wantPath {
			t.Fatalf("parseSCPLike(%q) = (%q, %q, %v), want (%q, %q, %v)", c.in, host, path, ok, c.wantHost, c.wantPath, c.wantOK)
		}
	}
}

func TestOpenDispatchesLocal(t *testing.T) {
	backend, err := Open(repostate.RemoteSpec{URL: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := backend.(*localBackend); !ok {
		t.Fatalf("Open = %T, want *localBackend", backend)
	}
}
