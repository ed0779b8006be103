// Package remote implements lfc's remote-backend abstraction: a single
// has/get/put/list contract realized by local-filesystem, SSH, HTTP(S),
// and S3 transports, dispatched by the URL scheme recorded in a
// repository's remote registry.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/repostate"
)

// ErrorKind classifies a backend failure at the transport boundary, so
// the transfer engine can decide whether to retry.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissing
	KindTransient
	KindPermanent
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// classifiedError carries an ErrorKind alongside the underlying cause, so
// Classify can recover it with errors.As without each backend having to
// agree on a shared sentinel per kind.
type classifiedError struct {
	kind ErrorKind
	err  error
}

func (c *classifiedError) Error() string { return c.err.Error() }
func (c *classifiedError) Unwrap() error { return c.err }

// Classify returns err's ErrorKind, as assigned by the backend that
// produced it, or KindUnknown if err was never classified.
func Classify(err error) ErrorKind {
	var c *classifiedError
	if errors.As(err, &c) {
		return c.kind
	}
	return KindUnknown
}

// classify wraps err with kind, unless err is nil.
func classify(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: err}
}

// Backend is the transport-agnostic contract the Transfer Engine drives.
// Every method receives a Hash, never a path: the backend organizes its
// own storage layout.
type Backend interface {
	// Has reports whether the blob for h is present at the remote.
	Has(ctx context.Context, h cache.Hash) (bool, error)
	// Get streams the blob for h. Returns a classified KindMissing error
	// if absent.
	Get(ctx context.Context, h cache.Hash) (io.ReadCloser, error)
	// Put uploads size bytes read from r as the blob for h.
	Put(ctx context.Context, h cache.Hash, r io.Reader, size int64) error
	// List streams every hash the remote currently holds. The error
	// channel is buffered, carries at most one error, and is closed when
	// listing ends; read it after draining the hash channel.
	List(ctx context.Context) (<-chan cache.Hash, <-chan error)
}

// Open dispatches a repostate.RemoteSpec to a concrete Backend by URL
// scheme. Recognized: "" / "file" (local filesystem path), "ssh" or the
// bare "user@host:path" form, "http"/"https", and "s3".
func Open(spec repostate.RemoteSpec) (Backend, error) {
	raw := spec.URL
	if raw == "" {
		return nil, fmt.Errorf("remote: empty URL")
	}

	if scpHost, scpPath, ok := parseSCPLike(raw); ok {
		return newSSHBackend(scpHost, scpPath)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: parsing URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "", "file":
		path := raw
		if u.Scheme == "file" {
			path = u.Path
		}
		return newLocalBackend(path), nil
	case "ssh":
		return newSSHBackend(u.Host, strings.TrimPrefix(u.Path, "/"))
	case "http", "https":
		return newHTTPBackend(u)
	case "s3":
		bucket := u.Host
		prefix := strings.TrimPrefix(u.Path, "/")
		return newS3Backend(bucket, prefix)
	default:
		return nil, fmt.Errorf("remote: unsupported URL scheme %q", u.Scheme)
	}
}

// parseSCPLike recognizes the scp-style "user@host:path" form for SSH
// remotes (as opposed to an explicit "ssh://" URL). A colon before any
// slash, with no "://" in the string, marks this form.
func parseSCPLike(raw string) (host, path string, ok bool) {
	if strings.Contains(raw, "://") {
		return "", "", false
	}
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return "", "", false
	}
	if slash := strings.IndexByte(raw, '/'); slash >= 0 && slash < idx {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}
