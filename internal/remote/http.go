package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lfc-dev/lfc/internal/cache"
)

// CredentialsProvider authenticates outgoing requests for a backend that
// needs it, handed in at construction. HTTP's realization is a
// header-injecting hook; callers that need no auth pass nil.
type CredentialsProvider interface {
	Apply(req *http.Request)
}

// httpBackend serves an http(s):// remote: GET for Get, HEAD for Has,
// PUT for Put (the method is configurable, some servers expect POST).
// Retries/backoff are delegated to go-retryablehttp rather than
// hand-rolled.
type httpBackend struct {
	base        *url.URL
	client      *retryablehttp.Client
	putMethod   string
	creds       CredentialsProvider
	headTimeout time.Duration
	bulkTimeout time.Duration
}

func newHTTPBackend(base *url.URL) (*httpBackend, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 4 * time.Second
	rc.Logger = nil

	return &httpBackend{
		base:        base,
		client:      rc,
		putMethod:   http.MethodPut,
		headTimeout: 30 * time.Second,
		bulkTimeout: 300 * time.Second,
	}, nil
}

// WithCredentials attaches a CredentialsProvider, applied to every
// outgoing request.
func (b *httpBackend) WithCredentials(c CredentialsProvider) *httpBackend {
	b.creds = c
	return b
}

// WithPutMethod overrides the HTTP method used for Put (default PUT; some
// servers expect POST).
func (b *httpBackend) WithPutMethod(method string) *httpBackend {
	b.putMethod = method
	return b
}

func (b *httpBackend) objectURL(h cache.Hash) string {
	hex := h.String()
	u := *b.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + hex[:2] + "/" + hex[2:]
	return u.String()
}

func (b *httpBackend) newRequest(ctx context.Context, method, url string, body io.Reader, size int64) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, classify(KindPermanent, err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if b.creds != nil {
		b.creds.Apply(req.Request)
	}
	return req, nil
}

func (b *httpBackend) Has(ctx context.Context, h cache.Hash) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.headTimeout)
	defer cancel()

	req, err := b.newRequest(ctx, http.MethodHead, b.objectURL(h), nil, -1)
	if err != nil {
		return false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false, classify(KindTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, classify(classifyStatus(resp.StatusCode), fmt.Errorf("HEAD %s: status %d", b.objectURL(h), resp.StatusCode))
	}
}

func (b *httpBackend) Get(ctx context.Context, h cache.Hash) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, b.bulkTimeout)
	req, err := b.newRequest(ctx, http.MethodGet, b.objectURL(h), nil, -1)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		cancel()
		return nil, classify(KindTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		cancel()
		return nil, classify(KindMissing, fmt.Errorf("GET %s: not found", b.objectURL(h)))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}, nil
	default:
		resp.Body.Close()
		cancel()
		return nil, classify(classifyStatus(resp.StatusCode), fmt.Errorf("GET %s: status %d", b.objectURL(h), resp.StatusCode))
	}
}

func (b *httpBackend) Put(ctx context.Context, h cache.Hash, r io.Reader, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, b.bulkTimeout)
	defer cancel()

	req, err := b.newRequest(ctx, b.putMethod, b.objectURL(h), r, size)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return classify(KindTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return classify(classifyStatus(resp.StatusCode), fmt.Errorf("%s %s: status %d", b.putMethod, b.objectURL(h), resp.StatusCode))
}

// List is not supported over plain HTTP(S): there is no portable
// enumeration endpoint to call. Callers relying on List should prefer a
// backend that supports it, or resolve hashes from sidecars instead (the
// path the transfer engine already takes for pull/push).
func (b *httpBackend) List(ctx context.Context) (<-chan cache.Hash, <-chan error) {
	hashes := make(chan cache.Hash)
	errc := make(chan error, 1)
	close(hashes)
	errc <- classify(KindPermanent, fmt.Errorf("remote: http backend does not support List"))
	close(errc)
	return hashes, errc
}

// classifyStatus maps an HTTP status code to an ErrorKind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusNotFound:
		return KindMissing
	case code >= 500:
		return KindTransient
	case code >= 400:
		return KindPermanent
	default:
		return KindUnknown
	}
}

// cancelOnCloseBody releases the request's context when the response body
// is closed, so Get's caller controls the timeout's lifetime via Close
// instead of the (now-deferred) original Get call.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnCloseBody) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
