// Package fetch provides the size-capped, timeout-bounded HTTP GET primitive
// used by every network stage of the aggregation pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// FailureKind classifies a fetch failure. Callers branch on the kind, never on
// the underlying error text.
type FailureKind string

const (
	FailTimeout  FailureKind = "timeout"
	FailStatus   FailureKind = "status"
	FailTooLarge FailureKind = "too_large"
	FailNetwork  FailureKind = "network"
)

// Failure is the typed error returned by Fetch.
type Failure struct {
	Kind   FailureKind
	URL    string
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Kind == FailStatus {
		return fmt.Sprintf("fetch %s: status %d", f.URL, f.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", f.URL, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, or "" if err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// userAgents is a fixed pool of browser/OS identities rotated across requests
// so feed hosts don't throttle a single identity.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Client performs size-capped GETs with a rotating User-Agent. No retries:
// callers decide whether a failed item is dropped or re-queued.
type Client struct {
	http    *http.Client
	timeout time.Duration
	headers map[string]string
	next    atomic.Uint64
}

// NewClient creates a Client with the given per-request deadline. A zero
// timeout falls back to 15 seconds.
func NewClient(timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		headers: headers,
	}
}

// UserAgent returns the next identity from the rotation pool.
func (c *Client) UserAgent() string {
	n := c.next.Add(1)
	return userAgents[int(n)%len(userAgents)]
}

// Fetch GETs url and returns at most maxBytes of the body. The body is
// streamed; a response exceeding maxBytes aborts with FailTooLarge rather than
// buffering the whole payload.
func (c *Client) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Failure{Kind: FailNetwork, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		kind := FailNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FailTimeout
		}
		return nil, &Failure{Kind: kind, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Kind: FailStatus, URL: url, Status: resp.StatusCode}
	}

	// Read one byte past the cap so an exactly-maxBytes body is not rejected.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		kind := FailNetwork
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			kind = FailTimeout
		}
		return nil, &Failure{Kind: kind, URL: url, Err: err}
	}
	if int64(len(body)) > maxBytes {
		return nil, &Failure{Kind: FailTooLarge, URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxBytes)}
	}

	return body, nil
}

// Resolve follows the redirect chain of rawURL and returns the final URL. Used
// to canonicalize shortener links before hashing.
func (c *Client) Resolve(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", &Failure{Kind: FailNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil || resp.StatusCode >= 400 {
		if err == nil {
			resp.Body.Close()
		}
		// Some hosts reject HEAD; retry the chain with GET and discard the body.
		req, gerr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if gerr != nil {
			return "", &Failure{Kind: FailNetwork, URL: rawURL, Err: gerr}
		}
		req.Header.Set("User-Agent", c.UserAgent())
		resp, gerr = c.http.Do(req)
		if gerr != nil {
			kind := FailNetwork
			if errors.Is(gerr, context.DeadlineExceeded) {
				kind = FailTimeout
			}
			return "", &Failure{Kind: kind, URL: rawURL, Err: gerr}
		}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		return "", &Failure{Kind: FailStatus, URL: rawURL, Status: resp.StatusCode}
	}

	return resp.Request.URL.String(), nil
}
