package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	userAgent = "stocknews-engine/1.0"

	// maxBodyBytes caps how much of a response body is buffered. A larger
	// body fails the call instead of being truncated.
	maxBodyBytes = 8 << 20
)

// --- Process-wide HTTP state ---

var (
	sharedMu sync.Mutex
	shared   *http.Transport
)

// Init prepares the process-wide HTTP machinery shared by every client.
// The application calls it once at startup; clients call it lazily when
// the application did not. Repeated calls are no-ops.
func Init() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	initLocked()
}

// initLocked creates the shared transport if needed. sharedMu must be held.
func initLocked() *http.Transport {
	if shared != nil {
		return shared
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if ok {
		shared = base.Clone()
	} else {
		shared = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	// One connection per call; nothing is kept open between requests.
	shared.DisableKeepAlives = true
	return shared
}

// Shutdown releases the process-wide HTTP machinery. The application calls
// it once on exit. A later request re-initializes lazily.
func Shutdown() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		return
	}
	shared.CloseIdleConnections()
	shared = nil
}

func roundTripper() http.RoundTripper {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return initLocked()
}

// --- Transport ---

// Transport performs one GET or POST against a fixed base address and
// classifies the outcome.
type Transport struct {
	baseURL         string
	followRedirects bool

	mu      sync.RWMutex
	timeout time.Duration
}

// NewTransport creates a transport for baseURL. The timeout applies to the
// whole request, including reading the body; zero or negative disables it.
func NewTransport(baseURL string, timeout time.Duration, followRedirects bool) *Transport {
	return &Transport{
		baseURL:         strings.TrimRight(baseURL, "/"),
		followRedirects: followRedirects,
		timeout:         timeout,
	}
}

// BaseURL returns the address every endpoint is appended to.
func (t *Transport) BaseURL() string { return t.baseURL }

// FollowRedirects reports whether 3xx responses are followed.
func (t *Transport) FollowRedirects() bool { return t.followRedirects }

// SetTimeout changes the timeout used by subsequent calls.
func (t *Transport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
}

// Timeout returns the current per-request timeout.
func (t *Transport) Timeout() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.timeout
}

// Get issues GET baseURL+endpoint.
func (t *Transport) Get(ctx context.Context, endpoint string) TransportResult {
	return t.do(ctx, http.MethodGet, endpoint, nil)
}

// Post issues POST baseURL+endpoint with a JSON body.
func (t *Transport) Post(ctx context.Context, endpoint string, body []byte) TransportResult {
	if body == nil {
		body = []byte{}
	}
	return t.do(ctx, http.MethodPost, endpoint, body)
}

func (t *Transport) do(ctx context.Context, method, endpoint string, body []byte) TransportResult {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+endpoint, reader)
	if err != nil {
		return TransportResult{Error: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client().Do(req)
	if err != nil {
		return TransportResult{Error: describeError(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return TransportResult{Error: "read response body: " + describeError(err)}
	}
	if len(data) > maxBodyBytes {
		return TransportResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("response body exceeds %d MiB", maxBodyBytes>>20),
		}
	}

	return TransportResult{
		StatusCode: resp.StatusCode,
		Body:       data,
		Succeeded:  resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
}

// client builds a per-call http.Client over the shared round-tripper so the
// current timeout is always honoured.
func (t *Transport) client() *http.Client {
	c := &http.Client{
		Transport: roundTripper(),
		Timeout:   t.Timeout(),
	}
	if !t.followRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// describeError turns a client error into a human-readable message.
func describeError(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return fmt.Sprintf("timeout was reached: %s %s", uerr.Op, uerr.URL)
		}
		if uerr.Err != nil {
			return fmt.Sprintf("%s %s: %v", uerr.Op, uerr.URL, uerr.Err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout was reached"
	}
	return err.Error()
}
