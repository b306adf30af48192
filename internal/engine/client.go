// Package engine is the client side of the remote news analysis service.
//
// It pushes news batches to the service, asks for AI-generated ticker
// analysis and fetches cached analyses. Every operation reports failure as
// data (a TransportResult or AnalysisResult with Succeeded=false) rather
// than as a Go error, and the client remembers the most recent failure
// message in LastError.
package engine

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stocknews/internal/logging"
)

// Client composes the codec and transport into the service operations.
type Client struct {
	transport *Transport
	language  string
	log       *logrus.Entry

	mu        sync.Mutex
	lastError string
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout         time.Duration
	followRedirects bool
	language        string
	log             *logrus.Entry
}

// WithTimeout sets the initial per-request timeout in seconds.
func WithTimeout(seconds int) Option {
	return func(o *clientOptions) { o.timeout = time.Duration(seconds) * time.Second }
}

// WithFollowRedirects controls whether 3xx responses are followed. The
// setting applies to GET and POST alike.
func WithFollowRedirects(follow bool) Option {
	return func(o *clientOptions) { o.followRedirects = follow }
}

// WithLanguage sets the language used when RequestAnalysis gets none.
func WithLanguage(language string) Option {
	return func(o *clientOptions) { o.language = language }
}

// WithLogger sets the logger for request tracing.
func WithLogger(log *logrus.Entry) Option {
	return func(o *clientOptions) { o.log = log }
}

// NewClient creates a client for the service at baseURL. An empty baseURL
// selects DefaultBaseURL. Construction never fails: an unusable address
// surfaces as a transport error on first use.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	o := clientOptions{
		timeout:         DefaultTimeoutSeconds * time.Second,
		followRedirects: true,
		language:        DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Nop()
	}

	t := NewTransport(baseURL, o.timeout, o.followRedirects)
	return &Client{
		transport: t,
		language:  o.language,
		log:       o.log.WithField("service", t.BaseURL()),
	}
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.transport.BaseURL() }

// Language returns the default analysis language.
func (c *Client) Language() string { return c.language }

// SetTimeout changes the timeout for all subsequent calls. The value is
// not validated; zero or negative disables the timeout.
func (c *Client) SetTimeout(seconds int) {
	c.transport.SetTimeout(time.Duration(seconds) * time.Second)
}

// Timeout returns the current per-request timeout.
func (c *Client) Timeout() time.Duration { return c.transport.Timeout() }

// LastError returns the most recent failure message. It is overwritten by
// each failing call and never cleared by a successful one.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Client) setLastError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// CheckHealth reports whether the service answers its liveness probe with
// a 2xx status and "alive": true.
func (c *Client) CheckHealth(ctx context.Context) bool {
	resp := c.get(ctx, EndpointHealth)
	return resp.Succeeded && decodeAlive(resp.Body)
}

// SubmitNews posts a batch of news items. The raw transport result is
// returned; callers inspect Succeeded and StatusCode.
func (c *Client) SubmitNews(ctx context.Context, items []NewsItem, requestAnalysis bool) TransportResult {
	body, err := EncodeNewsBatch(items, requestAnalysis)
	if err != nil {
		c.setLastError(err.Error())
		return TransportResult{Error: err.Error()}
	}
	resp := c.post(ctx, EndpointNews, body)
	c.log.WithFields(logrus.Fields{
		"items":  len(items),
		"result": resp.String(),
	}).Debug("submitted news batch")
	return resp
}

// RequestAnalysis asks the service to analyze tickers. An empty language
// selects the client's default.
func (c *Client) RequestAnalysis(ctx context.Context, tickers []string, language string) AnalysisResult {
	if language == "" {
		language = c.language
	}
	body, err := EncodeAnalysisRequest(tickers, language)
	if err != nil {
		c.setLastError(err.Error())
		return AnalysisResult{Error: err.Error()}
	}

	resp := c.post(ctx, EndpointAnalyze, body)
	if !resp.Succeeded {
		msg := resp.Error
		if msg == "" {
			msg = ErrMsgRequestFailed
		}
		c.setLastError(msg)
		c.log.WithFields(logrus.Fields{
			"tickers": strings.Join(tickers, ","),
			"status":  resp.StatusCode,
		}).Debugf("analysis request failed: %s", msg)
		return AnalysisResult{Error: msg}
	}

	res := DecodeAnalysis(resp.Body)
	if len(res.Missing) > 0 {
		c.log.WithField("missing", strings.Join(res.Missing, ",")).
			Warn("analysis response lacks expected fields")
	}
	return res
}

// GetCachedAnalysis fetches a previously generated analysis for ticker.
// Every failure is reported as ErrMsgNotCached.
func (c *Client) GetCachedAnalysis(ctx context.Context, ticker string) AnalysisResult {
	resp := c.get(ctx, EndpointCachedAnalysis+url.PathEscape(ticker))
	if !resp.Succeeded {
		return AnalysisResult{Error: ErrMsgNotCached}
	}
	return DecodeAnalysis(resp.Body)
}

// get and post record transport-level failures as the last error.
func (c *Client) get(ctx context.Context, endpoint string) TransportResult {
	resp := c.transport.Get(ctx, endpoint)
	c.trace("GET", endpoint, resp)
	return resp
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) TransportResult {
	resp := c.transport.Post(ctx, endpoint, body)
	c.trace("POST", endpoint, resp)
	return resp
}

func (c *Client) trace(method, endpoint string, resp TransportResult) {
	if resp.Error != "" {
		c.setLastError(resp.Error)
	}
	c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
	}).Debug(resp.String())
}
