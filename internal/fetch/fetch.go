// Package fetch implements the concurrent, polite HTTP fetch engine of
// spec §4.1. It never returns a Go error to the Planner for content-level
// failures: every attempt, successful or not, ends in a model.FetchOutcome.
//
// Grounded on the teacher's internal/fetch.Client (timeout/retry/redirect
// shape, concurrency semaphore), extended with per-host politeness
// (spec §4.1 Policies, §5, §8 invariant 8) and a typed outcome instead of
// a bare (body, contentType, error) tuple, since unsupported-type and
// too-large are outcomes here, not errors (spec §7).
package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/webresearch/internal/model"
)

// Client fetches URLs under global concurrency and per-host politeness
// limits, retrying transient failures with exponential backoff.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	// PerRequestTimeout bounds a single HTTP round trip.
	PerRequestTimeout time.Duration
	// MaxRetries is the number of additional attempts after the first, for
	// timeout/network-error outcomes. 5xx is retried once regardless.
	MaxRetries int
	// RedirectMaxHops caps redirect following. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrency caps simultaneous in-flight fetches across all hosts.
	// Zero means unlimited.
	MaxConcurrency int
	// PerHostMinInterval is the minimum spacing between the starts of
	// consecutive requests to the same host.
	PerHostMinInterval time.Duration
	// MaxBytes caps response body size; reading further truncates and the
	// outcome is reported as too-large.
	MaxBytes int64

	sem     chan struct{}
	semOnce sync.Once

	hostsMu sync.Mutex
	hosts   map[string]*hostGate
}

// hostGate serializes and paces requests to a single host.
type hostGate struct {
	mu        sync.Mutex
	lastStart time.Time
}

// Fetch performs one attempt-with-retries for task and always returns a
// terminal outcome; it never returns a non-nil error.
func (c *Client) Fetch(ctx context.Context, task model.CrawlTask) model.FetchOutcome {
	u, err := url.Parse(task.URL)
	if err != nil || !isHTTPScheme(u) {
		return model.FetchOutcome{URL: task.URL, Status: model.StatusSkipped, ErrorKind: model.ErrorKindNetwork, Err: errors.New("unsupported or invalid URL")}
	}

	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var last model.FetchOutcome
	fiveXXRetried := false
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return model.FetchOutcome{URL: task.URL, Status: model.StatusTimeout, ErrorKind: model.ErrorKindDeadline, Err: ctx.Err()}
		default:
		}

		start := time.Now()
		outcome := c.attempt(ctx, task.URL, u)
		outcome.ElapsedMS = time.Since(start).Milliseconds()
		last = outcome

		if outcome.Status == model.StatusOK {
			return outcome
		}

		retryable := outcome.ErrorKind == model.ErrorKindTimeout || outcome.ErrorKind == model.ErrorKindNetwork
		isServerError := outcome.ErrorKind == model.ErrorKindHTTP5xx

		shouldRetry := false
		if isServerError && !fiveXXRetried {
			shouldRetry = true
			fiveXXRetried = true
		} else if retryable && attempt < maxRetries {
			shouldRetry = true
		}
		if !shouldRetry {
			return outcome
		}

		backoff := time.Duration(500*(1<<uint(attempt))) * time.Millisecond
		log.Debug().Str("url", task.URL).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("fetch retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return last
		}
	}
}

func (c *Client) attempt(ctx context.Context, rawURL string, u *url.URL) model.FetchOutcome {
	if !c.acquireGlobal(ctx) {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusTimeout, ErrorKind: model.ErrorKindDeadline, Err: ctx.Err()}
	}
	defer c.releaseGlobal()

	gate, ok := c.acquireHost(ctx, u.Hostname())
	if !ok {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusTimeout, ErrorKind: model.ErrorKindDeadline, Err: ctx.Err()}
	}
	defer gate.mu.Unlock()

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.PerRequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusNetworkError, ErrorKind: model.ErrorKindNetwork, Err: err}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.httpClient()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.FetchOutcome{URL: rawURL, Status: model.StatusTimeout, ErrorKind: model.ErrorKindTimeout, Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.FetchOutcome{URL: rawURL, Status: model.StatusTimeout, ErrorKind: model.ErrorKindTimeout, Err: err}
		}
		return model.FetchOutcome{URL: rawURL, Status: model.StatusNetworkError, ErrorKind: model.ErrorKindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusHTTPError, HTTPCode: resp.StatusCode, ErrorKind: model.ErrorKindHTTP5xx, Err: errors.New("server error")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusHTTPError, HTTPCode: resp.StatusCode, ErrorKind: model.ErrorKindHTTP4xx, Err: errors.New("unexpected status")}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAllowedHTMLContentType(contentType) {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusUnsupportedType, HTTPCode: resp.StatusCode, ContentType: contentType, ErrorKind: model.ErrorKindUnsupportedType}
	}

	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 1_000_000
	}
	limited := io.LimitReader(resp.Body, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusNetworkError, HTTPCode: resp.StatusCode, ErrorKind: model.ErrorKindNetwork, Err: err}
	}
	truncated := false
	if int64(len(body)) > maxBytes {
		body = body[:maxBytes]
		truncated = true
	}
	if truncated {
		return model.FetchOutcome{URL: rawURL, Status: model.StatusTooLarge, HTTPCode: resp.StatusCode, ContentType: contentType, BodyBytes: body, ErrorKind: model.ErrorKindTooLarge}
	}

	return model.FetchOutcome{URL: rawURL, Status: model.StatusOK, HTTPCode: resp.StatusCode, ContentType: contentType, BodyBytes: body}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func (c *Client) acquireGlobal(ctx context.Context) bool {
	if c.MaxConcurrency <= 0 {
		return true
	}
	c.semOnce.Do(func() {
		c.sem = make(chan struct{}, c.MaxConcurrency)
	})
	select {
	case c.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) releaseGlobal() {
	if c.MaxConcurrency <= 0 || c.sem == nil {
		return
	}
	<-c.sem
}

// acquireHost returns the per-host gate, locked, after sleeping long enough
// to satisfy PerHostMinInterval since that host's last request start. The
// caller must Unlock gate.mu when the request completes. ok is false if ctx
// was cancelled before the gate could be acquired.
func (c *Client) acquireHost(ctx context.Context, host string) (*hostGate, bool) {
	c.hostsMu.Lock()
	if c.hosts == nil {
		c.hosts = make(map[string]*hostGate)
	}
	g, ok := c.hosts[host]
	if !ok {
		g = &hostGate{}
		c.hosts[host] = g
	}
	c.hostsMu.Unlock()

	g.mu.Lock()
	if c.PerHostMinInterval > 0 {
		wait := c.PerHostMinInterval - time.Since(g.lastStart)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				g.mu.Unlock()
				return nil, false
			}
		}
	}
	g.lastStart = time.Now()
	return g, true
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
