package artscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; go-artscout/1.0)"

	// maxBodyBytes caps how much of an upstream JSON body is read.
	maxBodyBytes = 8 << 20
)

// upstream is the HTTP plumbing shared by every source adapter: one paced
// gate, one client, and the uniform status-to-error mapping. Source-specific
// quirks (which status means "throttled", which timeout applies) live in the
// fields, never in branches elsewhere.
type upstream struct {
	name           string
	client         *http.Client
	userAgent      string
	timeout        time.Duration
	throttleStatus int    // de facto throttle signal, besides 429
	authorization  string // optional Authorization header value
	gate           *throttleGate
}

func newUpstream(name string, client *http.Client, userAgent string, timeout, minInterval time.Duration) *upstream {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &upstream{
		name:           name,
		client:         client,
		userAgent:      userAgent,
		timeout:        timeout,
		throttleStatus: http.StatusTooManyRequests,
		gate:           newThrottleGate(minInterval, 0),
	}
}

// getJSON performs a paced GET and decodes a 2xx body into v.
// Throttle responses advance the gate before the RateLimitError is
// returned; a 404 wraps ErrNotFound; anything else non-2xx (and any
// network failure) becomes a TransientError.
func (u *upstream) getJSON(ctx context.Context, rawURL string, v any) error {
	if err := u.gate.wait(ctx); err != nil {
		return &TransientError{Source: u.name, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransientError{Source: u.name, Err: err}
	}
	req.Header.Set("User-Agent", u.userAgent)
	req.Header.Set("Accept", "application/json")
	if u.authorization != "" {
		req.Header.Set("Authorization", u.authorization)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return &TransientError{Source: u.name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == u.throttleStatus || resp.StatusCode == http.StatusTooManyRequests:
		u.gate.throttled()
		retry := parseRetryAfter(resp.Header.Get("Retry-After"))
		if retry == 0 {
			retry = time.Duration(u.gate.delaySeconds()) * time.Second
		}
		slog.Warn("artscout: upstream throttled",
			"source", u.name, "status", resp.StatusCode, "retry_after", retry)
		return &RateLimitError{Source: u.name, RetryAfter: retry}

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", u.name, ErrNotFound)

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &TransientError{Source: u.name, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	u.gate.succeeded()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransientError{Source: u.name, Err: err}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &TransientError{Source: u.name, Err: err}
	}
	return nil
}

// orDefault substitutes def for blank upstream metadata fields.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// parseRetryAfter handles the delta-seconds form of the header. The HTTP
// date form is rare on these APIs and is ignored.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(h)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
