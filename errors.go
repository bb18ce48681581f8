package artscout

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound marks a by-id lookup that resolved to nothing upstream.
// Sources wrap it; the aggregate lookup converts it into a soft miss.
var ErrNotFound = errors.New("artwork not found")

// RateLimitError signals that an upstream explicitly throttled us. The
// caller should back off; retrying immediately only climbs the penalty
// ladder further.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration // 0 when the upstream gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Source)
}

// UnavailableError signals that no eligible source exists to serve the
// request: the named source is disabled or unregistered, or, for aggregate
// requests, every registered source is. A configuration problem, not a
// transient one.
type UnavailableError struct {
	Source string // source id, or AllSources for aggregate requests
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: no available source", e.Source)
}

// TransientError wraps network failures, timeouts and unexpected upstream
// statuses. Recoverable by retrying later, not immediately.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ua *UnavailableError
	return errors.As(err, &ua)
}
