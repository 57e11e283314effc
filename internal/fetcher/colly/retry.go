package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Small-business sites sit behind flaky shared hosting; transient TLS
// timeouts on the first handshake are common enough to be worth retrying.
var retryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

type retryTransport struct {
	base http.RoundTripper
}

func newRetryTransport(base http.RoundTripper) *retryTransport {
	return &retryTransport{base: base}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("retry transport received nil request")
	}
	// Only idempotent requests are safe to replay.
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("retry transport base roundtrip: %w", err)
		}
		return resp, nil
	}

	maxAttempts := len(retryBackoff) + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.base.RoundTrip(cloneRequest(req))
		if err == nil {
			return resp, nil
		}
		if !isTransientTLSError(err) {
			return nil, fmt.Errorf("retry transport non-transient: %w", err)
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			if err := sleepWithContext(req.Context(), retryBackoff[attempt]); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("retry transport exhausted retries: %w", lastErr)
}

func cloneRequest(req *http.Request) *http.Request {
	if req == nil {
		return nil
	}
	clone := req.Clone(req.Context())
	clone.Body = req.Body
	return clone
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isTransientTLSError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
