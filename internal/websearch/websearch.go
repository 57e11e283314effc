// Package websearch holds one adapter per web-search vendor. Every adapter
// normalizes its vendor's response into []lead.SearchResult and reports quota and
// configuration problems through sentinel errors the resolution cascade branches on.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/quota"
)

// Sentinel errors the orchestrator treats as "skip this provider".
var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// Provider is a single web-search source.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]lead.SearchResult, error)
}

// QuotaGate is the slice of the quota tracker the adapters need. A nil gate
// disables budgeting.
type QuotaGate interface {
	Check(ctx context.Context, provider string) quota.Status
	RecordCall(provider string)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// checkGate returns ErrQuotaExceeded when the monthly budget is exhausted.
func checkGate(ctx context.Context, gate QuotaGate, name string) error {
	if gate == nil {
		return nil
	}
	if st := gate.Check(ctx, name); !st.Allowed {
		return fmt.Errorf("%s: %w", name, ErrQuotaExceeded)
	}
	return nil
}

func recordCall(gate QuotaGate, name string) {
	if gate != nil {
		gate.RecordCall(name)
	}
}

// vendorStatusErr classifies a non-2xx vendor status. Payment/rate statuses map to
// quota exhaustion so the cascade advances instead of failing.
func vendorStatusErr(name string, status int) error {
	if status == http.StatusTooManyRequests || status == http.StatusPaymentRequired {
		return fmt.Errorf("%s: status %d: %w", name, status, ErrQuotaExceeded)
	}
	return fmt.Errorf("%s: unexpected status %d", name, status)
}
