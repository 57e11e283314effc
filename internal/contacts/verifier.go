package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcnijman/go-emailaddress"

	"github.com/tenkpostcards/leadscout/internal/quota"
)

// Verifier decides whether an extracted email is worth keeping. Verification
// fails open everywhere: a vendor outage must never cost us a lead.
type Verifier interface {
	Verify(ctx context.Context, email string) bool
}

// QuotaGate mirrors the quota tracker slice the verifier needs.
type QuotaGate interface {
	Check(ctx context.Context, provider string) quota.Status
	RecordCall(provider string)
}

const hunterEndpoint = "https://api.hunter.io/v2/email-verifier"

// HunterVerifier checks deliverability through the hunter.io API and falls
// back to format verification when the call cannot complete or the monthly
// budget is spent.
type HunterVerifier struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	fallback Verifier
	logger   *zap.Logger
	endpoint string
}

// NewHunter builds a HunterVerifier. gate may be nil to disable budgeting.
func NewHunter(apiKey string, client *http.Client, gate QuotaGate, logger *zap.Logger) *HunterVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HunterVerifier{
		apiKey:   apiKey,
		client:   client,
		gate:     gate,
		fallback: FormatVerifier{},
		logger:   logger,
		endpoint: hunterEndpoint,
	}
}

// Verify implements Verifier.
func (h *HunterVerifier) Verify(ctx context.Context, email string) bool {
	if h.apiKey == "" {
		return h.fallback.Verify(ctx, email)
	}
	if h.gate != nil && !h.gate.Check(ctx, "hunter").Allowed {
		return h.fallback.Verify(ctx, email)
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", h.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return h.fallback.Verify(ctx, email)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("hunter verify failed", zap.Error(err))
		return h.fallback.Verify(ctx, email)
	}
	defer resp.Body.Close() //nolint:errcheck

	if h.gate != nil {
		h.gate.RecordCall("hunter")
	}

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("hunter unexpected status", zap.Int("status", resp.StatusCode))
		return h.fallback.Verify(ctx, email)
	}

	var raw struct {
		Data struct {
			Status string `json:"status"`
			Result string `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return h.fallback.Verify(ctx, email)
	}

	status := raw.Data.Status
	if status == "" {
		status = raw.Data.Result
	}
	switch status {
	case "valid", "deliverable", "accept_all", "accept-all", "webmail":
		return true
	case "invalid", "undeliverable", "disposable":
		return false
	default:
		return h.fallback.Verify(ctx, email)
	}
}

// consumerProviders are mailbox hosts whose addresses are accepted on format
// alone; an MX probe against gmail.com tells us nothing about the user.
var consumerProviders = map[string]struct{}{
	"gmail.com": {}, "yahoo.com": {}, "outlook.com": {}, "hotmail.com": {},
	"aol.com": {}, "icloud.com": {},
}

// MXLookup resolves the MX records for a domain. Swappable for tests.
type MXLookup func(ctx context.Context, domain string) ([]*net.MX, error)

// FormatVerifier accepts well-formed addresses. An MX lookup on business
// domains is advisory only: a missing record is logged, never a rejection,
// because small-business DNS is unreliable and a false negative loses a lead.
type FormatVerifier struct {
	Lookup MXLookup
	Logger *zap.Logger
}

// Verify implements Verifier.
func (f FormatVerifier) Verify(ctx context.Context, email string) bool {
	addr, err := emailaddress.Parse(strings.TrimSpace(email))
	if err != nil {
		return false
	}
	domain := strings.ToLower(addr.Domain)
	if _, consumer := consumerProviders[domain]; consumer {
		return true
	}
	if f.Lookup != nil {
		if mx, err := f.Lookup(ctx, domain); err != nil || len(mx) == 0 {
			if f.Logger != nil {
				f.Logger.Debug("no MX records", zap.String("domain", domain))
			}
		}
	}
	return true
}

// DefaultMXLookup resolves MX records with the system resolver.
func DefaultMXLookup(ctx context.Context, domain string) ([]*net.MX, error) {
	mx, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup mx %s: %w", domain, err)
	}
	return mx, nil
}
