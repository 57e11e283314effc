// Package places holds one adapter per geographic discovery vendor. Every adapter
// maps its vendor's response into lead.Business records and enforces the ZIP
// fidelity invariant before returning: a populated ZIP that mismatches the
// searched region must never leave the adapter.
package places

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/quota"
)

// Result is the normalized output of a geographic search. Message carries the
// reason for an empty result (not_configured, quota_exceeded, vendor failures)
// so the UI can skip a source silently instead of treating it as an error.
type Result struct {
	Businesses []lead.Business `json:"businesses"`
	Total      int             `json:"total"`
	Source     lead.Source     `json:"source"`
	Query      string          `json:"query"`
	Message    string          `json:"message,omitempty"`
}

// Messages for empty results. Downstream treats both as "skip this source".
const (
	MsgNotConfigured = "not_configured"
	MsgQuotaExceeded = "quota_exceeded"
)

// Searcher is a single geographic discovery source.
type Searcher interface {
	Source() lead.Source
	Search(ctx context.Context, zip, category string, limit int) (Result, error)
}

// QuotaGate is the slice of the quota tracker the adapters need.
type QuotaGate interface {
	Check(ctx context.Context, provider string) quota.Status
	RecordCall(provider string)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func emptyResult(source lead.Source, query, message string) Result {
	return Result{Businesses: []lead.Business{}, Source: source, Query: query, Message: message}
}

// gateAllows wraps the quota check; a nil gate always allows.
func gateAllows(ctx context.Context, gate QuotaGate, provider string) bool {
	if gate == nil {
		return true
	}
	return gate.Check(ctx, provider).Allowed
}

func record(gate QuotaGate, provider string) {
	if gate != nil {
		gate.RecordCall(provider)
	}
}

// acceptExactZip applies the strict fidelity policy shared by Foursquare and
// Google Places: a populated vendor ZIP must equal the searched ZIP exactly.
// Records without a ZIP keep the searched ZIP, trusted because the vendor's own
// location filter produced them.
func acceptExactZip(b *lead.Business, searchedZip string) bool {
	if b.Zip == "" {
		b.Zip = searchedZip
		return true
	}
	return b.Zip == searchedZip
}

func nopLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
