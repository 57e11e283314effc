// Package quota tracks monthly call budgets per external provider. The tracker
// deliberately fails open: discovery must not wholly break because the metrics
// store is missing or unreachable.
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSafetyBuffer is the margin kept below each vendor's advertised free tier,
// absorbing counting races and reporting lag.
const DefaultSafetyBuffer = 50

// DefaultLimits are monthly free-tier ceilings per provider. Providers absent from
// the map are unmetered.
func DefaultLimits() map[string]int {
	return map[string]int{
		"here":        1000,
		"foursquare":  2500,
		"outscraper":  500,
		"serper":      2500,
		"brave":       2000,
		"scrapingdog": 1000,
		"google_cse":  3000,
		"hunter":      50,
		"zipapi":      2000,
	}
}

// Record is one row of the ledger: calls used by one provider in one calendar month.
type Record struct {
	APIName   string
	MonthKey  string
	CallsUsed int
}

// Store persists the monthly counters. Increment should be atomic where the backend
// allows it; Upsert is the read-then-write fallback that tolerates lost updates.
type Store interface {
	Get(ctx context.Context, apiName, monthKey string) (int, error)
	Increment(ctx context.Context, apiName, monthKey string) error
	Upsert(ctx context.Context, apiName, monthKey string, used int) error
}

// Status is the decision returned by Check.
type Status struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// Tracker enforces the per-provider budgets.
type Tracker struct {
	store  Store
	limits map[string]int
	buffer int
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Tracker. A nil store is legal and makes every check fail open.
func New(store Store, limits map[string]int, buffer int, logger *zap.Logger) *Tracker {
	if limits == nil {
		limits = DefaultLimits()
	}
	if buffer <= 0 {
		buffer = DefaultSafetyBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		limits: limits,
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// MonthKey formats t as the ledger's month bucket.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Check reports whether the provider may be called this month. allowed is
// used < limit - buffer. Unmetered providers and store failures both allow.
func (t *Tracker) Check(ctx context.Context, provider string) Status {
	limit, metered := t.limits[provider]
	if !metered {
		return Status{Allowed: true, Limit: 0, Remaining: -1}
	}
	if t.store == nil {
		t.logger.Warn("quota store not configured, failing open", zap.String("provider", provider))
		return Status{Allowed: true, Limit: limit, Remaining: limit}
	}
	used, err := t.store.Get(ctx, provider, MonthKey(t.now()))
	if err != nil {
		t.logger.Warn("quota read failed, failing open",
			zap.String("provider", provider), zap.Error(err))
		return Status{Allowed: true, Limit: limit, Remaining: limit}
	}
	effective := limit - t.buffer
	remaining := effective - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{Allowed: used < effective, Used: used, Limit: limit, Remaining: remaining}
}

// RecordCall increments the provider's counter for the current month. Fire and
// forget: errors are logged, never returned, and the write runs on its own short
// deadline detached from the request context.
func (t *Tracker) RecordCall(provider string) {
	if t.store == nil {
		return
	}
	if _, metered := t.limits[provider]; !metered {
		return
	}
	month := MonthKey(t.now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.record(ctx, provider, month)
	}()
}

func (t *Tracker) record(ctx context.Context, provider, month string) {
	err := t.store.Increment(ctx, provider, month)
	if err == nil {
		return
	}
	t.logger.Warn("atomic quota increment failed, falling back to upsert",
		zap.String("provider", provider), zap.Error(err))

	// Read-then-write fallback. Lost updates under concurrency are acceptable:
	// the safety buffer absorbs them.
	used, err := t.store.Get(ctx, provider, month)
	if err != nil {
		t.logger.Warn("quota read for upsert failed", zap.String("provider", provider), zap.Error(err))
		return
	}
	if err := t.store.Upsert(ctx, provider, month, used+1); err != nil {
		t.logger.Warn("quota upsert failed", zap.String("provider", provider), zap.Error(err))
	}
}
