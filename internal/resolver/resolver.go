// Package resolver finds a business's website by cascading through web-search
// providers and junk-filtering the hits.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/websearch"
)

// Location scopes a resolution query to a place.
type Location struct {
	City  string
	State string
	Zip   string
}

// Resolution carries the winning URL plus the raw hits that informed it.
type Resolution struct {
	Website string
	Source  string
	Results []lead.SearchResult
}

// Resolver runs the provider cascade. Providers are tried in the order given;
// a provider that is unconfigured, over quota, or failing is skipped, never
// retried within a call.
type Resolver struct {
	providers []websearch.Provider
	filter    *junkfilter.Filter
	logger    *zap.Logger
	limit     int
}

// New builds a Resolver. The provider slice should already be in preference
// order.
func New(providers []websearch.Provider, filter *junkfilter.Filter, logger *zap.Logger) *Resolver {
	if filter == nil {
		filter = junkfilter.New(junkfilter.Options{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{providers: providers, filter: filter, logger: logger, limit: 10}
}

// ResolveWebsite returns the first search hit that survives the junk filter,
// or an empty Resolution when every provider is exhausted. A miss is not an
// error: guessing a wrong website is worse than returning none.
func (r *Resolver) ResolveWebsite(ctx context.Context, name string, loc Location) (Resolution, error) {
	query := buildQuery(name, loc)
	biz := junkfilter.BizContext{Name: name, City: loc.City, State: loc.State, Zip: loc.Zip}

	for _, p := range r.providers {
		results, ok := r.search(ctx, p, query)
		if !ok {
			continue
		}
		for _, res := range results {
			if v := r.filter.Evaluate(res, biz); v.Keep {
				metrics.ObserveResolveOutcome(p.Name())
				return Resolution{Website: res.URL, Source: p.Name(), Results: results}, nil
			}
		}
	}
	metrics.ObserveResolveOutcome("none")
	return Resolution{}, nil
}

// ResolveSocial finds a canonical profile URL on the given platform
// ("facebook" or "instagram").
func (r *Resolver) ResolveSocial(ctx context.Context, name string, loc Location, platform string) (Resolution, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	var accept func(string) bool
	switch platform {
	case "facebook":
		accept = func(u string) bool { return r.filter.FacebookProfile(u, name) }
	case "instagram":
		accept = func(u string) bool { return r.filter.InstagramProfile(u, name) }
	default:
		return Resolution{}, fmt.Errorf("unsupported platform %q", platform)
	}

	query := fmt.Sprintf("site:%s.com %s", platform, buildQuery(name, loc))
	for _, p := range r.providers {
		results, ok := r.search(ctx, p, query)
		if !ok {
			continue
		}
		for _, res := range results {
			if accept(res.URL) {
				return Resolution{Website: res.URL, Source: p.Name(), Results: results}, nil
			}
		}
	}
	return Resolution{}, nil
}

func (r *Resolver) search(ctx context.Context, p websearch.Provider, query string) ([]lead.SearchResult, bool) {
	start := time.Now()
	results, err := p.Search(ctx, query, r.limit)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, websearch.ErrNotConfigured):
		metrics.ObserveProviderCall(p.Name(), "not_configured", elapsed)
		return nil, false
	case errors.Is(err, websearch.ErrQuotaExceeded):
		r.logger.Warn("search provider quota exhausted", zap.String("provider", p.Name()))
		metrics.ObserveProviderCall(p.Name(), "quota_exceeded", elapsed)
		return nil, false
	case err != nil:
		r.logger.Warn("search provider failed",
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		metrics.ObserveProviderCall(p.Name(), "error", elapsed)
		return nil, false
	}

	r.logger.Debug("search provider responded",
		zap.String("provider", p.Name()),
		zap.String("query", query),
		zap.Duration("elapsed", elapsed),
		zap.Int("results", len(results)))
	metrics.ObserveProviderCall(p.Name(), "ok", elapsed)
	return results, true
}

// buildQuery quotes the business name and appends whatever location parts are
// known.
func buildQuery(name string, loc Location) string {
	parts := []string{fmt.Sprintf("%q", strings.TrimSpace(name))}
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.State != "" {
		parts = append(parts, loc.State)
	}
	if loc.City == "" && loc.State == "" && loc.Zip != "" {
		parts = append(parts, loc.Zip)
	}
	return strings.Join(parts, " ")
}
