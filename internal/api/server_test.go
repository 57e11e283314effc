package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tenkpostcards/leadscout/internal/config"
	"github.com/tenkpostcards/leadscout/internal/contacts"
	"github.com/tenkpostcards/leadscout/internal/events"
	"github.com/tenkpostcards/leadscout/internal/fetcher"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/places"
	"github.com/tenkpostcards/leadscout/internal/ratelimit"
	"github.com/tenkpostcards/leadscout/internal/resolver"
	"github.com/tenkpostcards/leadscout/internal/websearch"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type stubSearcher struct {
	source lead.Source
	result places.Result
	err    error

	gotZip      string
	gotCategory string
}

func (s *stubSearcher) Source() lead.Source { return s.source }

func (s *stubSearcher) Search(_ context.Context, zip, category string, _ int) (places.Result, error) {
	s.gotZip = zip
	s.gotCategory = category
	if s.err != nil {
		return places.Result{}, s.err
	}
	return s.result, nil
}

type stubSearchProvider struct {
	results []lead.SearchResult
}

func (p stubSearchProvider) Name() string { return "stub" }

func (p stubSearchProvider) Search(context.Context, string, int) ([]lead.SearchResult, error) {
	return p.results, nil
}

type mapFetcher struct {
	pages map[string]string
}

func (f mapFetcher) Fetch(_ context.Context, req fetcher.Request) (fetcher.Response, error) {
	body, ok := f.pages[req.URL]
	if !ok {
		return fetcher.Response{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	return fetcher.Response{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	return NewServer(deps, config.Config{})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestSearchHappyPath(t *testing.T) {
	searcher := &stubSearcher{
		source: lead.SourceHere,
		result: places.Result{
			Businesses: []lead.Business{{Name: "Buffalo Bakery", Zip: "14221"}},
			Total:      1,
			Source:     lead.SourceHere,
		},
	}
	pub := events.NewMemory()
	s := newTestServer(t, Deps{
		Searchers: map[string]places.Searcher{"here": searcher},
		Publisher: pub,
	})

	rec := doJSON(t, s, http.MethodPost, "/v1/search/here", map[string]any{
		"zipCode": "14221", "category": "bakery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res places.Result
	decodeBody(t, rec, &res)
	require.Len(t, res.Businesses, 1)
	require.Equal(t, "Buffalo Bakery", res.Businesses[0].Name)
	require.Equal(t, "14221", searcher.gotZip)
	require.Equal(t, "bakery", searcher.gotCategory)

	// Discovery events are fire-and-forget; give the goroutine a beat.
	require.Eventually(t, func() bool {
		return len(pub.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, events.TypeBusinessDiscovered, pub.Events()[0].Type)
}

func TestSearchValidation(t *testing.T) {
	s := newTestServer(t, Deps{
		Searchers: map[string]places.Searcher{"here": &stubSearcher{source: lead.SourceHere}},
	})

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"unknown provider", "/v1/search/bing", map[string]any{"zipCode": "14221", "category": "bakery"}},
		{"bad zip", "/v1/search/here", map[string]any{"zipCode": "1422", "category": "bakery"}},
		{"missing category", "/v1/search/here", map[string]any{"zipCode": "14221"}},
		{"invalid json", "/v1/search/here", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tc.body == nil {
				req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader("{nope"))
				rec = httptest.NewRecorder()
				s.ServeHTTP(rec, req)
			} else {
				rec = doJSON(t, s, http.MethodPost, tc.path, tc.body)
			}
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]any
			decodeBody(t, rec, &body)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestSearchProviderFailureReturnsEmptyResult(t *testing.T) {
	searcher := &stubSearcher{source: lead.SourceYelp, err: errors.New("vendor exploded")}
	s := newTestServer(t, Deps{Searchers: map[string]places.Searcher{"yelp": searcher}})

	rec := doJSON(t, s, http.MethodPost, "/v1/search/yelp", map[string]any{
		"zipCode": "14221", "category": "bakery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res places.Result
	decodeBody(t, rec, &res)
	require.Empty(t, res.Businesses)
	require.Equal(t, "search failed", res.Message)
}

func TestSearchMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Deps{Searchers: map[string]places.Searcher{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/here", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestResolveWebsite(t *testing.T) {
	provider := stubSearchProvider{results: []lead.SearchResult{
		{URL: "https://www.yelp.com/biz/buffalo-bakery", Title: "Buffalo Bakery - Yelp"},
		{URL: "https://buffalobakery.com", Title: "Buffalo Bakery | Fresh Bread Daily"},
	}}
	r := resolver.New([]websearch.Provider{provider}, junkfilter.New(junkfilter.Options{}), nil)
	s := newTestServer(t, Deps{Resolver: r})

	rec := doJSON(t, s, http.MethodPost, "/v1/resolve/website", map[string]any{
		"businessName": "Buffalo Bakery", "city": "Buffalo", "state": "NY",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res resolveResponse
	decodeBody(t, rec, &res)
	require.True(t, res.Success)
	require.NotNil(t, res.Website)
	require.Equal(t, "https://buffalobakery.com", *res.Website)
	require.Equal(t, "stub", res.Source)
}

func TestResolveWebsiteMissReturnsNullNot404(t *testing.T) {
	provider := stubSearchProvider{results: []lead.SearchResult{
		{URL: "https://www.yelp.com/biz/buffalo-bakery"},
	}}
	r := resolver.New([]websearch.Provider{provider}, junkfilter.New(junkfilter.Options{}), nil)
	s := newTestServer(t, Deps{Resolver: r})

	rec := doJSON(t, s, http.MethodPost, "/v1/resolve/website", map[string]any{
		"businessName": "Buffalo Bakery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res resolveResponse
	decodeBody(t, rec, &res)
	require.False(t, res.Success)
	require.Nil(t, res.Website)
}

func TestResolveWebsiteRequiresName(t *testing.T) {
	s := newTestServer(t, Deps{})
	rec := doJSON(t, s, http.MethodPost, "/v1/resolve/website", map[string]any{"city": "Buffalo"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveSocialUnsupportedPlatform(t *testing.T) {
	r := resolver.New(nil, junkfilter.New(junkfilter.Options{}), nil)
	s := newTestServer(t, Deps{Resolver: r})

	rec := doJSON(t, s, http.MethodPost, "/v1/resolve/social", map[string]any{
		"businessName": "Buffalo Bakery", "platform": "myspace",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrich(t *testing.T) {
	home := `<html><body>
		<a href="mailto:owner@buffalobakery.com">Email us</a>
		<a href="tel:+17165551234">Call (716) 555-1234</a>
		<a href="https://www.facebook.com/buffalobakery">Facebook</a>
	</body></html>`
	fetch := mapFetcher{pages: map[string]string{
		"https://buffalobakery.com": home,
	}}
	ex := contacts.NewExtractor(fetch, nil, contacts.FormatVerifier{}, nil, nil)
	pub := events.NewMemory()
	s := newTestServer(t, Deps{Extractor: ex, Publisher: pub})

	rec := doJSON(t, s, http.MethodPost, "/v1/enrich", map[string]any{
		"websiteUrl":   "https://buffalobakery.com",
		"businessName": "Buffalo Bakery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res enrichResponse
	decodeBody(t, rec, &res)
	require.Contains(t, res.Emails, "owner@buffalobakery.com")
	require.Contains(t, res.Phones, "7165551234")
	require.Equal(t, "https://www.facebook.com/buffalobakery", res.Facebook)
	require.True(t, res.Enriched)

	require.Eventually(t, func() bool {
		return len(pub.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, events.TypeBusinessEnriched, pub.Events()[0].Type)
	require.Equal(t, "owner@buffalobakery.com", pub.Events()[0].Business.Email)
}

func TestEnrichBlockedURLIs400(t *testing.T) {
	ex := contacts.NewExtractor(mapFetcher{}, nil, nil, nil, nil)
	s := newTestServer(t, Deps{Extractor: ex})

	for _, target := range []string{"http://169.254.169.254/latest/meta-data", "http://127.0.0.1/admin"} {
		rec := doJSON(t, s, http.MethodPost, "/v1/enrich", map[string]any{"websiteUrl": target})
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestEnrichUnreachableSiteIsEmpty200(t *testing.T) {
	ex := contacts.NewExtractor(mapFetcher{}, nil, nil, nil, nil)
	s := newTestServer(t, Deps{Extractor: ex})

	rec := doJSON(t, s, http.MethodPost, "/v1/enrich", map[string]any{
		"websiteUrl": "https://nonexistent.example.net",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res enrichResponse
	decodeBody(t, rec, &res)
	require.Empty(t, res.Emails)
	require.False(t, res.Enriched)
}

func TestEnrichBatchPartialResults(t *testing.T) {
	fetch := mapFetcher{pages: map[string]string{
		"https://buffalobakery.com": `<html><body><a href="mailto:owner@buffalobakery.com">mail</a></body></html>`,
	}}
	ex := contacts.NewExtractor(fetch, nil, contacts.FormatVerifier{}, nil, nil)
	s := newTestServer(t, Deps{Extractor: ex})

	rec := doJSON(t, s, http.MethodPost, "/v1/enrich/batch", map[string]any{
		"businesses": []map[string]any{
			{"name": "Buffalo Bakery", "website": "https://buffalobakery.com"},
			{"name": "Ghost Cafe", "website": "https://ghost.example.net"},
			{"name": "No Site Diner"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []batchEnrichItem `json:"results"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Results, 3)
	require.Contains(t, body.Results[0].Result.Emails, "owner@buffalobakery.com")
	require.Empty(t, body.Results[1].Result.Emails)
	require.Equal(t, "website is required", body.Results[2].Error)
}

// barrierFetcher parks every Fetch until released, so a test can observe how
// many fetches are in flight at once.
type barrierFetcher struct {
	arrived chan struct{}
	release chan struct{}
}

func (f *barrierFetcher) Fetch(ctx context.Context, req fetcher.Request) (fetcher.Response, error) {
	f.arrived <- struct{}{}
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return fetcher.Response{URL: req.URL, StatusCode: http.StatusNotFound}, nil
}

func TestEnrichBatchGroupRunsConcurrently(t *testing.T) {
	fetch := &barrierFetcher{
		arrived: make(chan struct{}, enrichBatchSize),
		release: make(chan struct{}),
	}
	ex := contacts.NewExtractor(fetch, nil, nil, nil, nil)
	s := newTestServer(t, Deps{Extractor: ex})

	businesses := make([]map[string]any, enrichBatchSize)
	for i := range businesses {
		businesses[i] = map[string]any{
			"name":    fmt.Sprintf("Biz %d", i),
			"website": fmt.Sprintf("https://biz%d.example.com", i),
		}
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- doJSON(t, s, http.MethodPost, "/v1/enrich/batch", map[string]any{
			"businesses": businesses,
		})
	}()

	// All five fetches must be in flight before any of them completes.
	deadline := time.After(2 * time.Second)
	for i := 0; i < enrichBatchSize; i++ {
		select {
		case <-fetch.arrived:
		case <-deadline:
			t.Fatalf("only %d of %d enrichments in flight", i, enrichBatchSize)
		}
	}
	close(fetch.release)

	rec := <-done
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []batchEnrichItem `json:"results"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Results, enrichBatchSize)
}

func TestEnrichBatchEmptyIs400(t *testing.T) {
	s := newTestServer(t, Deps{})
	rec := doJSON(t, s, http.MethodPost, "/v1/enrich/batch", map[string]any{"businesses": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEmail(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doJSON(t, s, http.MethodPost, "/v1/validate/email", map[string]any{
		"email": "owner@mailinator.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Valid  bool            `json:"valid"`
		Score  int             `json:"score"`
		Checks map[string]bool `json:"checks"`
		Reason string          `json:"reason"`
	}
	decodeBody(t, rec, &report)
	require.False(t, report.Valid)
	require.True(t, report.Checks["format"])
	require.False(t, report.Checks["notDisposable"])
	require.Equal(t, "disposable email domain", report.Reason)
}

func TestValidateEmailBadFormat(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doJSON(t, s, http.MethodPost, "/v1/validate/email", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Valid bool `json:"valid"`
		Score int  `json:"score"`
	}
	decodeBody(t, rec, &report)
	require.False(t, report.Valid)
	require.Zero(t, report.Score)
}

func TestValidateWebsite(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := newTestServer(t, Deps{Client: upstream.Client()})

	// Loopback test-server URLs are rejected by the SSRF guard, which is
	// itself the behavior worth pinning down.
	rec := doJSON(t, s, http.MethodPost, "/v1/validate/website", map[string]any{
		"website": upstream.URL,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report websiteReport
	decodeBody(t, rec, &report)
	require.False(t, report.Valid)
	require.False(t, report.Checks["format"])
}

func TestValidateWebsiteBadURL(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doJSON(t, s, http.MethodPost, "/v1/validate/website", map[string]any{
		"website": "ftp://example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report websiteReport
	decodeBody(t, rec, &report)
	require.False(t, report.Valid)
	require.Zero(t, report.Score)
	require.NotEmpty(t, report.Reason)
}

func TestZipNeighborsValidation(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doJSON(t, s, http.MethodPost, "/v1/zip/neighbors", map[string]any{"zipCode": "abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestZipNeighborsNotConfigured(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doJSON(t, s, http.MethodPost, "/v1/zip/neighbors", map[string]any{"zipCode": "14221"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	require.Equal(t, "not_configured", body["message"])
}

func TestRateLimitHeadersAnd429(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{DefaultLimit: 2, DefaultWindow: time.Minute})
	searcher := &stubSearcher{source: lead.SourceHere, result: places.Result{Businesses: []lead.Business{}}}
	s := NewServer(Deps{
		Searchers: map[string]places.Searcher{"here": searcher},
		Limiter:   limiter,
	}, config.Config{RateLimit: config.RateLimitConfig{DefaultLimit: 2, WindowSeconds: 60}})

	body := map[string]any{"zipCode": "14221", "category": "bakery"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodPost, "/v1/search/here", body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := doJSON(t, s, http.MethodPost, "/v1/search/here", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAPIKeyMiddleware(t *testing.T) {
	s := NewServer(Deps{Searchers: map[string]places.Searcher{}}, config.Config{
		Auth: config.AuthConfig{Enabled: true, APIKey: "sekrit"},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve/website", strings.NewReader(`{"businessName":"x"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/resolve/website", strings.NewReader(`{"businessName":"x"}`))
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusForbidden, rec.Code)
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewServer(Deps{Logger: zap.New(core)}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	reqID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, reqID)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	require.Equal(t, reqID, entries[0].ContextMap()["request_id"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, Deps{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
