package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/contacts"
	"github.com/tenkpostcards/leadscout/internal/events"
	"github.com/tenkpostcards/leadscout/internal/geo"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/places"
	"github.com/tenkpostcards/leadscout/internal/resolver"
	"github.com/tenkpostcards/leadscout/internal/validate"
)

const (
	enrichBatchSize  = 5
	enrichBatchDelay = time.Second
)

type searchRequest struct {
	ZipCode      string        `json:"zipCode"`
	Category     string        `json:"category"`
	Limit        int           `json:"limit"`
	RadiusSearch *radiusParams `json:"radiusSearch"`
}

type radiusParams struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters int     `json:"radiusMeters"`
}

// search runs one provider against one ZIP. Vendor failures come back as 200
// with an empty result and a message so a UI iterating providers never halts.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	searcher, ok := s.deps.Searchers[provider]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider: "+provider)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validate.StringLength(req.Category, 1, 100); err != nil {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	if req.RadiusSearch != nil {
		s.searchRadius(w, r.Context(), provider, req)
		return
	}

	if err := validate.ZipCode(req.ZipCode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := searcher.Search(r.Context(), req.ZipCode, req.Category, req.Limit)
	if err != nil {
		// Adapters absorb vendor errors; anything surfacing here is
		// unexpected, but an empty result still beats a 500.
		s.logger.Error("search failed", zap.String("provider", provider), zap.Error(err))
		writeJSON(w, http.StatusOK, places.Result{
			Businesses: []lead.Business{},
			Source:     searcher.Source(),
			Message:    "search failed",
		})
		return
	}

	for _, b := range result.Businesses {
		s.publish(events.TypeBusinessDiscovered, b)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) searchRadius(w http.ResponseWriter, ctx context.Context, provider string, req searchRequest) {
	if s.deps.Radius == nil || provider != "here" {
		writeError(w, http.StatusBadRequest, "radius search is not supported for provider: "+provider)
		return
	}
	rs := req.RadiusSearch
	result, err := s.deps.Radius.SearchRadius(ctx, rs.Lat, rs.Lng, rs.RadiusMeters, req.Category, req.Limit)
	if err != nil {
		s.logger.Error("radius search failed", zap.Error(err))
		writeJSON(w, http.StatusOK, places.Result{Businesses: []lead.Business{}, Source: lead.SourceHere, Message: "search failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	BusinessName string `json:"businessName"`
	Platform     string `json:"platform"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

type resolveResponse struct {
	Success bool                `json:"success"`
	Website *string             `json:"website"`
	Source  string              `json:"source,omitempty"`
	Results []lead.SearchResult `json:"results,omitempty"`
}

func (s *Server) resolveWebsite(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeResolve(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Resolver.ResolveWebsite(r.Context(),
		req.BusinessName, resolver.Location{City: req.City, State: req.State, Zip: req.ZipCode})
	if err != nil {
		s.logger.Error("resolve website failed", zap.Error(err))
		writeJSON(w, http.StatusOK, resolveResponse{})
		return
	}
	writeJSON(w, http.StatusOK, toResolveResponse(res))
}

func (s *Server) resolveSocial(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeResolve(w, r)
	if !ok {
		return
	}
	if req.Platform == "" {
		writeError(w, http.StatusBadRequest, "platform is required")
		return
	}
	res, err := s.deps.Resolver.ResolveSocial(r.Context(),
		req.BusinessName, resolver.Location{City: req.City, State: req.State, Zip: req.ZipCode}, req.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResolveResponse(res))
}

func (s *Server) decodeResolve(w http.ResponseWriter, r *http.Request) (resolveRequest, bool) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	if err := validate.StringLength(req.BusinessName, 1, 200); err != nil {
		writeError(w, http.StatusBadRequest, "businessName is required")
		return req, false
	}
	if s.deps.Resolver == nil {
		writeJSON(w, http.StatusOK, resolveResponse{})
		return req, false
	}
	return req, true
}

func toResolveResponse(res resolver.Resolution) resolveResponse {
	out := resolveResponse{Source: res.Source, Results: res.Results}
	if res.Website != "" {
		out.Success = true
		out.Website = &res.Website
	}
	return out
}

type enrichRequest struct {
	WebsiteURL   string `json:"websiteUrl"`
	Website      string `json:"website"`
	BusinessName string `json:"businessName"`
}

type enrichResponse struct {
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	Facebook  string   `json:"facebook,omitempty"`
	Instagram string   `json:"instagram,omitempty"`
	Linkedin  string   `json:"linkedin,omitempty"`
	Twitter   string   `json:"twitter,omitempty"`
	Enriched  bool     `json:"enriched"`
}

func (s *Server) enrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	website := req.WebsiteURL
	if website == "" {
		website = req.Website
	}
	if website == "" {
		writeError(w, http.StatusBadRequest, "websiteUrl is required")
		return
	}

	resp, status := s.enrichOne(r.Context(), website, req.BusinessName)
	writeJSON(w, status, resp)
}

// enrichOne runs the extractor and classifies the outcome: SSRF-blocked URLs
// are the caller's mistake (400); everything else degrades to an empty 200.
func (s *Server) enrichOne(ctx context.Context, website, businessName string) (enrichResponse, int) {
	empty := enrichResponse{Emails: []string{}, Phones: []string{}}
	if s.deps.Extractor == nil {
		return empty, http.StatusOK
	}

	c, err := s.deps.Extractor.Extract(ctx, website, businessName)
	if err != nil {
		if isForbiddenURL(err) {
			return empty, http.StatusBadRequest
		}
		s.logger.Warn("enrich failed", zap.String("website", website), zap.Error(err))
		return empty, http.StatusOK
	}

	resp := enrichResponse{
		Emails:    c.Emails,
		Phones:    c.Phones,
		Facebook:  c.Social["facebook"],
		Instagram: c.Social["instagram"],
		Linkedin:  c.Social["linkedin"],
		Twitter:   c.Social["twitter"],
		Enriched:  c.Enriched,
	}
	if resp.Emails == nil {
		resp.Emails = []string{}
	}
	if resp.Phones == nil {
		resp.Phones = []string{}
	}
	if c.Enriched {
		s.publish(events.TypeBusinessEnriched, lead.Business{
			Name:    businessName,
			Website: website,
			Email:   first(c.Emails),
			Phone:   first(c.Phones),
		})
	}
	return resp, http.StatusOK
}

func isForbiddenURL(err error) bool {
	return errors.Is(err, validate.ErrEmptyURL) ||
		errors.Is(err, validate.ErrBadScheme) ||
		errors.Is(err, validate.ErrCredentialsInURL) ||
		errors.Is(err, validate.ErrBlockedHost) ||
		errors.Is(err, validate.ErrPrivateIP) ||
		errors.Is(err, validate.ErrEmptyHost)
}

type batchEnrichRequest struct {
	Businesses []batchBusiness `json:"businesses"`
}

type batchBusiness struct {
	Name    string `json:"name"`
	Website string `json:"website"`
}

type batchEnrichItem struct {
	Name    string         `json:"name"`
	Website string         `json:"website"`
	Result  enrichResponse `json:"result"`
	Error   string         `json:"error,omitempty"`
}

// enrichBatch processes businesses in small groups with a pause between
// groups so a big batch does not hammer vendor sites.
func (s *Server) enrichBatch(w http.ResponseWriter, r *http.Request) {
	var req batchEnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Businesses) == 0 {
		writeError(w, http.StatusBadRequest, "businesses is required")
		return
	}

	items := make([]batchEnrichItem, len(req.Businesses))
	for start := 0; start < len(req.Businesses); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(req.Businesses) {
			end = len(req.Businesses)
		}

		// Businesses within a group run concurrently; the delay between
		// groups keeps the overall fetch rate polite.
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				items[i] = s.enrichBatchItem(r.Context(), req.Businesses[i])
			}(i)
		}
		wg.Wait()

		if end < len(req.Businesses) {
			select {
			case <-r.Context().Done():
				writeJSON(w, http.StatusOK, map[string]any{"results": items[:end]})
				return
			case <-time.After(enrichBatchDelay):
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

func (s *Server) enrichBatchItem(ctx context.Context, b batchBusiness) batchEnrichItem {
	item := batchEnrichItem{Name: b.Name, Website: b.Website}
	if b.Website == "" {
		item.Error = "website is required"
		item.Result = enrichResponse{Emails: []string{}, Phones: []string{}}
		return item
	}
	resp, status := s.enrichOne(ctx, b.Website, b.Name)
	item.Result = resp
	if status != http.StatusOK {
		item.Error = "website blocked"
	}
	return item
}

type validateEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) validateEmail(w http.ResponseWriter, r *http.Request) {
	var req validateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	report := validate.ScoreEmail(r.Context(), req.Email, contacts.DefaultMXLookup)
	if report.Valid && s.deps.Verifier != nil && !s.deps.Verifier.Verify(r.Context(), req.Email) {
		report.Valid = false
		report.Reason = "rejected by deliverability check"
	}
	writeJSON(w, http.StatusOK, report)
}

type validateWebsiteRequest struct {
	Website      string `json:"website"`
	BusinessName string `json:"businessName"`
}

type websiteReport struct {
	Valid      bool            `json:"valid"`
	Score      int             `json:"score"`
	Checks     map[string]bool `json:"checks"`
	StatusCode int             `json:"statusCode,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// validateWebsite checks a URL for format, reachability, and (when a
// business name is given) the junk-filter name heuristic.
func (s *Server) validateWebsite(w http.ResponseWriter, r *http.Request) {
	var req validateWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	report := websiteReport{Checks: map[string]bool{"format": false, "reachable": false, "nameMatch": false}}
	normalized, err := validate.URL(req.Website)
	if err != nil {
		report.Reason = err.Error()
		writeJSON(w, http.StatusOK, report)
		return
	}
	report.Checks["format"] = true
	report.Score += 30

	status := s.probeWebsite(r.Context(), normalized)
	report.StatusCode = status
	if status > 0 && status < 400 {
		report.Checks["reachable"] = true
		report.Score += 40
	} else {
		report.Reason = "website unreachable"
	}

	if req.BusinessName == "" {
		// No name to check against; treat the check as passed.
		report.Checks["nameMatch"] = true
		report.Score += 30
	} else {
		v := s.deps.Filter.EvaluateURL(normalized, junkfilter.BizContext{Name: req.BusinessName})
		if v.Keep {
			report.Checks["nameMatch"] = true
			report.Score += 30
		} else if report.Reason == "" {
			report.Reason = v.Reason
		}
	}

	report.Valid = report.Checks["format"] && report.Checks["reachable"] && report.Checks["nameMatch"]
	writeJSON(w, http.StatusOK, report)
}

// probeWebsite tries HEAD first and falls back to GET, since plenty of small
// sites reject HEAD outright.
func (s *Server) probeWebsite(ctx context.Context, url string) int {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return 0
		}
		resp, err := s.deps.Client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close() //nolint:errcheck
		if method == http.MethodHead && resp.StatusCode >= 400 {
			continue
		}
		return resp.StatusCode
	}
	return 0
}

type zipNeighborsRequest struct {
	ZipCode string `json:"zipCode"`
	Radius  int    `json:"radius"`
}

func (s *Server) zipNeighbors(w http.ResponseWriter, r *http.Request) {
	var req zipNeighborsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validate.ZipCode(req.ZipCode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.Zip == nil {
		writeJSON(w, http.StatusOK, map[string]any{"centerZip": nil, "neighbors": []geo.ZipInfo{}, "message": "not_configured"})
		return
	}

	res, err := s.deps.Zip.Neighbors(r.Context(), req.ZipCode, req.Radius)
	if err != nil {
		if errors.Is(err, geo.ErrNotConfigured) {
			writeJSON(w, http.StatusOK, map[string]any{"centerZip": nil, "neighbors": []geo.ZipInfo{}, "message": "not_configured"})
			return
		}
		s.logger.Warn("zip neighbors failed", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"centerZip": nil, "neighbors": []geo.ZipInfo{}, "message": "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) publish(eventType string, b lead.Business) {
	evt := events.Event{Type: eventType, Business: b, At: time.Now()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
		}
	}()
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
