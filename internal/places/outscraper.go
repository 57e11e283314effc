package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const (
	outscraperEndpoint = "https://api.app.outscraper.com/maps/search-v3"

	outscraperMaxPolls     = 5
	outscraperPollInterval = 3 * time.Second
)

// Outscraper searches Google Maps through the Outscraper API. Responses come
// in three shapes: an async acknowledgement carrying a results location, a
// nested data array (one inner array per query), or a flat data array. Any
// other shape is treated as no results rather than guessed at.
type Outscraper struct {
	apiKey       string
	client       *http.Client
	gate         QuotaGate
	logger       *zap.Logger
	endpoint     string
	pollInterval time.Duration
}

// NewOutscraper builds the adapter.
func NewOutscraper(apiKey string, client *http.Client, gate QuotaGate, logger *zap.Logger) *Outscraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Outscraper{
		apiKey:       apiKey,
		client:       client,
		gate:         gate,
		logger:       nopLogger(logger),
		endpoint:     outscraperEndpoint,
		pollInterval: outscraperPollInterval,
	}
}

// Source implements Searcher.
func (o *Outscraper) Source() lead.Source { return lead.SourceOutscraper }

type outscraperEnvelope struct {
	Status          string          `json:"status"`
	ResultsLocation string          `json:"results_location"`
	Data            json.RawMessage `json:"data"`
}

type outscraperPlace struct {
	PlaceID      string  `json:"place_id"`
	Name         string  `json:"name"`
	Street       string  `json:"street"`
	FullAddress  string  `json:"full_address"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code"`
	Phone        string  `json:"phone"`
	Site         string  `json:"site"`
	Rating       float64 `json:"rating"`
	Reviews      int     `json:"reviews"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Type         string  `json:"type"`
	BusinessStat string  `json:"business_status"`
}

// Search implements Searcher.
func (o *Outscraper) Search(ctx context.Context, zip, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s, %s", category, zip)
	if o.apiKey == "" {
		return emptyResult(lead.SourceOutscraper, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, o.gate, "outscraper") {
		return emptyResult(lead.SourceOutscraper, query, MsgQuotaExceeded), nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("async", "false")
	env, ok := o.fetch(ctx, o.endpoint+"?"+q.Encode())
	if !ok {
		return emptyResult(lead.SourceOutscraper, query, "request failed"), nil
	}
	record(o.gate, "outscraper")

	// Async acknowledgement: poll the results location until the job
	// finishes or we run out of attempts.
	for polls := 0; strings.EqualFold(env.Status, "Pending") && env.ResultsLocation != ""; polls++ {
		if polls >= outscraperMaxPolls {
			return emptyResult(lead.SourceOutscraper, query, "timeout waiting for results"), nil
		}
		select {
		case <-ctx.Done():
			return emptyResult(lead.SourceOutscraper, query, "timeout waiting for results"), nil
		case <-time.After(o.pollInterval):
		}
		next, ok := o.fetch(ctx, env.ResultsLocation)
		if !ok {
			return emptyResult(lead.SourceOutscraper, query, "request failed"), nil
		}
		env = next
	}

	places, ok := decodeOutscraperData(env.Data)
	if !ok {
		o.logger.Warn("outscraper unrecognized data shape")
		return emptyResult(lead.SourceOutscraper, query, "unrecognized response shape"), nil
	}

	businesses := make([]lead.Business, 0, len(places))
	for _, p := range places {
		b := lead.Business{
			PlaceID:         p.PlaceID,
			Name:            p.Name,
			Address:         p.Street,
			FullAddress:     p.FullAddress,
			City:            p.City,
			State:           p.State,
			Zip:             lead.NormalizeZip(p.PostalCode),
			Phone:           p.Phone,
			Website:         p.Site,
			Rating:          p.Rating,
			ReviewCount:     p.Reviews,
			Lat:             p.Latitude,
			Lng:             p.Longitude,
			Categories:      p.Type,
			IsClosed:        p.BusinessStat == "CLOSED_PERMANENTLY",
			Source:          lead.SourceOutscraper,
			SearchedZipCode: zip,
		}
		if b.PlaceID == "" {
			b.PlaceID = lead.SynthesizePlaceID(lead.SourceOutscraper)
		}
		if !acceptExactZip(&b, zip) {
			continue
		}
		businesses = append(businesses, b)
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceOutscraper, Query: query}, nil
}

func (o *Outscraper) fetch(ctx context.Context, rawURL string) (outscraperEnvelope, bool) {
	var env outscraperEnvelope
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return env, false
	}
	req.Header.Set("X-API-KEY", o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Warn("outscraper request failed", zap.Error(err))
		return env, false
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		o.logger.Warn("outscraper unexpected status", zap.Int("status", resp.StatusCode))
		return env, false
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		o.logger.Warn("outscraper decode failed", zap.Error(err))
		return env, false
	}
	return env, true
}

// decodeOutscraperData accepts both the nested ([[{...}]]) and flat ([{...}])
// data shapes. Anything else reports failure so callers fail closed.
func decodeOutscraperData(data json.RawMessage) ([]outscraperPlace, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var nested [][]outscraperPlace
	if err := json.Unmarshal(data, &nested); err == nil {
		var places []outscraperPlace
		for _, inner := range nested {
			places = append(places, inner...)
		}
		return places, true
	}
	var flat []outscraperPlace
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, true
	}
	return nil, false
}
