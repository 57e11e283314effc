package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const yelpEndpoint = "https://api.yelp.com/v3/businesses"

// Yelp searches the Yelp Fusion API. Yelp's location search is trusted as-is,
// so no ZIP filtering is applied, and the business's Yelp profile page goes in
// the website field since Fusion never exposes the real site.
type Yelp struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	logger   *zap.Logger
	endpoint string
}

// NewYelp builds the adapter.
func NewYelp(apiKey string, client *http.Client, gate QuotaGate, logger *zap.Logger) *Yelp {
	if client == nil {
		client = defaultClient()
	}
	return &Yelp{
		apiKey:   apiKey,
		client:   client,
		gate:     gate,
		logger:   nopLogger(logger),
		endpoint: yelpEndpoint,
	}
}

// Source implements Searcher.
func (y *Yelp) Source() lead.Source { return lead.SourceYelp }

type yelpBusiness struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	Phone      string  `json:"phone"`
	Rating     float64 `json:"rating"`
	ReviewCnt  int     `json:"review_count"`
	IsClosed   bool    `json:"is_closed"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		Address1       string   `json:"address1"`
		City           string   `json:"city"`
		State          string   `json:"state"`
		ZipCode        string   `json:"zip_code"`
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

func (yb yelpBusiness) toBusiness(source lead.Source, searchedZip string) lead.Business {
	names := make([]string, 0, len(yb.Categories))
	for _, c := range yb.Categories {
		names = append(names, c.Title)
	}
	b := lead.Business{
		PlaceID:     yb.ID,
		Name:        yb.Name,
		Address:     yb.Location.Address1,
		FullAddress: strings.Join(yb.Location.DisplayAddress, ", "),
		City:        yb.Location.City,
		State:       yb.Location.State,
		Zip:         lead.NormalizeZip(yb.Location.ZipCode),
		Phone:       yb.Phone,
		// Yelp profile URL, not the business's own site.
		Website:         stripYelpTracking(yb.URL),
		Rating:          yb.Rating,
		ReviewCount:     yb.ReviewCnt,
		Lat:             yb.Coordinates.Latitude,
		Lng:             yb.Coordinates.Longitude,
		Categories:      strings.Join(names, ", "),
		IsClosed:        yb.IsClosed,
		Source:          source,
		SearchedZipCode: searchedZip,
	}
	if b.PlaceID == "" {
		b.PlaceID = lead.SynthesizePlaceID(source)
	}
	if b.Zip == "" {
		b.Zip = searchedZip
	}
	return b
}

// Search implements Searcher.
func (y *Yelp) Search(ctx context.Context, zip, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s in %s", category, zip)
	if y.apiKey == "" {
		return emptyResult(lead.SourceYelp, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, y.gate, "yelp") {
		return emptyResult(lead.SourceYelp, query, MsgQuotaExceeded), nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	q := url.Values{}
	q.Set("term", category)
	q.Set("location", zip)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return emptyResult(lead.SourceYelp, query, "request build failed"), nil
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)

	resp, err := y.client.Do(req)
	if err != nil {
		y.logger.Warn("yelp request failed", zap.Error(err))
		return emptyResult(lead.SourceYelp, query, "request failed"), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	record(y.gate, "yelp")

	if resp.StatusCode != http.StatusOK {
		y.logger.Warn("yelp unexpected status", zap.Int("status", resp.StatusCode))
		return emptyResult(lead.SourceYelp, query, fmt.Sprintf("status %d", resp.StatusCode)), nil
	}

	var raw struct {
		Businesses []yelpBusiness `json:"businesses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		y.logger.Warn("yelp decode failed", zap.Error(err))
		return emptyResult(lead.SourceYelp, query, "malformed response"), nil
	}

	businesses := make([]lead.Business, 0, len(raw.Businesses))
	for _, yb := range raw.Businesses {
		businesses = append(businesses, yb.toBusiness(lead.SourceYelp, zip))
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceYelp, Query: query}, nil
}

// Details fetches a single business by Yelp ID.
func (y *Yelp) Details(ctx context.Context, id string) (lead.Business, error) {
	if y.apiKey == "" {
		return lead.Business{}, fmt.Errorf("yelp details: api key not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.endpoint+"/"+url.PathEscape(id), nil)
	if err != nil {
		return lead.Business{}, fmt.Errorf("yelp details: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return lead.Business{}, fmt.Errorf("yelp details: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	record(y.gate, "yelp")

	if resp.StatusCode != http.StatusOK {
		return lead.Business{}, fmt.Errorf("yelp details: status %d", resp.StatusCode)
	}
	var yb yelpBusiness
	if err := json.NewDecoder(resp.Body).Decode(&yb); err != nil {
		return lead.Business{}, fmt.Errorf("yelp details: decode: %w", err)
	}
	return yb.toBusiness(lead.SourceYelpDetails, ""), nil
}

// stripYelpTracking drops the adjust/campaign query junk Yelp appends to
// profile URLs.
func stripYelpTracking(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
