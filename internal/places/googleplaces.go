package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const googlePlacesEndpoint = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// cityStateZipRe matches the trailing "City, ST 12345" portion of a Google
// formatted address, with or without a country suffix.
var cityStateZipRe = regexp.MustCompile(`([^,]+),\s*([A-Z]{2})\s+(\d{5})(?:-\d{4})?`)

// GooglePlaces searches the Places Text Search API with a "category in zip"
// query. Text Search regularly wanders into nearby ZIPs; only exact matches
// against the searched ZIP are kept.
type GooglePlaces struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	logger   *zap.Logger
	endpoint string
}

// NewGooglePlaces builds the adapter.
func NewGooglePlaces(apiKey string, client *http.Client, gate QuotaGate, logger *zap.Logger) *GooglePlaces {
	if client == nil {
		client = defaultClient()
	}
	return &GooglePlaces{
		apiKey:   apiKey,
		client:   client,
		gate:     gate,
		logger:   nopLogger(logger),
		endpoint: googlePlacesEndpoint,
	}
}

// Source implements Searcher.
func (g *GooglePlaces) Source() lead.Source { return lead.SourceGooglePlaces }

// Search implements Searcher.
func (g *GooglePlaces) Search(ctx context.Context, zip, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s in %s", category, zip)
	if g.apiKey == "" {
		return emptyResult(lead.SourceGooglePlaces, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, g.gate, "google_places") {
		return emptyResult(lead.SourceGooglePlaces, query, MsgQuotaExceeded), nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("key", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return emptyResult(lead.SourceGooglePlaces, query, "request build failed"), nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("google places request failed", zap.Error(err))
		return emptyResult(lead.SourceGooglePlaces, query, "request failed"), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	record(g.gate, "google_places")

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("google places unexpected status", zap.Int("status", resp.StatusCode))
		return emptyResult(lead.SourceGooglePlaces, query, fmt.Sprintf("status %d", resp.StatusCode)), nil
	}

	var raw struct {
		Status  string `json:"status"`
		Results []struct {
			PlaceID          string  `json:"place_id"`
			Name             string  `json:"name"`
			FormattedAddress string  `json:"formatted_address"`
			Rating           float64 `json:"rating"`
			UserRatingsTotal int     `json:"user_ratings_total"`
			BusinessStatus   string  `json:"business_status"`
			Types            []string `json:"types"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		g.logger.Warn("google places decode failed", zap.Error(err))
		return emptyResult(lead.SourceGooglePlaces, query, "malformed response"), nil
	}
	if raw.Status != "OK" && raw.Status != "ZERO_RESULTS" {
		g.logger.Warn("google places status", zap.String("status", raw.Status))
		return emptyResult(lead.SourceGooglePlaces, query, raw.Status), nil
	}

	businesses := make([]lead.Business, 0, len(raw.Results))
	for _, item := range raw.Results {
		if len(businesses) >= limit {
			break
		}
		city, state, itemZip, street := parseFormattedAddress(item.FormattedAddress)
		b := lead.Business{
			PlaceID:         item.PlaceID,
			Name:            item.Name,
			Address:         street,
			FullAddress:     item.FormattedAddress,
			City:            city,
			State:           state,
			Zip:             itemZip,
			Rating:          item.Rating,
			ReviewCount:     item.UserRatingsTotal,
			Lat:             item.Geometry.Location.Lat,
			Lng:             item.Geometry.Location.Lng,
			Categories:      strings.Join(item.Types, ", "),
			IsClosed:        item.BusinessStatus == "CLOSED_PERMANENTLY",
			Source:          lead.SourceGooglePlaces,
			SearchedZipCode: zip,
		}
		if b.PlaceID == "" {
			b.PlaceID = lead.SynthesizePlaceID(lead.SourceGooglePlaces)
		}
		if !acceptExactZip(&b, zip) {
			continue
		}
		businesses = append(businesses, b)
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceGooglePlaces, Query: query}, nil
}

// parseFormattedAddress splits "123 Main St, Buffalo, NY 14221, USA" into its
// street, city, state, and ZIP parts. Missing components come back empty.
func parseFormattedAddress(addr string) (city, state, zip, street string) {
	m := cityStateZipRe.FindStringSubmatchIndex(addr)
	if m == nil {
		return "", "", "", addr
	}
	city = strings.TrimSpace(addr[m[2]:m[3]])
	state = addr[m[4]:m[5]]
	zip = addr[m[6]:m[7]]
	street = strings.TrimSuffix(strings.TrimSpace(addr[:m[0]]), ",")
	return city, state, zip, street
}
