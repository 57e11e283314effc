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

const foursquareEndpoint = "https://api.foursquare.com/v3/places/search"

// Foursquare searches the Foursquare Places API. Its `near` filter returns
// farther results than HERE's coordinate search does, so only exact ZIP matches
// are kept — no prefix tolerance.
type Foursquare struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	logger   *zap.Logger
	endpoint string
}

// NewFoursquare builds the adapter.
func NewFoursquare(apiKey string, client *http.Client, gate QuotaGate, logger *zap.Logger) *Foursquare {
	if client == nil {
		client = defaultClient()
	}
	return &Foursquare{
		apiKey:   apiKey,
		client:   client,
		gate:     gate,
		logger:   nopLogger(logger),
		endpoint: foursquareEndpoint,
	}
}

// Source implements Searcher.
func (f *Foursquare) Source() lead.Source { return lead.SourceFoursquare }

// Search implements Searcher.
func (f *Foursquare) Search(ctx context.Context, zip, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s near %s", category, zip)
	if f.apiKey == "" {
		return emptyResult(lead.SourceFoursquare, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, f.gate, "foursquare") {
		return emptyResult(lead.SourceFoursquare, query, MsgQuotaExceeded), nil
	}
	if limit <= 0 || limit > 50 {
		limit = 25
	}

	q := url.Values{}
	q.Set("near", zip)
	q.Set("query", category)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "fsq_id,name,location,geocodes,categories,rating,stats,tel,website,closed_bucket")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return emptyResult(lead.SourceFoursquare, query, "request build failed"), nil
	}
	req.Header.Set("Authorization", f.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("foursquare request failed", zap.Error(err))
		return emptyResult(lead.SourceFoursquare, query, "request failed"), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	record(f.gate, "foursquare")

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("foursquare unexpected status", zap.Int("status", resp.StatusCode))
		return emptyResult(lead.SourceFoursquare, query, fmt.Sprintf("status %d", resp.StatusCode)), nil
	}

	var raw struct {
		Results []struct {
			FsqID    string `json:"fsq_id"`
			Name     string `json:"name"`
			Tel      string `json:"tel"`
			Website  string `json:"website"`
			Location struct {
				Address          string `json:"address"`
				Locality         string `json:"locality"`
				Region           string `json:"region"`
				Postcode         string `json:"postcode"`
				FormattedAddress string `json:"formatted_address"`
			} `json:"location"`
			Geocodes struct {
				Main struct {
					Latitude  float64 `json:"latitude"`
					Longitude float64 `json:"longitude"`
				} `json:"main"`
			} `json:"geocodes"`
			Categories []struct {
				Name string `json:"name"`
			} `json:"categories"`
			Rating       float64 `json:"rating"`
			ClosedBucket string  `json:"closed_bucket"`
			Stats        struct {
				TotalRatings int `json:"total_ratings"`
			} `json:"stats"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		f.logger.Warn("foursquare decode failed", zap.Error(err))
		return emptyResult(lead.SourceFoursquare, query, "malformed response"), nil
	}

	businesses := make([]lead.Business, 0, len(raw.Results))
	for _, item := range raw.Results {
		names := make([]string, 0, len(item.Categories))
		for _, c := range item.Categories {
			names = append(names, c.Name)
		}
		b := lead.Business{
			PlaceID:     item.FsqID,
			Name:        item.Name,
			Address:     item.Location.Address,
			FullAddress: item.Location.FormattedAddress,
			City:        item.Location.Locality,
			State:       item.Location.Region,
			Zip:         lead.NormalizeZip(item.Location.Postcode),
			Phone:       item.Tel,
			Website:     item.Website,
			// Foursquare rates on a 0-10 scale.
			Rating:          item.Rating / 2,
			ReviewCount:     item.Stats.TotalRatings,
			Lat:             item.Geocodes.Main.Latitude,
			Lng:             item.Geocodes.Main.Longitude,
			Categories:      strings.Join(names, ", "),
			IsClosed:        item.ClosedBucket == "VeryLikelyClosed",
			Source:          lead.SourceFoursquare,
			SearchedZipCode: zip,
		}
		if b.PlaceID == "" {
			b.PlaceID = lead.SynthesizePlaceID(lead.SourceFoursquare)
		}
		if !acceptExactZip(&b, zip) {
			continue
		}
		businesses = append(businesses, b)
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceFoursquare, Query: query}, nil
}
