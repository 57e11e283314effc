package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/geo"
	"github.com/tenkpostcards/leadscout/internal/lead"
)

const (
	hereGeocodeEndpoint  = "https://geocode.search.hereapi.com/v1/geocode"
	hereDiscoverEndpoint = "https://discover.search.hereapi.com/v1/discover"
)

// Here searches the HERE places API. Two-step: geocode the ZIP to a coordinate,
// then run a text discover around that point. Geocode results are cached.
type Here struct {
	apiKey           string
	client           *http.Client
	gate             QuotaGate
	cache            geo.Cache
	logger           *zap.Logger
	geocodeEndpoint  string
	discoverEndpoint string
}

// NewHere builds the adapter. cache may be nil to disable geocode caching.
func NewHere(apiKey string, client *http.Client, gate QuotaGate, cache geo.Cache, logger *zap.Logger) *Here {
	if client == nil {
		client = defaultClient()
	}
	return &Here{
		apiKey:           apiKey,
		client:           client,
		gate:             gate,
		cache:            cache,
		logger:           nopLogger(logger),
		geocodeEndpoint:  hereGeocodeEndpoint,
		discoverEndpoint: hereDiscoverEndpoint,
	}
}

// Source implements Searcher.
func (h *Here) Source() lead.Source { return lead.SourceHere }

// Search implements Searcher with the three-tier ZIP acceptance policy: exact
// match, same 3-digit prefix, or no vendor ZIP at all (trusted because the
// results are coordinate-local). Cross-state results are rejected even inside the
// prefix tolerance.
func (h *Here) Search(ctx context.Context, zip, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s near %s", category, zip)
	if h.apiKey == "" {
		return emptyResult(lead.SourceHere, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, h.gate, "here") {
		return emptyResult(lead.SourceHere, query, MsgQuotaExceeded), nil
	}

	point, searchedState, err := h.geocode(ctx, zip)
	if err != nil {
		h.logger.Warn("here geocode failed", zap.String("zip", zip), zap.Error(err))
		return emptyResult(lead.SourceHere, query, "geocode failed"), nil
	}

	items, err := h.discover(ctx, fmt.Sprintf("at=%f,%f", point.Lat, point.Lng), category, limit)
	if err != nil {
		h.logger.Warn("here discover failed", zap.String("zip", zip), zap.Error(err))
		return emptyResult(lead.SourceHere, query, "discover failed"), nil
	}

	businesses := make([]lead.Business, 0, len(items))
	for _, item := range items {
		b := item.toBusiness(zip)
		if !hereAcceptZip(&b, zip, searchedState) {
			continue
		}
		businesses = append(businesses, b)
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceHere, Query: query}, nil
}

// SearchRadius bypasses ZIP filtering entirely and trusts the coordinate radius.
func (h *Here) SearchRadius(ctx context.Context, lat, lng float64, radiusMeters int, category string, limit int) (Result, error) {
	query := fmt.Sprintf("%s within %dm", category, radiusMeters)
	if h.apiKey == "" {
		return emptyResult(lead.SourceHere, query, MsgNotConfigured), nil
	}
	if !gateAllows(ctx, h.gate, "here") {
		return emptyResult(lead.SourceHere, query, MsgQuotaExceeded), nil
	}

	in := fmt.Sprintf("at=%f,%f&in=circle:%f,%f;r=%d", lat, lng, lat, lng, radiusMeters)
	items, err := h.discover(ctx, in, category, limit)
	if err != nil {
		h.logger.Warn("here radius discover failed", zap.Error(err))
		return emptyResult(lead.SourceHere, query, "discover failed"), nil
	}

	businesses := make([]lead.Business, 0, len(items))
	for _, item := range items {
		businesses = append(businesses, item.toBusiness(""))
	}
	return Result{Businesses: businesses, Total: len(businesses), Source: lead.SourceHere, Query: query}, nil
}

// hereAcceptZip is the three-tier policy. The record's Zip is already normalized.
func hereAcceptZip(b *lead.Business, searchedZip, searchedState string) bool {
	if lead.StatesConflict(b.State, searchedState) {
		return false
	}
	if b.Zip == "" {
		b.Zip = searchedZip
		return true
	}
	if b.Zip == searchedZip {
		return true
	}
	return lead.ZipPrefixMatch(b.Zip, searchedZip)
}

func (h *Here) geocode(ctx context.Context, zip string) (geo.Point, string, error) {
	if h.cache != nil {
		if g, ok := h.cache.Get(ctx, zip); ok {
			return g.Point, g.State, nil
		}
	}

	q := url.Values{}
	q.Set("q", zip)
	q.Set("in", "countryCode:USA")
	q.Set("apiKey", h.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.geocodeEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return geo.Point{}, "", fmt.Errorf("build geocode request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return geo.Point{}, "", fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	record(h.gate, "here")

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, "", fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		Items []struct {
			Position struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"position"`
			Address struct {
				StateCode string `json:"stateCode"`
			} `json:"address"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return geo.Point{}, "", fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(raw.Items) == 0 {
		return geo.Point{}, "", fmt.Errorf("geocode: no result for %s", zip)
	}

	p := geo.Point{Lat: raw.Items[0].Position.Lat, Lng: raw.Items[0].Position.Lng}
	state := raw.Items[0].Address.StateCode
	if h.cache != nil {
		h.cache.Set(ctx, zip, geo.Geocode{Point: p, State: state})
	}
	return p, state, nil
}

func (h *Here) discover(ctx context.Context, location, category string, limit int) ([]hereItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	u := fmt.Sprintf("%s?%s&q=%s&limit=%d&apiKey=%s",
		h.discoverEndpoint, location, url.QueryEscape(category), limit, url.QueryEscape(h.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build discover request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	record(h.gate, "here")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		Items []hereItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("discover: decode response: %w", err)
	}
	return raw.Items, nil
}

type hereItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Address struct {
		Label       string `json:"label"`
		City        string `json:"city"`
		StateCode   string `json:"stateCode"`
		PostalCode  string `json:"postalCode"`
		Street      string `json:"street"`
		HouseNumber string `json:"houseNumber"`
	} `json:"address"`
	Position struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"position"`
	Contacts []struct {
		Phone []struct {
			Value string `json:"value"`
		} `json:"phone"`
		WWW []struct {
			Value string `json:"value"`
		} `json:"www"`
	} `json:"contacts"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
}

func (item hereItem) toBusiness(searchedZip string) lead.Business {
	b := lead.Business{
		PlaceID:         item.ID,
		Name:            item.Title,
		FullAddress:     item.Address.Label,
		City:            item.Address.City,
		State:           item.Address.StateCode,
		Zip:             lead.NormalizeZip(item.Address.PostalCode),
		Lat:             item.Position.Lat,
		Lng:             item.Position.Lng,
		Source:          lead.SourceHere,
		SearchedZipCode: searchedZip,
	}
	if b.PlaceID == "" {
		b.PlaceID = lead.SynthesizePlaceID(lead.SourceHere)
	}
	if item.Address.HouseNumber != "" || item.Address.Street != "" {
		b.Address = strings.TrimSpace(item.Address.HouseNumber + " " + item.Address.Street)
	}
	for _, contact := range item.Contacts {
		if b.Phone == "" && len(contact.Phone) > 0 {
			b.Phone = contact.Phone[0].Value
		}
		if b.Website == "" && len(contact.WWW) > 0 {
			b.Website = contact.WWW[0].Value
		}
	}
	names := make([]string, 0, len(item.Categories))
	for _, c := range item.Categories {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	b.Categories = strings.Join(names, ", ")
	return b
}
