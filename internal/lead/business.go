// Package lead defines the business record every discovery provider normalizes into,
// plus the ZIP handling helpers the geographic-fidelity rules depend on.
package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies which provider produced a business record.
type Source string

// Known provider sources.
const (
	SourceHere         Source = "here"
	SourceFoursquare   Source = "foursquare"
	SourceGooglePlaces Source = "google_places"
	SourceOutscraper   Source = "outscraper"
	SourceYelp         Source = "yelp"
	SourceYelpDetails  Source = "yelp_details"
)

// Business is the unified record shape produced by every geographic search adapter.
// String fields are empty when unknown, never null; callers rely on falsy-string
// checks. Rating is always on a 0-5 scale regardless of the vendor's own scale.
type Business struct {
	PlaceID     string  `json:"placeId"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	FullAddress string  `json:"fullAddress"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Zip         string  `json:"zip"`
	Phone       string  `json:"phone"`
	Website     string  `json:"website"`
	Email       string  `json:"email"`
	Facebook    string  `json:"facebook"`
	Instagram   string  `json:"instagram"`
	Linkedin    string  `json:"linkedin"`
	Twitter     string  `json:"twitter"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Categories  string  `json:"categories"`
	IsClosed    bool    `json:"isClosed"`
	Source      Source  `json:"source"`

	// SearchedZipCode is the ZIP the query targeted, which may differ from the
	// business's own Zip. Kept for traceability of filtering decisions.
	SearchedZipCode string `json:"searchedZipCode"`

	// Enriched is true once at least one contact channel beyond phone was found.
	Enriched bool `json:"enriched"`
}

// SearchResult is a single web-search hit. Ephemeral: consumed by the relevance
// filter and never persisted.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SynthesizePlaceID builds a provider-scoped identifier for vendors that do not
// return one of their own.
func SynthesizePlaceID(provider Source) string {
	return fmt.Sprintf("%s_%d_%s", provider, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NormalizeZip reduces a raw postal code to its 5-digit US form. ZIP+4 suffixes are
// stripped. Returns "" when no leading run of 5 digits exists.
func NormalizeZip(raw string) string {
	raw = strings.TrimSpace(raw)
	digits := make([]byte, 0, 5)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < '0' || c > '9' {
			break
		}
		digits = append(digits, c)
		if len(digits) == 5 {
			break
		}
	}
	if len(digits) != 5 {
		return ""
	}
	return string(digits)
}

// ZipPrefixMatch reports whether two 5-digit ZIPs share the same 3-digit sectional
// prefix. Empty inputs never match.
func ZipPrefixMatch(a, b string) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	return a[:3] == b[:3]
}

// StatesConflict reports whether two state values are both known and different.
// Comparison is case-insensitive; an empty side never conflicts.
func StatesConflict(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return !strings.EqualFold(a, b)
}
