package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const googleCSEEndpoint = "https://customsearch.googleapis.com/customsearch/v1"

// GoogleCSE queries the Google Programmable Search Engine API. Needs both an API
// key and a search-engine ID (cx).
type GoogleCSE struct {
	apiKey   string
	cx       string
	client   *http.Client
	gate     QuotaGate
	endpoint string
}

// NewGoogleCSE builds the adapter.
func NewGoogleCSE(apiKey, cx string, client *http.Client, gate QuotaGate) *GoogleCSE {
	if client == nil {
		client = defaultClient()
	}
	return &GoogleCSE{apiKey: apiKey, cx: cx, client: client, gate: gate, endpoint: googleCSEEndpoint}
}

// Name implements Provider.
func (g *GoogleCSE) Name() string { return "google_cse" }

// Search implements Provider.
func (g *GoogleCSE) Search(ctx context.Context, query string, limit int) ([]lead.SearchResult, error) {
	if g.apiKey == "" || g.cx == "" {
		return nil, fmt.Errorf("google_cse: %w", ErrNotConfigured)
	}
	if err := checkGate(ctx, g.gate, g.Name()); err != nil {
		return nil, err
	}
	// The API caps num at 10.
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("cx", g.cx)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google_cse: build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google_cse: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	recordCall(g.gate, g.Name())

	if resp.StatusCode != http.StatusOK {
		return nil, vendorStatusErr("google_cse", resp.StatusCode)
	}

	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("google_cse: decode response: %w", err)
	}

	results := make([]lead.SearchResult, 0, len(raw.Items))
	for i, item := range raw.Items {
		if i >= limit {
			break
		}
		results = append(results, lead.SearchResult{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Snippet,
		})
	}
	return results, nil
}
