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

const scrapingdogEndpoint = "https://api.scrapingdog.com/google"

// Scrapingdog proxies search-engine result pages through scrapingdog.com. Last
// resort in the cascade: cheapest, noisiest results.
type Scrapingdog struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	endpoint string
}

// NewScrapingdog builds the adapter.
func NewScrapingdog(apiKey string, client *http.Client, gate QuotaGate) *Scrapingdog {
	if client == nil {
		client = defaultClient()
	}
	return &Scrapingdog{apiKey: apiKey, client: client, gate: gate, endpoint: scrapingdogEndpoint}
}

// Name implements Provider.
func (s *Scrapingdog) Name() string { return "scrapingdog" }

// Search implements Provider.
func (s *Scrapingdog) Search(ctx context.Context, query string, limit int) ([]lead.SearchResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("scrapingdog: %w", ErrNotConfigured)
	}
	if err := checkGate(ctx, s.gate, s.Name()); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("query", query)
	q.Set("results", strconv.Itoa(limit))
	q.Set("country", "us")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("scrapingdog: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrapingdog: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	recordCall(s.gate, s.Name())

	if resp.StatusCode != http.StatusOK {
		return nil, vendorStatusErr("scrapingdog", resp.StatusCode)
	}

	// The vendor has shipped both a bare array and an object wrapper; accept both.
	var wrapper struct {
		OrganicResults []scrapingdogItem `json:"organic_results"`
	}
	var items []scrapingdogItem
	body := json.NewDecoder(resp.Body)
	var rawMsg json.RawMessage
	if err := body.Decode(&rawMsg); err != nil {
		return nil, fmt.Errorf("scrapingdog: decode response: %w", err)
	}
	if err := json.Unmarshal(rawMsg, &wrapper); err == nil && len(wrapper.OrganicResults) > 0 {
		items = wrapper.OrganicResults
	} else if err := json.Unmarshal(rawMsg, &items); err != nil {
		return nil, fmt.Errorf("scrapingdog: unrecognized response shape: %w", err)
	}

	results := make([]lead.SearchResult, 0, len(items))
	for i, item := range items {
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

type scrapingdogItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
