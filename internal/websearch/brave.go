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

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API free tier.
type Brave struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	endpoint string
}

// NewBrave builds the adapter.
func NewBrave(apiKey string, client *http.Client, gate QuotaGate) *Brave {
	if client == nil {
		client = defaultClient()
	}
	return &Brave{apiKey: apiKey, client: client, gate: gate, endpoint: braveEndpoint}
}

// Name implements Provider.
func (b *Brave) Name() string { return "brave" }

// Search implements Provider.
func (b *Brave) Search(ctx context.Context, query string, limit int) ([]lead.SearchResult, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("brave: %w", ErrNotConfigured)
	}
	if err := checkGate(ctx, b.gate, b.Name()); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	recordCall(b.gate, b.Name())

	if resp.StatusCode != http.StatusOK {
		return nil, vendorStatusErr("brave", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]lead.SearchResult, 0, len(raw.Web.Results))
	for i, item := range raw.Web.Results {
		if i >= limit {
			break
		}
		results = append(results, lead.SearchResult{
			URL:         item.URL,
			Title:       item.Title,
			Description: item.Description,
		})
	}
	return results, nil
}
