package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries serper.dev, the paid Google-proxy search API. Preferred first in
// the cascade: highest result quality per call.
type Serper struct {
	apiKey   string
	client   *http.Client
	gate     QuotaGate
	endpoint string
}

// NewSerper builds the adapter. An empty key yields ErrNotConfigured on Search.
func NewSerper(apiKey string, client *http.Client, gate QuotaGate) *Serper {
	if client == nil {
		client = defaultClient()
	}
	return &Serper{apiKey: apiKey, client: client, gate: gate, endpoint: serperEndpoint}
}

// Name implements Provider.
func (s *Serper) Name() string { return "serper" }

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]lead.SearchResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serper: %w", ErrNotConfigured)
	}
	if err := checkGate(ctx, s.gate, s.Name()); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	payload, err := json.Marshal(map[string]any{"q": query, "num": limit})
	if err != nil {
		return nil, fmt.Errorf("serper: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	recordCall(s.gate, s.Name())

	if resp.StatusCode != http.StatusOK {
		return nil, vendorStatusErr("serper", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}

	results := make([]lead.SearchResult, 0, len(raw.Organic))
	for i, item := range raw.Organic {
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
