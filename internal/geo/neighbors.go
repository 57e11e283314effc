package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

const zipAPIEndpoint = "https://www.zipcodeapi.com/rest"

// ErrNotConfigured marks a ZIP lookup without an API key.
var ErrNotConfigured = errors.New("zip api not configured")

// ZipInfo describes one ZIP code area.
type ZipInfo struct {
	ZipCode  string  `json:"zipCode"`
	City     string  `json:"city"`
	State    string  `json:"state"`
	Distance float64 `json:"distance,omitempty"`
}

// NeighborResult is the center ZIP plus everything within the radius.
type NeighborResult struct {
	CenterZip ZipInfo   `json:"centerZip"`
	Neighbors []ZipInfo `json:"neighbors"`
}

// ZipClient resolves neighboring ZIP codes through a zipcodeapi-style vendor.
type ZipClient struct {
	apiKey   string
	client   *http.Client
	endpoint string
}

// NewZipClient builds the client. An empty key makes Neighbors return
// ErrNotConfigured.
func NewZipClient(apiKey string, client *http.Client) *ZipClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ZipClient{apiKey: apiKey, client: client, endpoint: zipAPIEndpoint}
}

// Neighbors returns ZIP codes within radiusMiles of zip, nearest first as the
// vendor orders them. The center ZIP itself is reported separately.
func (z *ZipClient) Neighbors(ctx context.Context, zip string, radiusMiles int) (NeighborResult, error) {
	if z.apiKey == "" {
		return NeighborResult{}, ErrNotConfigured
	}
	if radiusMiles <= 0 {
		radiusMiles = 10
	}

	url := fmt.Sprintf("%s/%s/radius.json/%s/%d/mile", z.endpoint, z.apiKey, zip, radiusMiles)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NeighborResult{}, fmt.Errorf("zip neighbors: build request: %w", err)
	}
	resp, err := z.client.Do(req)
	if err != nil {
		return NeighborResult{}, fmt.Errorf("zip neighbors: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return NeighborResult{}, fmt.Errorf("zip neighbors: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		ZipCodes []struct {
			ZipCode  string  `json:"zip_code"`
			City     string  `json:"city"`
			State    string  `json:"state"`
			Distance float64 `json:"distance"`
		} `json:"zip_codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return NeighborResult{}, fmt.Errorf("zip neighbors: decode response: %w", err)
	}

	result := NeighborResult{CenterZip: ZipInfo{ZipCode: zip}}
	for _, item := range raw.ZipCodes {
		normalized := lead.NormalizeZip(item.ZipCode)
		if normalized == "" {
			continue
		}
		info := ZipInfo{
			ZipCode:  normalized,
			City:     item.City,
			State:    item.State,
			Distance: item.Distance,
		}
		if normalized == zip {
			info.Distance = 0
			result.CenterZip = info
			continue
		}
		result.Neighbors = append(result.Neighbors, info)
	}
	return result, nil
}
