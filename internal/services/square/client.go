package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	productionBaseURL = "https://connect.squareup.com"
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	apiVersion        = "2024-01-18"

	// Batch endpoints accept at most 100 catalog object ids per request
	batchSize = 100
)

// APIError is returned for non-2xx upstream responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("square api failed: %d - %s", e.StatusCode, e.Body)
}

// Client talks to the POS provider's REST API. It is stateless; retries
// are the caller's responsibility.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a catalog API client for the given environment
func NewClient(token string, isProduction bool) *Client {
	baseURL := sandboxBaseURL
	if isProduction {
		baseURL = productionBaseURL
	}

	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// request issues one authenticated JSON request and decodes the response
// into out. Non-2xx responses come back as *APIError.
func (c *Client) request(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
		}
	}
	return nil
}

// ListCatalogObjects fetches the full catalog (items and taxes), following
// the pagination cursor until the last page. Errors here are fatal to a
// sync: the catalog is the backbone of the data model.
func (c *Client) ListCatalogObjects(ctx context.Context) ([]CatalogObject, error) {
	var all []CatalogObject
	cursor := ""

	for {
		endpoint := "/v2/catalog/list?types=ITEM,TAX"
		if cursor != "" {
			endpoint += "&cursor=" + url.QueryEscape(cursor)
		}

		var page struct {
			Objects []CatalogObject `json:"objects"`
			Cursor  string          `json:"cursor"`
		}
		if err := c.request(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Objects...)
		if page.Cursor == "" {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// ListLocations returns the merchant's location ids. Failures are
// non-fatal: the sync proceeds without a location filter.
func (c *Client) ListLocations(ctx context.Context) []string {
	var resp struct {
		Locations []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"locations"`
	}

	if err := c.request(ctx, http.MethodGet, "/v2/locations", nil, &resp); err != nil {
		log.Printf("[SYNC] Could not fetch locations: %v", err)
		return nil
	}

	ids := make([]string, 0, len(resp.Locations))
	for _, loc := range resp.Locations {
		ids = append(ids, loc.ID)
	}
	log.Printf("[SYNC] Found %d locations", len(ids))
	return ids
}

// GetInventoryCounts returns summed IN_STOCK quantities per variation
// across all given locations. Requests go out in batches of at most 100
// ids; a failed batch is logged and its contribution omitted.
func (c *Client) GetInventoryCounts(ctx context.Context, variationIDs, locationIDs []string) map[string]int {
	counts := make(map[string]int)

	for _, batch := range batches(variationIDs, batchSize) {
		body := map[string]interface{}{
			"catalog_object_ids": batch,
			"states":             []string{"IN_STOCK"},
		}
		if len(locationIDs) > 0 {
			body["location_ids"] = locationIDs
		}

		var resp struct {
			Counts []struct {
				CatalogObjectID string `json:"catalog_object_id"`
				Quantity        string `json:"quantity"`
			} `json:"counts"`
		}
		if err := c.request(ctx, http.MethodPost, "/v2/inventory/batch-retrieve-counts", body, &resp); err != nil {
			log.Printf("[SYNC] Could not fetch inventory counts: %v", err)
			continue
		}

		for _, count := range resp.Counts {
			if count.CatalogObjectID == "" {
				continue
			}
			// Quantity arrives as a decimal string; unparsable counts as 0
			qty, err := strconv.ParseFloat(count.Quantity, 64)
			if err != nil {
				continue
			}
			counts[count.CatalogObjectID] += int(qty)
		}
	}

	return counts
}

// GetLastSoldDates returns the most recent SOLD adjustment timestamp per
// variation. Same batching and failure tolerance as GetInventoryCounts.
func (c *Client) GetLastSoldDates(ctx context.Context, variationIDs []string) map[string]time.Time {
	lastSold := make(map[string]time.Time)

	for _, batch := range batches(variationIDs, batchSize) {
		body := map[string]interface{}{
			"catalog_object_ids": batch,
			"types":              []string{"ADJUSTMENT"},
			"states":             []string{"SOLD"},
		}

		var resp struct {
			Changes []struct {
				Adjustment *struct {
					CatalogObjectID string `json:"catalog_object_id"`
					OccurredAt      string `json:"occurred_at"`
				} `json:"adjustment"`
			} `json:"changes"`
		}
		if err := c.request(ctx, http.MethodPost, "/v2/inventory/changes/batch-retrieve", body, &resp); err != nil {
			log.Printf("[SYNC] Could not fetch inventory changes: %v", err)
			continue
		}

		for _, change := range resp.Changes {
			adj := change.Adjustment
			if adj == nil || adj.CatalogObjectID == "" {
				continue
			}
			occurredAt, err := time.Parse(time.RFC3339, adj.OccurredAt)
			if err != nil {
				continue
			}
			if prev, ok := lastSold[adj.CatalogObjectID]; !ok || occurredAt.After(prev) {
				lastSold[adj.CatalogObjectID] = occurredAt
			}
		}
	}

	return lastSold
}

// GetMerchantInfo returns the merchant summary, degrading to a sentinel
// value on failure rather than aborting the sync.
func (c *Client) GetMerchantInfo(ctx context.Context) Merchant {
	var resp struct {
		Merchant *struct {
			BusinessName string `json:"business_name"`
			ID           string `json:"id"`
			Country      string `json:"country"`
		} `json:"merchant"`
	}

	if err := c.request(ctx, http.MethodGet, "/v2/merchants/me", nil, &resp); err != nil {
		log.Printf("[SYNC] Could not fetch merchant info: %v", err)
		return Merchant{Name: "Unknown Business"}
	}
	if resp.Merchant == nil {
		return Merchant{Name: "Unknown Business"}
	}

	name := resp.Merchant.BusinessName
	if name == "" {
		name = "Unknown Business"
	}
	return Merchant{
		Name:    name,
		ID:      resp.Merchant.ID,
		Country: resp.Merchant.Country,
	}
}

// batches splits ids into chunks of at most size elements
func batches(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
