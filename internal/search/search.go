// Package search gives agent runs access to web search.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Results holds the hits for one query.
type Results struct {
	Query string   `json:"query"`
	Items []Result `json:"items"`
}

// FirstLink returns the URL of the top hit, or "" when there were none.
func (r *Results) FirstLink() string {
	if r == nil || len(r.Items) == 0 {
		return ""
	}
	return r.Items[0].URL
}

// Client runs web searches.
type Client interface {
	Search(ctx context.Context, query string) (*Results, error)
}

// BingClient queries the Bing Web Search API.
type BingClient struct {
	key      string
	endpoint string
	http     *http.Client
}

func NewBingClient(key, endpoint string) *BingClient {
	return &BingClient{
		key:      key,
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type bingResponse struct {
	WebPages struct {
		Value []Result `json:"value"`
	} `json:"webPages"`
}

func (c *BingClient) Search(ctx context.Context, query string) (*Results, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search.BingClient.Search: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("mkt", "en-US")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search.BingClient.Search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search.BingClient.Search: unexpected status %d", resp.StatusCode)
	}

	var body bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("search.BingClient.Search: decode response: %w", err)
	}

	return &Results{Query: query, Items: body.WebPages.Value}, nil
}
