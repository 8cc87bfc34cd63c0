// Package websearch wraps the SerpAPI web-search endpoint. One bounded GET
// per query, no retries; the result is an ordered list of (title, link)
// pairs ready for rendering.
//
// Upstream failures (transport errors, non-2xx statuses, malformed bodies)
// are reported as services.ErrSearch; the router maps that to a static
// user-facing message.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
)

// maxBodyBytes caps how much of the upstream response is read.
const maxBodyBytes = 2 << 20

// Result is one ranked search hit.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Client calls the search API. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient constructs a search client for the given endpoint and key.
// timeout bounds the whole request including body read.
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "websearch").Logger(),
	}
}

// searchResponse mirrors the subset of the SerpAPI payload we consume.
type searchResponse struct {
	OrganicResults []Result `json:"organic_results"`
}

// Search runs one query and returns up to limit ranked results, preserving
// upstream order. An empty result list is a valid outcome, not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", services.ErrSearch, err)
	}
	qs := u.Query()
	qs.Set("q", query)
	qs.Set("api_key", c.apiKey)
	qs.Set("num", strconv.Itoa(limit))
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrSearch, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("search request failed")
		return nil, fmt.Errorf("%w: %v", services.ErrSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().Int("status", resp.StatusCode).Msg("search returned non-2xx")
		return nil, fmt.Errorf("%w: status %d", services.ErrSearch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", services.ErrSearch, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", services.ErrSearch, err)
	}

	results := parsed.OrganicResults
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
