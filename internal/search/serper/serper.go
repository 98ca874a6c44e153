// Package serper implements crawler.SearchTool with the Serper Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
)

// DefaultEndpoint is the Serper web search endpoint.
const DefaultEndpoint = "https://google.serper.dev/search"

const providerName = "serper"

// Doer is the subset of *http.Client used by the client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls the Serper client.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client implements crawler.SearchTool.
type Client struct {
	cfg    Config
	http   Doer
	logger *zap.Logger
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// New builds a Client. A nil doer uses an http.Client with cfg.Timeout.
func New(cfg Config, doer Doer, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("serper api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: doer, logger: logger}, nil
}

// Search returns up to numResults organic results.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]crawler.SearchResult, error) {
	results, err := c.search(ctx, query, numResults)
	metrics.ObserveSearch(providerName, len(results), err)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, numResults int) ([]crawler.SearchResult, error) {
	payload, err := json.Marshal(searchRequest{Query: query, Num: numResults})
	if err != nil {
		return nil, fmt.Errorf("encode serper request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}
	results := make([]crawler.SearchResult, 0, len(decoded.Organic))
	for _, item := range decoded.Organic {
		if numResults > 0 && len(results) >= numResults {
			break
		}
		if item.Link == "" {
			continue
		}
		results = append(results, crawler.SearchResult{
			Link:    item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
