// Package duckduckgo implements crawler.SearchTool by scraping the DuckDuckGo
// HTML endpoint with Colly.
package duckduckgo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
)

// DefaultEndpoint is the JavaScript-free DuckDuckGo results page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const providerName = "duckduckgo"

// Config controls the DuckDuckGo client.
type Config struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

// Client implements crawler.SearchTool.
type Client struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.SetRequestTimeout(cfg.Timeout)
	return &Client{cfg: cfg, base: c, logger: logger}
}

// Search posts the query and parses up to numResults organic hits.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]crawler.SearchResult, error) {
	results, err := c.search(ctx, query, numResults)
	metrics.ObserveSearch(providerName, len(results), err)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, numResults int) ([]crawler.SearchResult, error) {
	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}

	var (
		body    []byte
		respErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Post(c.cfg.Endpoint, map[string]string{"q": query})
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("duckduckgo search canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("duckduckgo post failed: %w", err)
		}
		if respErr != nil {
			return nil, fmt.Errorf("duckduckgo response failed: %w", respErr)
		}
	}
	return ParseResults(bytes.NewReader(body), numResults)
}

// ParseResults extracts organic results from a DuckDuckGo HTML page. Ads and
// entries without a usable http(s) link are skipped.
func ParseResults(r io.Reader, limit int) ([]crawler.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	results := []crawler.SearchResult{}
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		anchor := s.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		link := resolveLink(href)
		if link == "" {
			return true
		}
		results = append(results, crawler.SearchResult{
			Link:    link,
			Title:   collapse(anchor.Text()),
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
		})
		return true
	})
	return results, nil
}

// resolveLink unwraps DuckDuckGo redirect links ("//duckduckgo.com/l/?uddg=...").
func resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		return resolveLink(target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
