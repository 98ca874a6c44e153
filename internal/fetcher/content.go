// Package fetcher turns candidate links into the plain text handed to the
// critic.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
)

// Errors reported by Content.Fetch.
var (
	ErrStatus  = errors.New("unexpected response status")
	ErrBlocked = errors.New("host is blocked")
)

// Mode selects the transport used for page retrieval.
type Mode string

// Supported transport modes.
const (
	ModeColly    Mode = "colly"
	ModeHeadless Mode = "headless"
	ModeAuto     Mode = "auto"
)

// Extractor converts a raw document body into plain text.
type Extractor interface {
	Extract(link string, body []byte) (string, error)
}

// Promoter decides whether a plain fetch should be redone in a browser.
type Promoter interface {
	ShouldPromote(doc crawler.Document) bool
}

// Pacer delays a fetch until the target host may be contacted again.
type Pacer interface {
	Wait(ctx context.Context, link string) error
}

// Gate rejects links before any request is made.
type Gate interface {
	Blocked(link string) bool
}

// Options wires a Content fetcher. Headless and Promoter are only consulted
// in auto mode; Pacer and Gate are optional.
type Options struct {
	Primary   crawler.DocumentFetcher
	Headless  crawler.DocumentFetcher
	Promoter  Promoter
	Extractor Extractor
	Pacer     Pacer
	Gate      Gate
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Content implements crawler.ContentFetcher.
type Content struct {
	primary   crawler.DocumentFetcher
	headless  crawler.DocumentFetcher
	promoter  Promoter
	extractor Extractor
	pacer     Pacer
	gate      Gate
	timeout   time.Duration
	logger    *zap.Logger
}

// NewContent validates opts and returns a Content fetcher.
func NewContent(opts Options) (*Content, error) {
	if opts.Primary == nil {
		return nil, errors.New("primary document fetcher is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if (opts.Headless == nil) != (opts.Promoter == nil) {
		return nil, errors.New("headless fetcher and promoter must be set together")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Content{
		primary:   opts.Primary,
		headless:  opts.Headless,
		promoter:  opts.Promoter,
		extractor: opts.Extractor,
		pacer:     opts.Pacer,
		gate:      opts.Gate,
		timeout:   opts.Timeout,
		logger:    logger,
	}, nil
}

// Fetch retrieves link within the configured timeout and returns its text.
// Any transport, status, or extraction problem is returned as an error.
func (c *Content) Fetch(ctx context.Context, link string) (string, error) {
	if c.gate != nil && c.gate.Blocked(link) {
		c.logger.Debug("page blocked", zap.String("url", link))
		return "", fmt.Errorf("fetch %s: %w", link, ErrBlocked)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, size, err := c.fetch(ctx, link)
	metrics.ObserveFetch(link, size, err, time.Since(start))
	if err != nil {
		c.logger.Debug("page fetch failed", zap.String("url", link), zap.Error(err))
		return "", err
	}
	c.logger.Debug("page fetched",
		zap.String("url", link),
		zap.Int("bytes", size),
		zap.Int("text_chars", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (c *Content) fetch(ctx context.Context, link string) (string, int, error) {
	// the wait counts against the page timeout
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx, link); err != nil {
			return "", 0, fmt.Errorf("fetch %s: %w", link, err)
		}
	}
	doc, err := c.primary.Fetch(ctx, link)
	if err != nil {
		return "", 0, fmt.Errorf("fetch %s: %w", link, err)
	}
	if c.promoter != nil && c.promoter.ShouldPromote(doc) {
		c.logger.Debug("promoting to headless", zap.String("url", link))
		rendered, herr := c.headless.Fetch(ctx, link)
		if herr != nil {
			return "", 0, fmt.Errorf("headless fetch %s: %w", link, herr)
		}
		doc = rendered
	}
	if doc.StatusCode < 200 || doc.StatusCode > 299 {
		return "", len(doc.Body), fmt.Errorf("fetch %s: %w: %d", link, ErrStatus, doc.StatusCode)
	}
	text, err := c.extractor.Extract(link, doc.Body)
	if err != nil {
		return "", len(doc.Body), fmt.Errorf("extract %s: %w", link, err)
	}
	return text, len(doc.Body), nil
}
