// Package extract converts fetched HTML into the plain text handed to the critic.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Mode selects the extraction strategy.
type Mode string

// Supported extraction modes.
const (
	ModeText        Mode = "text"
	ModeReadability Mode = "readability"
)

// ErrEmptyContent is returned when a page yields no text.
var ErrEmptyContent = errors.New("page has no extractable text")

// strippedSelectors never contribute visible text.
const strippedSelectors = "script, style, noscript, template, iframe, svg, head"

// Extractor turns HTML into whitespace-collapsed text.
type Extractor struct {
	mode     Mode
	maxChars int
}

// New builds an Extractor. maxChars <= 0 disables truncation.
func New(mode Mode, maxChars int) (*Extractor, error) {
	switch mode {
	case "":
		mode = ModeText
	case ModeText, ModeReadability:
	default:
		return nil, fmt.Errorf("unknown extract mode %q", mode)
	}
	return &Extractor{mode: mode, maxChars: maxChars}, nil
}

// Extract returns the text of body. link is used to resolve relative URLs in
// readability mode.
func (e *Extractor) Extract(link string, body []byte) (string, error) {
	var (
		text string
		err  error
	)
	if e.mode == ModeReadability {
		text, err = Readable(link, body)
		if err != nil || text == "" {
			text, err = Text(body)
		}
	} else {
		text, err = Text(body)
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyContent
	}
	return Truncate(text, e.maxChars), nil
}

// Text strips non-content elements and joins the remaining text nodes with
// single spaces.
func Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(strippedSelectors).Remove()
	var parts []string
	for _, n := range doc.Nodes {
		collectText(n, &parts)
	}
	return Collapse(strings.Join(parts, " ")), nil
}

// collectText joins text nodes with a separator; goquery's Text concatenates
// adjacent blocks without one.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// Readable extracts the main article text with go-readability.
func Readable(link string, body []byte) (string, error) {
	var pageURL *url.URL
	if link != "" {
		parsed, err := url.Parse(link)
		if err == nil {
			pageURL = parsed
		}
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return Collapse(article.TextContent), nil
}

// Collapse trims s and reduces every whitespace run to a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most maxChars runes. maxChars <= 0 leaves s unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count == maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
