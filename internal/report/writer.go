// Package report renders the websites chosen by a batch in the formats
// supported by the CLI.
package report

import (
	"fmt"
	"io"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Writer renders a batch result.
type Writer interface {
	Write(result crawler.Result) error
}

// New returns the Writer for format, writing to output.
func New(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return &TextWriter{output: output}, nil
	case FormatJSON:
		return &JSONWriter{output: output, indent: "  "}, nil
	case FormatMarkdown:
		return &MarkdownWriter{output: output}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// TextWriter prints one LINK/JUSTIFICATION block per website.
type TextWriter struct {
	output io.Writer
}

// Write implements Writer.
func (w *TextWriter) Write(result crawler.Result) error {
	for _, choice := range result {
		if _, err := fmt.Fprintf(w.output, "LINK: %s\nJUSTIFICATION: %s\n\n", choice.Link, choice.Justification); err != nil {
			return fmt.Errorf("write text report: %w", err)
		}
	}
	return nil
}
