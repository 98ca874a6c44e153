package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

// MarkdownWriter outputs a table of chosen websites.
type MarkdownWriter struct {
	output io.Writer
}

// Write implements Writer.
func (w *MarkdownWriter) Write(result crawler.Result) error {
	md := markdown.NewMarkdown(w.output)
	md.H1("Advertising Opportunities")
	md.PlainText("")

	if len(result) == 0 {
		md.Note("No websites were selected in this run.")
		md.PlainText("")
	} else {
		md.PlainTextf("%d website(s) selected.", len(result))
		md.PlainText("")
		rows := make([][]string, 0, len(result))
		for i, choice := range result {
			rows = append(rows, []string{strconv.Itoa(i + 1), cell(choice.Link), cell(choice.Justification)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "Link", "Justification"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

// cell keeps free text from breaking the table layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
