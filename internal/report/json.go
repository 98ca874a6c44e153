package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

// JSONWriter outputs {"websites": [...]} for tool integration.
type JSONWriter struct {
	output io.Writer
	indent string
}

type jsonReport struct {
	Websites crawler.Result `json:"websites"`
}

// Write implements Writer.
func (w *JSONWriter) Write(result crawler.Result) error {
	if result == nil {
		result = crawler.Result{}
	}
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", w.indent)
	if err := enc.Encode(jsonReport{Websites: result}); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}
