package searchloop

import (
	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

var candidateSchema = llm.MustSchema("candidate_list", `{
  "type": "object",
  "properties": {
    "websites": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "link": {"type": "string", "description": "URL of a website worth loading."}
        },
        "required": ["link"],
        "additionalProperties": false
      }
    }
  },
  "required": ["websites"],
  "additionalProperties": false
}`)

var decisionSchema = llm.MustSchema("loop_decision", `{
  "type": "object",
  "properties": {
    "loop_decision": {"type": "string", "enum": ["SEARCH", "SUMMARIZE"]}
  },
  "required": ["loop_decision"],
  "additionalProperties": false
}`)

type candidateList struct {
	Websites []crawler.Page `json:"websites"`
}

type loopDecision struct {
	LoopDecision string `json:"loop_decision"`
}

func (d loopDecision) state() State {
	if d.LoopDecision == "SUMMARIZE" {
		return StateSummarize
	}
	return StateSearch
}
