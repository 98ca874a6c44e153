package searchloop

import (
	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

// Instance is the state owned by one run of the search loop. It is not safe
// for concurrent use; each instance is driven by a single goroutine.
type Instance struct {
	ID        int
	Iteration int
	// Pending holds candidates picked but not fetched yet.
	Pending []crawler.Page
	// Loaded holds pages fetched in the current iteration.
	Loaded []crawler.PageContent
	// Scored accumulates critiques across iterations.
	Scored  []crawler.ScoredCandidate
	History []llm.Message

	selection    []crawler.Choice
	selectionSet bool
}

// NewInstance returns a fresh instance with empty accumulators.
func NewInstance(id int) *Instance {
	return &Instance{ID: id}
}

// SetSelection records the final selection. It may be called once.
func (i *Instance) SetSelection(choices []crawler.Choice) error {
	if i.selectionSet {
		return ErrSelectionAlreadySet
	}
	i.selection = choices
	i.selectionSet = true
	return nil
}

// Selection returns the final selection and whether it has been set.
func (i *Instance) Selection() ([]crawler.Choice, bool) {
	return i.selection, i.selectionSet
}

func (i *Instance) append(msgs ...llm.Message) {
	i.History = append(i.History, msgs...)
}
