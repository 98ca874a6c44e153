package searchloop

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBounds reports iteration bounds that no loop can satisfy.
	ErrInvalidBounds = errors.New("invalid search iteration bounds")
	// ErrStepLimitExceeded aborts an instance that ran too many states.
	ErrStepLimitExceeded = errors.New("search loop step limit exceeded")
	// ErrSelectionAlreadySet guards the write-once selection of an instance.
	ErrSelectionAlreadySet = errors.New("instance selection already set")
)

// State is a node of the search loop.
type State int

// Search loop states in execution order.
const (
	StateIntroduce State = iota
	StateSearch
	StateSelectCandidates
	StateFetch
	StateCritique
	StateSummarize
	StateDone
)

var stateNames = [...]string{
	StateIntroduce:        "INTRODUCE",
	StateSearch:           "SEARCH",
	StateSelectCandidates: "SELECT_CANDIDATES",
	StateFetch:            "FETCH",
	StateCritique:         "CRITIQUE",
	StateSummarize:        "SUMMARIZE",
	StateDone:             "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Bounds limits how many SEARCH iterations an instance performs.
type Bounds struct {
	Min int
	Max int
}

// Validate rejects bounds where Min > Max, Max < 1 or Min < 0.
func (b Bounds) Validate() error {
	switch {
	case b.Min < 0:
		return fmt.Errorf("%w: min iterations %d is negative", ErrInvalidBounds, b.Min)
	case b.Max < 1:
		return fmt.Errorf("%w: max iterations %d is below 1", ErrInvalidBounds, b.Max)
	case b.Min > b.Max:
		return fmt.Errorf("%w: min iterations %d exceeds max %d", ErrInvalidBounds, b.Min, b.Max)
	}
	return nil
}

// Transition is the outcome of Next. When AskEvaluator is set the caller
// must ask the evaluator to choose between SEARCH and SUMMARIZE; To is
// meaningless in that case.
type Transition struct {
	To           State
	AskEvaluator bool
}

// Next returns the state following from after iteration completed searches.
func (b Bounds) Next(from State, iteration int) Transition {
	switch from {
	case StateIntroduce:
		return Transition{To: StateSearch}
	case StateSearch:
		return Transition{To: StateSelectCandidates}
	case StateSelectCandidates:
		return Transition{To: StateFetch}
	case StateFetch:
		return Transition{To: StateCritique}
	case StateCritique:
		switch {
		case iteration >= b.Max:
			return Transition{To: StateSummarize}
		case iteration < b.Min:
			return Transition{To: StateSearch}
		default:
			return Transition{AskEvaluator: true}
		}
	default:
		return Transition{To: StateDone}
	}
}
