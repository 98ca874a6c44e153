package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageInstanceStart Stage = "INSTANCE_START"
	StageInstanceState Stage = "INSTANCE_STATE"
	StageInstanceDone  Stage = "INSTANCE_DONE"
	StageInstanceError Stage = "INSTANCE_ERROR"
	StageFetchDone     Stage = "FETCH_DONE"
	StageFetchError    Stage = "FETCH_ERROR"
)

// RunLevel is the Instance value of events that describe the whole batch.
const RunLevel = -1

// Event captures one milestone of a batch run.
type Event struct {
	// RunID is the 16-byte form of the run UUID.
	RunID [16]byte
	// Instance is the search-loop instance index, or RunLevel.
	Instance int
	TS       time.Time
	Stage    Stage
	// State names the search-loop state entered, for INSTANCE_STATE.
	State     string
	Iteration int
	URL       string
	// Count is a stage-specific tally: results, candidates, or selections.
	Count int
	Dur   time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageInstanceStart, StageInstanceDone, StageInstanceError:
		if e.Instance < 0 {
			return fmt.Errorf("%s requires an instance", e.Stage)
		}
	case StageInstanceState:
		if e.Instance < 0 || e.State == "" {
			return errors.New("instance state requires instance and state")
		}
	case StageFetchDone, StageFetchError:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to a uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	return [16]byte(id)
}

// ParseRunID parses a textual run id into the Event form. Invalid ids map to
// the zero value, which Validate rejects.
func ParseRunID(runID string) [16]byte {
	id, err := uuid.Parse(runID)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(id)
}
