package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
)

// StepState tracks which steps of a job's step list have completed, so a
// resumed job can skip steps whose preconditions are already satisfied
// (spec §4.5's "idempotent, resumable" requirement).
type StepState struct {
	Done []string `json:"done"`
}

// LoadStepState reads step_state.json for a job, returning an empty state
// if the file doesn't exist yet (a job's first run).
func LoadStepState(t *Tree, jobID string) (*StepState, error) {
	path := t.JobStepStatePath(jobID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &StepState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read step state %s: %w", jobID, err)
	}
	var s StepState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse step state %s: %w", jobID, err)
	}
	return &s, nil
}

// MarkDone appends step to the done list (if not already present) and
// atomically persists the result.
func (s *StepState) MarkDone(t *Tree, jobID, step string) error {
	if s.IsDone(step) {
		return nil
	}
	s.Done = append(s.Done, step)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal step state %s: %w", jobID, err)
	}
	return WriteAtomic(t.JobStepStatePath(jobID), data, 0o644)
}

// IsDone reports whether step has already completed in a prior run.
func (s *StepState) IsDone(step string) bool {
	for _, d := range s.Done {
		if d == step {
			return true
		}
	}
	return false
}
