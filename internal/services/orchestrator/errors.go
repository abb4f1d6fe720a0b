package orchestrator

import (
	"errors"
	"fmt"
)

var ErrNoSource = errors.New("video has no source data")

const (
	PhaseLoad    = "load"
	PhaseConvert = "convert"
	PhaseSign    = "sign"
	PhasePush    = "push"
	PhaseCommit  = "commit"
)

// PipelineError is the batch level failure raised for the first item that failed.
// ItemID is empty when the run was cancelled between items.
type PipelineError struct {
	ItemID string
	Phase  string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("batch aborted during %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("video %s failed during %s: %v", e.ItemID, e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
