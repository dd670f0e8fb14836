package workflow

import "time"

// Result is the recorded outcome of one step execution.
//
// Invariant: a failed Result never carries a populated Output. The
// constructors enforce this; code constructing Results directly must
// preserve it.
type Result struct {
	StepID      string    `json:"step_id"`
	Success     bool      `json:"success"`
	Output      any       `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewResult creates a successful Result. executionID optionally links
// to the external executor's execution record.
func NewResult(stepID string, output any, executionID string) *Result {
	return &Result{
		StepID:      stepID,
		Success:     true,
		Output:      output,
		ExecutionID: executionID,
		CompletedAt: time.Now().UTC(),
	}
}

// NewFailure creates a failed Result carrying the error message and no
// output.
func NewFailure(stepID string, err error) *Result {
	return &Result{
		StepID:      stepID,
		Success:     false,
		Error:       err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}
