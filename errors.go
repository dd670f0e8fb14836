package symphony

import "errors"

var (
	// Step-local errors. These are captured into the failing step's
	// Result and never escape the engine as returned errors.
	ErrMissingVariable   = errors.New("symphony: template references missing context variable")
	ErrTaskExecution     = errors.New("symphony: task executor reported failure")
	ErrLoopLimitExceeded = errors.New("symphony: loop iteration bound exceeded")

	// Checkpoint errors. These are hard failures of the restore
	// operation; a run cannot resume from a corrupt checkpoint.
	ErrDanglingReference  = errors.New("symphony: checkpoint references missing entity")
	ErrCheckpointNotFound = errors.New("symphony: checkpoint not found")

	// Not found errors.
	ErrRunNotFound        = errors.New("symphony: workflow run not found")
	ErrDefinitionNotFound = errors.New("symphony: workflow definition not found")
	ErrUnknownTarget      = errors.New("symphony: no executor registered for target")

	// Definition errors.
	ErrDuplicateStepID   = errors.New("symphony: duplicate step identifier")
	ErrUnknownDependency = errors.New("symphony: step depends on unknown or later step")
	ErrInvalidStep       = errors.New("symphony: invalid step definition")

	// State errors.
	ErrInvalidState = errors.New("symphony: invalid run state transition")
	ErrNoStore      = errors.New("symphony: no store configured")
	ErrNoExecutor   = errors.New("symphony: no task executor configured")
)
