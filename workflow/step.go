package workflow

import (
	"fmt"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
)

// Kind discriminates the step variants of the closed tagged union.
type Kind string

// Step kinds.
const (
	KindTask        Kind = "task"
	KindConditional Kind = "conditional"
	KindParallel    Kind = "parallel"
	KindLoop        Kind = "loop"
)

// Step is one unit of workflow execution. Exactly one variant's fields
// are populated, selected by Kind. Steps are JSON-serializable so
// definitions can be persisted and shipped.
type Step struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`

	// Task: an executor target and a templated input value.
	// Placeholders in string leaves are rendered against the run
	// context before dispatch.
	Target string `json:"target,omitempty"`
	Input  any    `json:"input,omitempty"`

	// Conditional: a predicate over the context plus branches.
	// Else may be nil.
	Condition string `json:"condition,omitempty"`
	Then      *Step  `json:"then,omitempty"`
	Else      *Step  `json:"else,omitempty"`

	// Parallel: children dispatched concurrently, outputs collected
	// in declaration order.
	Children []*Step `json:"children,omitempty"`

	// Loop: Body repeats while While evaluates true, at most
	// MaxIterations times. The bound is mandatory.
	While         string `json:"while,omitempty"`
	Body          *Step  `json:"body,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// StepOption configures optional step fields.
type StepOption func(*Step)

// WithName sets a human-readable step name.
func WithName(name string) StepOption {
	return func(s *Step) { s.Name = name }
}

// WithDescription sets the step description.
func WithDescription(desc string) StepOption {
	return func(s *Step) { s.Description = desc }
}

// WithDependsOn declares the steps whose results this step reads.
// Dependencies must appear earlier in definition order.
func WithDependsOn(ids ...string) StepOption {
	return func(s *Step) { s.DependsOn = append(s.DependsOn, ids...) }
}

// NewTask creates a task step invoking the given executor target with
// a templated input.
func NewTask(stepID, target string, input any, opts ...StepOption) *Step {
	s := &Step{ID: stepID, Kind: KindTask, Target: target, Input: input}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewConditional creates a conditional step. els may be nil; when the
// predicate is false and no else-branch exists, the step succeeds with
// no output.
func NewConditional(stepID, condition string, then, els *Step, opts ...StepOption) *Step {
	s := &Step{ID: stepID, Kind: KindConditional, Condition: condition, Then: then, Else: els}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewParallel creates a parallel step dispatching all children
// concurrently.
func NewParallel(stepID string, children []*Step, opts ...StepOption) *Step {
	s := &Step{ID: stepID, Kind: KindParallel, Children: children}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLoop creates a loop step repeating body while the predicate holds,
// bounded by maxIterations.
func NewLoop(stepID string, body *Step, while string, maxIterations int, opts ...StepOption) *Step {
	s := &Step{ID: stepID, Kind: KindLoop, Body: body, While: while, MaxIterations: maxIterations}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the step's per-kind invariants, recursing into
// nested steps.
func (s *Step) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing step id", symphony.ErrInvalidStep)
	}

	switch s.Kind {
	case KindTask:
		if s.Target == "" {
			return fmt.Errorf("%w: task step %q has no target", symphony.ErrInvalidStep, s.ID)
		}
	case KindConditional:
		if s.Condition == "" {
			return fmt.Errorf("%w: conditional step %q has no condition", symphony.ErrInvalidStep, s.ID)
		}
		if s.Then == nil {
			return fmt.Errorf("%w: conditional step %q has no then-branch", symphony.ErrInvalidStep, s.ID)
		}
		if err := s.Then.Validate(); err != nil {
			return err
		}
		if s.Else != nil {
			if err := s.Else.Validate(); err != nil {
				return err
			}
		}
	case KindParallel:
		if len(s.Children) == 0 {
			return fmt.Errorf("%w: parallel step %q has no children", symphony.ErrInvalidStep, s.ID)
		}
		for _, child := range s.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	case KindLoop:
		if s.Body == nil {
			return fmt.Errorf("%w: loop step %q has no body", symphony.ErrInvalidStep, s.ID)
		}
		if s.While == "" {
			return fmt.Errorf("%w: loop step %q has no continuation predicate", symphony.ErrInvalidStep, s.ID)
		}
		if s.MaxIterations <= 0 {
			return fmt.Errorf("%w: loop step %q requires a positive iteration bound", symphony.ErrInvalidStep, s.ID)
		}
		if err := s.Body.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: step %q has unknown kind %q", symphony.ErrInvalidStep, s.ID, s.Kind)
	}

	return nil
}

// collectIDs appends the step's ID and all nested step IDs to ids.
// Nested steps share the run context namespace, so identifiers must be
// unique across the whole tree.
func (s *Step) collectIDs(ids []string) []string {
	ids = append(ids, s.ID)
	for _, nested := range []*Step{s.Then, s.Else, s.Body} {
		if nested != nil {
			ids = nested.collectIDs(ids)
		}
	}
	for _, child := range s.Children {
		ids = child.collectIDs(ids)
	}
	return ids
}
