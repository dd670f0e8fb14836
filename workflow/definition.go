package workflow

import (
	"encoding/json"
	"fmt"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// Definition is an immutable, ordered collection of steps plus
// metadata. All mutating operations return a new Definition, so a
// definition handed to the engine can never change underneath a
// running workflow.
type Definition struct {
	id          id.WorkflowID
	name        string
	description string
	steps       []*Step
}

// New creates an empty workflow definition.
func New(name string) *Definition {
	return &Definition{
		id:   id.NewWorkflowID(),
		name: name,
	}
}

// ID returns the definition identifier.
func (d *Definition) ID() id.WorkflowID { return d.id }

// Name returns the workflow name.
func (d *Definition) Name() string { return d.name }

// Description returns the workflow description.
func (d *Definition) Description() string { return d.description }

// Steps returns the ordered step list. The slice is a copy; the steps
// themselves are shared and must not be mutated.
func (d *Definition) Steps() []*Step {
	steps := make([]*Step, len(d.steps))
	copy(steps, d.steps)
	return steps
}

// Step returns the top-level step with the given identifier.
func (d *Definition) Step(stepID string) (*Step, bool) {
	for _, s := range d.steps {
		if s.ID == stepID {
			return s, true
		}
	}
	return nil, false
}

// WithName returns a copy of the definition with a new name.
func (d *Definition) WithName(name string) *Definition {
	c := d.clone()
	c.name = name
	return c
}

// WithDescription returns a copy of the definition with a new
// description.
func (d *Definition) WithDescription(desc string) *Definition {
	c := d.clone()
	c.description = desc
	return c
}

// WithStep returns a copy of the definition with the step appended.
// It validates the step, rejects duplicate identifiers anywhere in the
// step tree, and requires declared dependencies to reference earlier
// top-level steps only (no forward or cyclic dependencies).
func (d *Definition) WithStep(s *Step) (*Definition, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, existing := range d.steps {
		for _, stepID := range existing.collectIDs(nil) {
			seen[stepID] = struct{}{}
		}
	}
	for _, stepID := range s.collectIDs(nil) {
		if _, dup := seen[stepID]; dup {
			return nil, fmt.Errorf("%w: %q", symphony.ErrDuplicateStepID, stepID)
		}
		seen[stepID] = struct{}{}
	}

	earlier := make(map[string]struct{}, len(d.steps))
	for _, existing := range d.steps {
		earlier[existing.ID] = struct{}{}
	}
	for _, dep := range s.DependsOn {
		if _, ok := earlier[dep]; !ok {
			return nil, fmt.Errorf("%w: step %q depends on %q", symphony.ErrUnknownDependency, s.ID, dep)
		}
	}

	c := d.clone()
	c.steps = append(c.steps, s)
	return c, nil
}

// WithSteps appends steps in order, applying WithStep's validation to
// each.
func (d *Definition) WithSteps(steps ...*Step) (*Definition, error) {
	c := d
	var err error
	for _, s := range steps {
		c, err = c.WithStep(s)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate re-checks the whole definition. Definitions built through
// WithStep are always valid; Validate covers definitions decoded from
// storage.
func (d *Definition) Validate() error {
	rebuilt := &Definition{id: d.id, name: d.name}
	for _, s := range d.steps {
		next, err := rebuilt.WithStep(s)
		if err != nil {
			return err
		}
		rebuilt = next
	}
	return nil
}

func (d *Definition) clone() *Definition {
	steps := make([]*Step, len(d.steps))
	copy(steps, d.steps)
	return &Definition{
		id:          d.id,
		name:        d.name,
		description: d.description,
		steps:       steps,
	}
}

// definitionJSON is the persisted form of a Definition.
type definitionJSON struct {
	ID          id.WorkflowID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []*Step       `json:"steps"`
}

// MarshalJSON implements json.Marshaler.
func (d *Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{
		ID:          d.id,
		Name:        d.name,
		Description: d.description,
		Steps:       d.steps,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw definitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.id = raw.ID
	d.name = raw.Name
	d.description = raw.Description
	d.steps = raw.Steps
	return nil
}
