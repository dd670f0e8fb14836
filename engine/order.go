package engine

import (
	"fmt"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// topoOrder returns the definition's top-level steps in dependency
// order. Steps with no ordering constraint between them keep their
// definition order, so the result is deterministic.
//
// Definitions built through workflow.WithStep are already ordered;
// this re-derives the order for definitions decoded from storage and
// rejects unknown or cyclic dependencies.
func topoOrder(def *workflow.Definition) ([]*workflow.Step, error) {
	steps := def.Steps()

	byID := make(map[string]*workflow.Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: step %q depends on %q", symphony.ErrUnknownDependency, s.ID, dep)
			}
		}
	}

	ordered := make([]*workflow.Step, 0, len(steps))
	placed := make(map[string]bool, len(steps))

	for len(ordered) < len(steps) {
		progressed := false
		for _, s := range steps {
			if placed[s.ID] {
				continue
			}
			ready := true
			for _, dep := range s.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			ordered = append(ordered, s)
			placed[s.ID] = true
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("%w: dependency cycle among remaining steps", symphony.ErrUnknownDependency)
		}
	}
	return ordered, nil
}
