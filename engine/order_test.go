package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// decodeDefinition builds a definition from its persisted form, which
// unlike WithStep does not force dependencies to appear first.
func decodeDefinition(t *testing.T, stepsJSON string) *workflow.Definition {
	t.Helper()

	raw := fmt.Sprintf(`{"id":%q,"name":"test","steps":%s}`, id.NewWorkflowID(), stepsJSON)
	var def workflow.Definition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		t.Fatalf("decode definition: %v", err)
	}
	return &def
}

func stepIDs(steps []*workflow.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

func TestTopoOrderReordersDependencies(t *testing.T) {
	def := decodeDefinition(t, `[
		{"id":"c","kind":"task","target":"t","depends_on":["a","b"]},
		{"id":"b","kind":"task","target":"t","depends_on":["a"]},
		{"id":"a","kind":"task","target":"t"}
	]`)

	order, err := topoOrder(def)
	if err != nil {
		t.Fatalf("topoOrder: %v", err)
	}
	got := stepIDs(order)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTopoOrderStableTieBreak(t *testing.T) {
	def := decodeDefinition(t, `[
		{"id":"x","kind":"task","target":"t"},
		{"id":"y","kind":"task","target":"t"},
		{"id":"z","kind":"task","target":"t","depends_on":["x"]}
	]`)

	order, err := topoOrder(def)
	if err != nil {
		t.Fatalf("topoOrder: %v", err)
	}
	got := stepIDs(order)
	// x and y are unconstrained relative to each other; definition
	// order decides.
	want := []string{"x", "y", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTopoOrderRejectsUnknownDependency(t *testing.T) {
	def := decodeDefinition(t, `[
		{"id":"a","kind":"task","target":"t","depends_on":["ghost"]}
	]`)

	_, err := topoOrder(def)
	if !errors.Is(err, symphony.ErrUnknownDependency) {
		t.Errorf("error = %v, want ErrUnknownDependency", err)
	}
}

func TestTopoOrderRejectsCycle(t *testing.T) {
	def := decodeDefinition(t, `[
		{"id":"a","kind":"task","target":"t","depends_on":["b"]},
		{"id":"b","kind":"task","target":"t","depends_on":["a"]}
	]`)

	_, err := topoOrder(def)
	if !errors.Is(err, symphony.ErrUnknownDependency) {
		t.Errorf("error = %v, want ErrUnknownDependency", err)
	}
}
