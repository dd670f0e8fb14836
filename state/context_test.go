package state_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/state"
)

func TestSetGet(t *testing.T) {
	st := state.New()
	st.Set("user.name", "Ada")
	st.Set("user.age", 36)
	st.Set("tags", []any{"a", "b"})

	v, ok := st.Get("user.name")
	if !ok || v != "Ada" {
		t.Errorf("Get(user.name) = %v, %v; want Ada, true", v, ok)
	}

	// Intermediate maps are addressable too.
	v, ok = st.Get("user")
	if !ok {
		t.Fatal("Get(user) not found")
	}
	if m, isMap := v.(map[string]any); !isMap || m["age"] != 36 {
		t.Errorf("Get(user) = %v, want map with age 36", v)
	}

	if _, ok := st.Get("user.email"); ok {
		t.Error("Get(user.email) should not be found")
	}
	if _, ok := st.Get("user.name.deeper"); ok {
		t.Error("Get through a scalar should not be found")
	}
}

func TestSetOverwritesScalarWithMap(t *testing.T) {
	st := state.New()
	st.Set("a", "scalar")
	st.Set("a.b", 1)

	v, ok := st.Get("a.b")
	if !ok || v != 1 {
		t.Errorf("Get(a.b) = %v, %v; want 1, true", v, ok)
	}
}

func TestRender(t *testing.T) {
	st := state.New()
	st.Set("user.name", "Ada")

	got, err := st.Render("Hello {{user.name}}")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hello Ada" {
		t.Errorf("Render = %q, want %q", got, "Hello Ada")
	}
}

func TestRenderMissingVariable(t *testing.T) {
	st := state.New()

	_, err := st.Render("Hello {{user.name}}")
	if !errors.Is(err, symphony.ErrMissingVariable) {
		t.Errorf("Render error = %v, want ErrMissingVariable", err)
	}
}

func TestRenderStringifiesStructures(t *testing.T) {
	st := state.New()
	st.Set("score", 0.5)
	st.Set("flags", []any{"x"})

	got, err := st.Render("score={{score}} flags={{flags}}")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != `score=0.5 flags=["x"]` {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderValueRecurses(t *testing.T) {
	st := state.New()
	st.Set("user.name", "Ada")
	st.Set("step.fetch.result", map[string]any{"rows": []any{1.0, 2.0}})

	input := map[string]any{
		"greeting": "Hello {{user.name}}",
		"data":     "{{step.fetch.result}}",
		"nested": []any{
			"{{user.name}} again",
			42,
		},
	}

	got, err := st.RenderValue(input)
	if err != nil {
		t.Fatalf("RenderValue: %v", err)
	}

	want := map[string]any{
		"greeting": "Hello Ada",
		// A sole placeholder resolves to the raw structured value.
		"data": map[string]any{"rows": []any{1.0, 2.0}},
		"nested": []any{
			"Ada again",
			42,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RenderValue mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderValueMissingVariable(t *testing.T) {
	st := state.New()
	_, err := st.RenderValue(map[string]any{"x": "{{absent.path}}"})
	if !errors.Is(err, symphony.ErrMissingVariable) {
		t.Errorf("RenderValue error = %v, want ErrMissingVariable", err)
	}
}

func TestEval(t *testing.T) {
	st := state.New()
	st.Set("approved", true)
	st.Set("count", 3)
	st.Set("score", 0.9)
	st.Set("label", "urgent")
	st.Set("empty", "")

	tests := []struct {
		expr string
		want bool
	}{
		{"approved", true},
		{"!approved", false},
		{"empty", false},
		{"count", true},
		{"count == 3", true},
		{"count != 3", false},
		{"count < 5", true},
		{"count >= 4", false},
		{"score >= 0.8", true},
		{`label == "urgent"`, true},
		{`label != "urgent"`, false},
		{"{{label}} == 'urgent'", true},
		{"true", true},
		{"false", false},
		{"count <= 3", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := st.Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalMissingPath(t *testing.T) {
	st := state.New()
	_, err := st.Eval("absent.path")
	if !errors.Is(err, symphony.ErrMissingVariable) {
		t.Errorf("Eval error = %v, want ErrMissingVariable", err)
	}
}

func TestEvalOrderingRequiresNumbers(t *testing.T) {
	st := state.New()
	st.Set("label", "urgent")
	if _, err := st.Eval(`label < "zzz"`); err == nil {
		t.Error("expected error for ordering comparison of strings")
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	st := state.New()
	st.Set("user.name", "Ada")
	st.Set("user.age", 36)
	st.Set("step.a.result", map[string]any{"ok": true})
	st.Set("tags", []any{"x", "y"})

	flat := st.Flatten()
	want := map[string]any{
		"user.name":        "Ada",
		"user.age":         36,
		"step.a.result.ok": true,
		"tags":             []any{"x", "y"},
	}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}

	restored := state.FromFlat(flat)
	if diff := cmp.Diff(flat, restored.Flatten()); diff != "" {
		t.Errorf("FromFlat round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestKeys(t *testing.T) {
	st := state.New()
	st.Set("b", 1)
	st.Set("a.x", 2)

	keys := st.Keys()
	want := []string{"a.x", "b"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}
