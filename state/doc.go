// Package state implements the shared mutable context for a single
// workflow run.
//
// A Context is a key-addressed bag of values with dotted-path access:
//
//	st := state.New()
//	st.Set("user.name", "Ada")
//	greeting, _ := st.Render("Hello {{user.name}}")
//
// The engine writes each completed step's result under the
// step-scoped namespace "step.<id>.result" (and "step.<id>.error" on
// failure), so concurrent writers never target the same key. The
// caller's initial input occupies top-level keys.
//
// Rendering recurses into structured values (maps and slices),
// substituting placeholders only inside string leaves. A placeholder
// referencing an absent path fails with symphony.ErrMissingVariable —
// never a silent empty substitution.
//
// A Context is safe for concurrent use; parallel step children write
// their results from separate goroutines.
package state
