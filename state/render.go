package state

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
)

// placeholderRe matches {{path}} placeholders with optional inner
// whitespace. Paths are dotted identifiers.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*\}\}`)

// Render substitutes every {{path}} placeholder in template with the
// stringified value at that path. A placeholder referencing an absent
// path fails with symphony.ErrMissingVariable.
func (c *Context) Render(template string) (string, error) {
	var missing string
	result := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := c.Get(path)
		if !ok {
			if missing == "" {
				missing = path
			}
			return match
		}
		return Stringify(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: {{%s}}", symphony.ErrMissingVariable, missing)
	}
	return result, nil
}

// RenderValue renders a structured template value against the context.
// It recurses into maps and slices, substituting only inside string
// leaves. A string consisting of exactly one placeholder resolves to
// the referenced value itself, preserving structure (a step input of
// "{{step.fetch.result}}" receives the raw result, not its string
// form).
func (c *Context) RenderValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if path, ok := solePlaceholder(t); ok {
			value, found := c.Get(path)
			if !found {
				return nil, fmt.Errorf("%w: {{%s}}", symphony.ErrMissingVariable, path)
			}
			return value, nil
		}
		return c.Render(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			rendered, err := c.RenderValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			rendered, err := c.RenderValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// solePlaceholder reports whether s is exactly one {{path}} placeholder
// and returns the path.
func solePlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	m := placeholderRe.FindStringSubmatch(trimmed)
	if m == nil || m[0] != trimmed {
		return "", false
	}
	return m[1], true
}

// Stringify converts a context value to its template substitution form.
// Strings pass through, scalars use their canonical form, and
// structured values are JSON-encoded.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
