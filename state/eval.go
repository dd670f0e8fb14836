package state

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
)

// comparison operators, two-character forms first so "<=" is not
// split as "<" + "=".
var operators = []string{"==", "!=", "<=", ">=", "<", ">"}

// Eval evaluates a predicate expression against the context. The
// grammar covers the conditions workflow authors write in Conditional
// and Loop steps:
//
//	step.review.result.approved              truthiness of a path
//	!step.review.result.approved             negation
//	step.score.result >= 0.8                 numeric comparison
//	{{step.triage.result.label}} == "urgent" equality against a literal
//
// Operands are dotted paths (bare or in {{...}}), quoted strings,
// numbers, or booleans. Referencing an absent path fails with
// symphony.ErrMissingVariable.
func (c *Context) Eval(expr string) (bool, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return false, fmt.Errorf("state: empty predicate")
	}

	if strings.HasPrefix(s, "!") && !strings.HasPrefix(s, "!=") {
		result, err := c.Eval(s[1:])
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	if lhs, op, rhs, found := splitComparison(s); found {
		left, err := c.operand(lhs)
		if err != nil {
			return false, err
		}
		right, err := c.operand(rhs)
		if err != nil {
			return false, err
		}
		return compare(left, op, right)
	}

	v, err := c.operand(s)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// splitComparison splits expr at the first top-level comparison
// operator, respecting quoted strings.
func splitComparison(expr string) (lhs, op, rhs string, found bool) {
	var quote rune
	for i := 0; i < len(expr); i++ {
		ch := rune(expr[i])
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			continue
		}
		for _, candidate := range operators {
			if strings.HasPrefix(expr[i:], candidate) {
				return strings.TrimSpace(expr[:i]), candidate,
					strings.TrimSpace(expr[i+len(candidate):]), true
			}
		}
	}
	return "", "", "", false
}

// operand resolves a single operand: a quoted string, boolean, or
// number literal, or a dotted context path (bare or in {{...}}).
func (c *Context) operand(s string) (any, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1], nil
		}
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "nil":
		return nil, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, nil
	}

	path := s
	if p, ok := solePlaceholder(s); ok {
		path = p
	}
	v, found := c.Get(path)
	if !found {
		return nil, fmt.Errorf("%w: %s", symphony.ErrMissingVariable, path)
	}
	return v, nil
}

// compare applies op to two resolved operands. Both-numeric operands
// compare numerically; otherwise == and != compare stringified forms
// and ordering operators require numbers.
func compare(left any, op string, right any) (bool, error) {
	ln, lok := asNumber(left)
	rn, rok := asNumber(right)
	if lok && rok {
		switch op {
		case "==":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}

	switch op {
	case "==":
		return Stringify(left) == Stringify(right), nil
	case "!=":
		return Stringify(left) != Stringify(right), nil
	default:
		return false, fmt.Errorf("state: operator %q requires numeric operands, got %T and %T", op, left, right)
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Truthy reports the boolean interpretation of a context value:
// booleans as-is, non-zero numbers, non-empty strings other than
// "false", and non-empty maps/slices are true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
