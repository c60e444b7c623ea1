package preflight

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/driftline/sitefn/internal/fndef"
)

// ConditionResult records one evaluated condition leaf for diagnostics.
type ConditionResult struct {
	Condition fndef.Condition `json:"condition"`
	Matched   bool            `json:"matched"`
}

// Result is the outcome of evaluating a filter set against one document.
type Result struct {
	Matched bool
	// Trace holds every condition leaf that was actually evaluated, in
	// evaluation order. Short-circuited leaves do not appear.
	Trace []ConditionResult
}

// EvalError is a filter tree the evaluator cannot process: an unknown
// operator or combinator, or an invalid regular expression.
type EvalError struct {
	Key     string
	Message string
}

func (e *EvalError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("evaluate condition %q: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("evaluate filter: %s", e.Message)
}

// Evaluate checks a filter set against a globals document (JSON with event,
// person and groups objects). Test-account exclusion conditions are folded
// in as implicit AND conditions when the set enables them, matching what
// the generated program does.
func Evaluate(fs fndef.FilterSet, testAccounts []fndef.Condition, globals []byte) (Result, error) {
	var res Result

	doc := gjson.ParseBytes(globals)
	matched, err := evaluateNode(fs.Tree, doc, &res.Trace)
	if err != nil {
		return res, err
	}

	if matched && fs.FilterTestAccounts {
		for _, cond := range testAccounts {
			ok, err := evaluateCondition(cond, doc, &res.Trace)
			if err != nil {
				return res, err
			}
			if !ok {
				matched = false
				break
			}
		}
	}

	res.Matched = matched
	return res, nil
}

// evaluateNode walks one subtree with short-circuit semantics: AND stops at
// the first non-match, OR at the first match. An empty subtree matches.
func evaluateNode(n fndef.FilterNode, doc gjson.Result, trace *[]ConditionResult) (bool, error) {
	if n.Cond != nil {
		return evaluateCondition(*n.Cond, doc, trace)
	}

	op := n.Op
	if op == "" {
		op = fndef.BoolAnd
	}
	if op != fndef.BoolAnd && op != fndef.BoolOr {
		return false, &EvalError{Message: fmt.Sprintf("unknown combinator %q", op)}
	}

	seen := false
	for _, child := range n.Children {
		if child.Empty() {
			continue
		}
		seen = true
		matched, err := evaluateNode(child, doc, trace)
		if err != nil {
			return false, err
		}
		if op == fndef.BoolAnd && !matched {
			return false, nil
		}
		if op == fndef.BoolOr && matched {
			return true, nil
		}
	}
	if !seen {
		return true, nil
	}
	return op == fndef.BoolAnd, nil
}

func evaluateCondition(c fndef.Condition, doc gjson.Result, trace *[]ConditionResult) (bool, error) {
	field, err := lookup(c, doc)
	if err != nil {
		return false, err
	}

	matched, err := compare(c, field)
	if err != nil {
		return false, err
	}
	*trace = append(*trace, ConditionResult{Condition: c, Matched: matched})
	return matched, nil
}

// lookup resolves a condition's key to a value in the globals document,
// using the same global/property-bag layout the generated program reads.
func lookup(c fndef.Condition, doc gjson.Result) (gjson.Result, error) {
	switch c.PropertyType {
	case fndef.PropertyMeta:
		return doc.Get("event." + escapeKey(c.Key)), nil
	case fndef.PropertyEvent:
		return doc.Get("event.properties." + c.Key), nil
	case fndef.PropertyPerson:
		return doc.Get("person.properties." + c.Key), nil
	case fndef.PropertyGroup:
		group, rest, ok := strings.Cut(c.Key, ".")
		if !ok {
			return gjson.Result{}, &EvalError{Key: c.Key, Message: "group condition key must be \"<group>.<property>\""}
		}
		return doc.Get("groups." + escapeKey(group) + ".properties." + rest), nil
	default:
		return gjson.Result{}, &EvalError{Key: c.Key, Message: fmt.Sprintf("unknown property type %q", c.PropertyType)}
	}
}

// escapeKey protects literal dots in single-segment keys from gjson's path
// syntax. Event/person property keys are passed through unescaped because
// their dots are path separators, exactly as in the generated program.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, ".", `\.`)
}

func compare(c fndef.Condition, field gjson.Result) (bool, error) {
	switch c.Operator {
	case fndef.OpExact:
		return looseEqual(field, c.Value), nil
	case fndef.OpIsNot:
		return !looseEqual(field, c.Value), nil
	case fndef.OpIsSet:
		return field.Exists() && field.Type != gjson.Null, nil
	case fndef.OpIsNotSet:
		return !field.Exists() || field.Type == gjson.Null, nil
	case fndef.OpIContains, fndef.OpNotIContains:
		needle, ok := c.Value.(string)
		if !ok {
			return false, &EvalError{Key: c.Key, Message: fmt.Sprintf("%s requires a string value, got %T", c.Operator, c.Value)}
		}
		found := strings.Contains(strings.ToLower(asText(field)), strings.ToLower(needle))
		if c.Operator == fndef.OpNotIContains {
			return !found, nil
		}
		return found, nil
	case fndef.OpRegex, fndef.OpNotRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return false, &EvalError{Key: c.Key, Message: fmt.Sprintf("%s requires a string value, got %T", c.Operator, c.Value)}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, &EvalError{Key: c.Key, Message: fmt.Sprintf("invalid regular expression: %v", err)}
		}
		matched := re.MatchString(asText(field))
		if c.Operator == fndef.OpNotRegex {
			return !matched, nil
		}
		return matched, nil
	case fndef.OpGt, fndef.OpGte, fndef.OpLt, fndef.OpLte:
		return compareOrdered(c.Operator, field, c.Value), nil
	case fndef.OpIn, fndef.OpNotIn:
		values, ok := c.Value.([]any)
		if !ok {
			return false, &EvalError{Key: c.Key, Message: fmt.Sprintf("%s requires an array value, got %T", c.Operator, c.Value)}
		}
		found := false
		for _, v := range values {
			if looseEqual(field, v) {
				found = true
				break
			}
		}
		if c.Operator == fndef.OpNotIn {
			return !found, nil
		}
		return found, nil
	default:
		return false, &EvalError{Key: c.Key, Message: fmt.Sprintf("unknown operator %q", c.Operator)}
	}
}

// looseEqual mirrors the strict equality the generated program uses: equal
// when the runtime types and values both match.
func looseEqual(field gjson.Result, v any) bool {
	switch want := v.(type) {
	case nil:
		return field.Type == gjson.Null
	case string:
		return field.Type == gjson.String && field.Str == want
	case bool:
		return (field.Type == gjson.True) == want && (field.Type == gjson.True || field.Type == gjson.False)
	default:
		f, ok := asFloat(v)
		if !ok {
			return false
		}
		return field.Type == gjson.Number && field.Num == f
	}
}

// compareOrdered applies an ordering operator: numeric when both sides are
// numbers, text comparison otherwise.
func compareOrdered(op fndef.Operator, field gjson.Result, v any) bool {
	if f, ok := asFloat(v); ok && field.Type == gjson.Number {
		return orderedHolds(op, compareFloat(field.Num, f))
	}
	want, ok := v.(string)
	if !ok {
		return false
	}
	return orderedHolds(op, strings.Compare(asText(field), want))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func orderedHolds(op fndef.Operator, cmp int) bool {
	switch op {
	case fndef.OpGt:
		return cmp > 0
	case fndef.OpGte:
		return cmp >= 0
	case fndef.OpLt:
		return cmp < 0
	default:
		return cmp <= 0
	}
}

// asText converts a field the way the generated program's text helper
// does: null and missing become "".
func asText(field gjson.Result) string {
	if !field.Exists() || field.Type == gjson.Null {
		return ""
	}
	return field.String()
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
