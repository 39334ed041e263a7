package filter

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of evaluating one item against a condition or config.
type Result struct {
	Passed bool
	Reason string
}

var passed = Result{Passed: true}

// Evaluate applies a single compiled condition to an item. A missing field
// path always fails with a "field <path> not present" reason; no operator
// panics on unexpected shapes.
func Evaluate(item any, c *Condition) Result {
	value, found := ResolvePath(item, c.path)
	if !found {
		return Result{Reason: c.missingRe}
	}

	switch c.Type {
	case FieldTypeNumber, FieldTypeDate:
		return evalNumeric(value, c)
	case FieldTypeString, FieldTypeCategory:
		return evalString(value, c)
	case FieldTypeTag:
		return evalTag(value, c)
	case FieldTypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return Result{Reason: fmt.Sprintf("field %s is not a boolean", c.Field)}
		}

		if b != c.boolean {
			return Result{Reason: fmt.Sprintf("field %s is %v, expected %v", c.Field, b, c.boolean)}
		}

		return passed
	}

	return Result{Reason: fmt.Sprintf("field %s has unsupported type", c.Field)}
}

// Apply evaluates an item against the whole config. AND requires every
// condition to pass; OR requires at least one. Conditions run in declared
// order and the reported reason is always the first failing condition's.
func (cfg *Config) Apply(item any) Result {
	firstFail := Result{Passed: true}

	for i := range cfg.Conditions {
		r := Evaluate(item, &cfg.Conditions[i])

		if cfg.Logic == LogicAnd {
			if !r.Passed {
				return r
			}

			continue
		}

		// OR
		if r.Passed {
			return passed
		}

		if firstFail.Passed {
			firstFail = r
		}
	}

	if cfg.Logic == LogicAnd {
		return passed
	}

	return firstFail
}

// ResolvePath walks a dot-path through a JSON-shaped tree
// (nil/bool/number/string/array/object). It reports found=false for any
// missing or non-object intermediate step.
func ResolvePath(item any, path []string) (any, bool) {
	current := item

	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func evalNumeric(value any, c *Condition) Result {
	n, ok := itemNumeric(value, c.Type)
	if !ok {
		return Result{Reason: fmt.Sprintf("field %s is not a %s", c.Field, c.Type)}
	}

	var pass bool

	switch c.Operator {
	case OpEq:
		pass = n == c.num
	case OpNe:
		pass = n != c.num
	case OpGt:
		pass = n > c.num
	case OpGte:
		pass = n >= c.num
	case OpLt:
		pass = n < c.num
	case OpLte:
		pass = n <= c.num
	case OpBetween:
		// inclusive at both bounds
		pass = n >= c.numLow && n <= c.numHigh
	}

	if !pass {
		if c.Operator == OpBetween {
			return Result{Reason: fmt.Sprintf("field %s value %v outside [%v, %v]", c.Field, n, c.numLow, c.numHigh)}
		}

		return Result{Reason: fmt.Sprintf("field %s value %v fails %s %v", c.Field, n, c.Operator, c.num)}
	}

	return passed
}

func evalString(value any, c *Condition) Result {
	s, ok := value.(string)
	if !ok {
		return Result{Reason: fmt.Sprintf("field %s is not a string", c.Field)}
	}

	subject := s
	if !c.CaseSensitive {
		subject = strings.ToLower(s)
	}

	var pass bool

	switch c.Operator {
	case OpEq:
		pass = subject == c.str
	case OpNe:
		pass = subject != c.str
	case OpContains:
		pass = strings.Contains(subject, c.str)
	case OpNotContains:
		pass = !strings.Contains(subject, c.str)
	case OpStartsWith:
		pass = strings.HasPrefix(subject, c.str)
	case OpEndsWith:
		pass = strings.HasSuffix(subject, c.str)
	case OpIn:
		pass = containsString(c.strs, subject)
	case OpNotIn:
		pass = !containsString(c.strs, subject)
	}

	if !pass {
		return Result{Reason: fmt.Sprintf("field %s value %q fails %s %v", c.Field, s, c.Operator, c.Value)}
	}

	return passed
}

func evalTag(value any, c *Condition) Result {
	length, ok := tagLen(value)
	if !ok {
		return Result{Reason: fmt.Sprintf("field %s is not a tag array", c.Field)}
	}

	var pass bool

	switch c.Operator {
	case OpIsEmpty:
		pass = length == 0
	case OpContains:
		pass = tagContains(value, c.str)
	case OpHasAny:
		for _, want := range c.strs {
			if tagContains(value, want) {
				pass = true

				break
			}
		}
	case OpHasAll:
		pass = true

		for _, want := range c.strs {
			if !tagContains(value, want) {
				pass = false

				break
			}
		}
	}

	if !pass {
		return Result{Reason: fmt.Sprintf("field %s tags fail %s %v", c.Field, c.Operator, c.Value)}
	}

	return passed
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}

func itemNumeric(v any, ft FieldType) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case time.Time:
		return float64(n.Unix()), true
	case string:
		if ft != FieldTypeDate {
			return 0, false
		}

		t, err := time.Parse(time.RFC3339, n)
		if err != nil {
			return 0, false
		}

		return float64(t.Unix()), true
	default:
		return 0, false
	}
}

// tagLen and tagContains inspect tag arrays in place so the hot path does not
// allocate per item.
func tagLen(v any) (int, bool) {
	switch list := v.(type) {
	case []string:
		return len(list), true
	case []any:
		return len(list), true
	default:
		return 0, false
	}
}

func tagContains(v any, s string) bool {
	switch list := v.(type) {
	case []string:
		return containsString(list, s)
	case []any:
		for _, item := range list {
			if str, ok := item.(string); ok && str == s {
				return true
			}
		}
	}

	return false
}
