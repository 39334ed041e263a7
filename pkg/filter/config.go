// Package filter evaluates multi-condition predicates over JSON-shaped item
// collections. Conditions are validated once at configuration time; evaluation
// is deterministic and allocation-free except for failure reasons.
package filter

import (
	"fmt"
	"strings"
	"time"
)

// FieldType is the inferred type of a condition's field.
type FieldType string

const (
	FieldTypeNumber   FieldType = "number"
	FieldTypeString   FieldType = "string"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDate     FieldType = "date"
	FieldTypeCategory FieldType = "category" // single-valued enum
	FieldTypeTag      FieldType = "tag"      // array-valued
)

// Operator identifies a comparison.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpHasAny      Operator = "has_any"
	OpHasAll      Operator = "has_all"
	OpIsEmpty     Operator = "is_empty"
)

// Logic combines multiple conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// operator sets per field type, per the filter contract.
var operatorsByType = map[FieldType]map[Operator]bool{
	FieldTypeNumber:   {OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpBetween: true},
	FieldTypeDate:     {OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpBetween: true},
	FieldTypeString:   {OpEq: true, OpNe: true, OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true, OpIn: true, OpNotIn: true},
	FieldTypeCategory: {OpEq: true, OpNe: true, OpIn: true, OpNotIn: true},
	FieldTypeTag:      {OpContains: true, OpHasAny: true, OpHasAll: true, OpIsEmpty: true},
	FieldTypeBoolean:  {OpEq: true},
}

// ConfigError is raised at configuration time: bad operator/type pairing,
// malformed between bounds, out-of-range condition counts. It is never
// silently defaulted.
type ConfigError struct {
	ConditionID string
	Field       string
	Message     string
}

func (e *ConfigError) Error() string {
	if e.ConditionID != "" {
		return fmt.Sprintf("invalid filter condition %s (field %q): %s", e.ConditionID, e.Field, e.Message)
	}

	return "invalid filter config: " + e.Message
}

// Condition is one predicate over a dot-path field. The exported fields are
// the wire shape; compiled comparison state is built by Compile.
type Condition struct {
	ID            string    `json:"id"`
	Field         string    `json:"field"`
	Operator      Operator  `json:"operator"`
	Value         any       `json:"value"`
	Type          FieldType `json:"type"`
	CaseSensitive bool      `json:"case_sensitive,omitempty"`

	// compiled state
	path      []string
	num       float64
	numLow    float64
	numHigh   float64
	str       string
	strs      []string
	boolean   bool
	missingRe string // precomputed "field <path> not present" reason
}

// Config is a validated multi-condition filter.
type Config struct {
	Conditions []Condition `json:"conditions"`
	Logic      Logic       `json:"logic"`
}

const (
	minConditions = 1
	maxConditions = 10
)

// NewConfig validates and compiles a filter configuration.
func NewConfig(conditions []Condition, logic Logic) (*Config, error) {
	if len(conditions) < minConditions || len(conditions) > maxConditions {
		return nil, &ConfigError{Message: fmt.Sprintf("expected between %d and %d conditions, got %d", minConditions, maxConditions, len(conditions))}
	}

	if logic != LogicAnd && logic != LogicOr {
		return nil, &ConfigError{Message: fmt.Sprintf("logic must be AND or OR, got %q", logic)}
	}

	cfg := &Config{Conditions: make([]Condition, len(conditions)), Logic: logic}

	for i, c := range conditions {
		compiled, err := compile(c)
		if err != nil {
			return nil, err
		}

		cfg.Conditions[i] = compiled
	}

	return cfg, nil
}

func compile(c Condition) (Condition, error) {
	if c.Field == "" {
		return c, &ConfigError{ConditionID: c.ID, Message: "field path is required"}
	}

	allowed, known := operatorsByType[c.Type]
	if !known {
		return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: fmt.Sprintf("unknown field type %q", c.Type)}
	}

	if !allowed[c.Operator] {
		return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: fmt.Sprintf("operator %q not valid for %s fields", c.Operator, c.Type)}
	}

	c.path = strings.Split(c.Field, ".")
	c.missingRe = "field " + c.Field + " not present"

	switch c.Type {
	case FieldTypeNumber, FieldTypeDate:
		return compileNumeric(c)
	case FieldTypeString, FieldTypeCategory:
		return compileString(c)
	case FieldTypeTag:
		return compileTag(c)
	case FieldTypeBoolean:
		b, ok := c.Value.(bool)
		if !ok {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "boolean condition requires a boolean value"}
		}

		c.boolean = b

		return c, nil
	}

	return c, nil
}

func compileNumeric(c Condition) (Condition, error) {
	if c.Operator == OpBetween {
		bounds, ok := pairOf(c.Value, c.Type)
		if !ok {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "between requires a [low, high] pair"}
		}

		if bounds[0] > bounds[1] {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: fmt.Sprintf("between bounds inverted: low %v > high %v", bounds[0], bounds[1])}
		}

		c.numLow, c.numHigh = bounds[0], bounds[1]

		return c, nil
	}

	n, ok := numericValue(c.Value, c.Type)
	if !ok {
		return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: fmt.Sprintf("%s condition requires a %s value", c.Type, c.Type)}
	}

	c.num = n

	return c, nil
}

func compileString(c Condition) (Condition, error) {
	switch c.Operator {
	case OpIn, OpNotIn:
		list, ok := stringList(c.Value)
		if !ok || len(list) == 0 {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "in/not_in requires a non-empty string list"}
		}

		if !c.CaseSensitive {
			for i := range list {
				list[i] = strings.ToLower(list[i])
			}
		}

		c.strs = list
	default:
		s, ok := c.Value.(string)
		if !ok {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "string condition requires a string value"}
		}

		if !c.CaseSensitive {
			s = strings.ToLower(s)
		}

		c.str = s
	}

	return c, nil
}

func compileTag(c Condition) (Condition, error) {
	switch c.Operator {
	case OpIsEmpty:
		return c, nil
	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "tag contains requires a string value"}
		}

		c.str = s
	case OpHasAny, OpHasAll:
		list, ok := stringList(c.Value)
		if !ok || len(list) == 0 {
			return c, &ConfigError{ConditionID: c.ID, Field: c.Field, Message: "has_any/has_all requires a non-empty string list"}
		}

		c.strs = list
	}

	return c, nil
}

// numericValue coerces a config value to a comparable float64. Dates accept
// RFC 3339 strings, time.Time, or epoch seconds.
func numericValue(v any, ft FieldType) (float64, bool) {
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

func pairOf(v any, ft FieldType) ([2]float64, bool) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return [2]float64{}, false
	}

	low, okLow := numericValue(list[0], ft)
	high, okHigh := numericValue(list[1], ft)

	return [2]float64{low, high}, okLow && okHigh
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))

		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}

// ParseConfig builds a Config from a raw node configuration payload, the
// JSON-decoded shape the editor produces.
func ParseConfig(raw map[string]any) (*Config, error) {
	logic := LogicAnd
	if l, ok := raw["logic"].(string); ok && l != "" {
		logic = Logic(strings.ToUpper(l))
	}

	rawConditions, ok := raw["conditions"].([]any)
	if !ok {
		return nil, &ConfigError{Message: "conditions must be an array"}
	}

	conditions := make([]Condition, 0, len(rawConditions))

	for i, rc := range rawConditions {
		obj, ok := rc.(map[string]any)
		if !ok {
			return nil, &ConfigError{Message: fmt.Sprintf("condition %d is not an object", i)}
		}

		c := Condition{
			ID:       stringAt(obj, "id"),
			Field:    stringAt(obj, "field"),
			Operator: Operator(stringAt(obj, "operator")),
			Type:     FieldType(stringAt(obj, "type")),
			Value:    obj["value"],
		}
		if cs, ok := obj["case_sensitive"].(bool); ok {
			c.CaseSensitive = cs
		}

		if c.ID == "" {
			c.ID = fmt.Sprintf("cond-%d", i)
		}

		conditions = append(conditions, c)
	}

	return NewConfig(conditions, logic)
}

func stringAt(obj map[string]any, key string) string {
	s, _ := obj[key].(string)

	return s
}
