// Package condition implements the generic boolean condition evaluator used
// by the query interface and the alert engine. A condition is either a leaf
// comparison (field, operator, value) or a logical composite (and/or/not
// over child conditions). Conditions are validated up front against a
// closed field registry; evaluation is then null-safe and error-free.
package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wayneWudh/aiagent/internal/model"
)

// Logic connects child conditions in a composite node.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
	LogicNot Logic = "not"
)

// Comparison operators.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpGt          = "gt"
	OpGte         = "gte"
	OpLt          = "lt"
	OpLte         = "lte"
	OpIn          = "in"
	OpNin         = "nin"
	OpBetween     = "between"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpWithinLast  = "within_last"
	OpBefore      = "before"
	OpAfter       = "after"
)

// operators lists every recognized operator name. An operator outside this
// set is UNKNOWN_OPERATOR; a recognized operator applied to the wrong field
// kind is INVALID_CONDITION.
var operators = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNin: {}, OpBetween: {},
	OpContains: {}, OpNotContains: {},
	OpWithinLast: {}, OpBefore: {}, OpAfter: {},
}

// Condition is a leaf comparison or a logical composite. Exactly one of the
// two shapes must be populated: Field/Op/Value for a leaf, or
// Logic/Conditions for a composite.
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    string      `json:"operator,omitempty"`
	Value interface{} `json:"value,omitempty"`

	Logic      Logic        `json:"logic,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty"`
}

// Parse unmarshals and validates a condition document.
func Parse(data []byte) (*Condition, error) {
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &model.ValidationError{
			Code:    model.CodeInvalidCondition,
			Message: "malformed condition JSON: " + err.Error(),
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Condition) isLeaf() bool      { return c.Field != "" || c.Op != "" }
func (c *Condition) isComposite() bool { return c.Logic != "" || len(c.Conditions) > 0 }

// Validate checks the condition tree against the field registry and the
// operator rules. Malformed conditions are rejected here so Evaluate never
// has to report errors.
func (c *Condition) Validate() error {
	switch {
	case c.isLeaf() && c.isComposite():
		return invalid("condition mixes leaf and composite fields")
	case !c.isLeaf() && !c.isComposite():
		return invalid("condition is empty")
	case c.isComposite():
		return c.validateComposite()
	default:
		return c.validateLeaf()
	}
}

func (c *Condition) validateComposite() error {
	switch c.Logic {
	case LogicAnd, LogicOr:
		if len(c.Conditions) == 0 {
			return invalid(fmt.Sprintf("%q requires at least one child condition", c.Logic))
		}
	case LogicNot:
		if len(c.Conditions) != 1 {
			return invalid(fmt.Sprintf("\"not\" requires exactly one child condition, got %d", len(c.Conditions)))
		}
	default:
		return invalid(fmt.Sprintf("unknown logic %q", c.Logic))
	}
	for _, child := range c.Conditions {
		if child == nil {
			return invalid("nil child condition")
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Condition) validateLeaf() error {
	spec, ok := fields[c.Field]
	if !ok {
		return &model.ValidationError{
			Code:    model.CodeUnknownField,
			Message: fmt.Sprintf("unknown field %q", c.Field),
		}
	}
	if _, ok := operators[c.Op]; !ok {
		return &model.ValidationError{
			Code:    model.CodeUnknownOperator,
			Message: fmt.Sprintf("unknown operator %q", c.Op),
		}
	}

	switch spec.kind {
	case kindNumber:
		return c.validateNumberLeaf()
	case kindString:
		return c.validateStringLeaf()
	case kindSignals:
		return c.validateSignalsLeaf()
	default:
		return c.validateTimeLeaf()
	}
}

func (c *Condition) validateNumberLeaf() error {
	switch c.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		if _, ok := asFloat(c.Value); !ok {
			return invalid(fmt.Sprintf("operator %q on field %q requires a numeric value", c.Op, c.Field))
		}
	case OpIn, OpNin:
		list, ok := asList(c.Value)
		if !ok || len(list) == 0 {
			return invalid(fmt.Sprintf("operator %q requires a non-empty array value", c.Op))
		}
		for _, v := range list {
			if _, ok := asFloat(v); !ok {
				return invalid(fmt.Sprintf("operator %q on field %q requires numeric array elements", c.Op, c.Field))
			}
		}
	case OpBetween:
		list, ok := asList(c.Value)
		if !ok || len(list) != 2 {
			return invalid("operator \"between\" requires a two-element [min, max] array")
		}
		lo, ok1 := asFloat(list[0])
		hi, ok2 := asFloat(list[1])
		if !ok1 || !ok2 {
			return invalid("operator \"between\" requires numeric bounds")
		}
		if lo > hi {
			return invalid("operator \"between\" requires min <= max")
		}
	default:
		return invalid(fmt.Sprintf("operator %q does not apply to numeric field %q", c.Op, c.Field))
	}
	return nil
}

func (c *Condition) validateStringLeaf() error {
	switch c.Op {
	case OpEq, OpNe, OpContains, OpNotContains:
		if _, ok := c.Value.(string); !ok {
			return invalid(fmt.Sprintf("operator %q on field %q requires a string value", c.Op, c.Field))
		}
	case OpIn, OpNin:
		list, ok := asList(c.Value)
		if !ok || len(list) == 0 {
			return invalid(fmt.Sprintf("operator %q requires a non-empty array value", c.Op))
		}
		for _, v := range list {
			if _, ok := v.(string); !ok {
				return invalid(fmt.Sprintf("operator %q on field %q requires string array elements", c.Op, c.Field))
			}
		}
	default:
		return invalid(fmt.Sprintf("operator %q does not apply to string field %q", c.Op, c.Field))
	}
	return nil
}

func (c *Condition) validateSignalsLeaf() error {
	switch c.Op {
	case OpContains, OpNotContains:
		if _, ok := c.Value.(string); ok {
			return nil
		}
		list, ok := asList(c.Value)
		if !ok || len(list) == 0 {
			return invalid(fmt.Sprintf("operator %q on \"signals\" requires a tag or non-empty tag array", c.Op))
		}
		for _, v := range list {
			if _, ok := v.(string); !ok {
				return invalid(fmt.Sprintf("operator %q on \"signals\" requires string tags", c.Op))
			}
		}
		return nil
	default:
		return invalid(fmt.Sprintf("operator %q does not apply to \"signals\"", c.Op))
	}
}

func (c *Condition) validateTimeLeaf() error {
	switch c.Op {
	case OpWithinLast:
		mins, ok := asFloat(c.Value)
		if !ok || mins <= 0 {
			return invalid("operator \"within_last\" requires a positive number of minutes")
		}
	case OpBefore, OpAfter:
		s, ok := c.Value.(string)
		if !ok {
			return invalid(fmt.Sprintf("operator %q requires an RFC 3339 timestamp string", c.Op))
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return invalid(fmt.Sprintf("operator %q: cannot parse %q as RFC 3339", c.Op, s))
		}
	default:
		return invalid(fmt.Sprintf("operator %q does not apply to \"timestamp\"", c.Op))
	}
	return nil
}

func invalid(msg string) error {
	return &model.ValidationError{Code: model.CodeInvalidCondition, Message: msg}
}

// Evaluate applies the condition to one record. now anchors the
// "within_last" operator. The condition must have passed Validate;
// evaluation of a valid condition cannot fail, and comparisons against an
// absent indicator value are false.
func (c *Condition) Evaluate(rec *model.Record, now time.Time) bool {
	if c.isComposite() {
		switch c.Logic {
		case LogicAnd:
			for _, child := range c.Conditions {
				if !child.Evaluate(rec, now) {
					return false
				}
			}
			return true
		case LogicOr:
			for _, child := range c.Conditions {
				if child.Evaluate(rec, now) {
					return true
				}
			}
			return false
		default: // not
			return !c.Conditions[0].Evaluate(rec, now)
		}
	}

	spec := fields[c.Field]
	switch spec.kind {
	case kindNumber:
		v, ok := spec.num(rec)
		if !ok {
			return false
		}
		return c.evalNumber(v)
	case kindString:
		return c.evalString(spec.str(rec))
	case kindSignals:
		return c.evalSignals(rec.Signals)
	default:
		return c.evalTime(spec.tm(rec), now)
	}
}

// eqFloat compares with a relative tolerance so indicator values that went
// through different arithmetic orders still compare equal.
func eqFloat(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func (c *Condition) evalNumber(v float64) bool {
	switch c.Op {
	case OpEq:
		b, _ := asFloat(c.Value)
		return eqFloat(v, b)
	case OpNe:
		b, _ := asFloat(c.Value)
		return !eqFloat(v, b)
	case OpGt:
		b, _ := asFloat(c.Value)
		return v > b
	case OpGte:
		b, _ := asFloat(c.Value)
		return v >= b
	case OpLt:
		b, _ := asFloat(c.Value)
		return v < b
	case OpLte:
		b, _ := asFloat(c.Value)
		return v <= b
	case OpIn, OpNin:
		list, _ := asList(c.Value)
		found := false
		for _, item := range list {
			if b, ok := asFloat(item); ok && eqFloat(v, b) {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found
		}
		return !found
	default: // between
		list, _ := asList(c.Value)
		lo, _ := asFloat(list[0])
		hi, _ := asFloat(list[1])
		return v >= lo && v <= hi
	}
}

func (c *Condition) evalString(v string) bool {
	switch c.Op {
	case OpEq:
		return v == c.Value.(string)
	case OpNe:
		return v != c.Value.(string)
	case OpContains:
		return strings.Contains(v, c.Value.(string))
	case OpNotContains:
		return !strings.Contains(v, c.Value.(string))
	case OpIn, OpNin:
		list, _ := asList(c.Value)
		found := false
		for _, item := range list {
			if s, ok := item.(string); ok && s == v {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found
		}
		return !found
	}
	return false
}

func (c *Condition) evalSignals(signals model.SignalSet) bool {
	var tags []string
	if s, ok := c.Value.(string); ok {
		tags = []string{s}
	} else {
		list, _ := asList(c.Value)
		for _, item := range list {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	// contains is satisfied by any listed tag; not_contains requires none
	has := signals.ContainsAny(tags)
	if c.Op == OpContains {
		return has
	}
	return !has
}

func (c *Condition) evalTime(v time.Time, now time.Time) bool {
	switch c.Op {
	case OpWithinLast:
		mins, _ := asFloat(c.Value)
		cutoff := now.Add(-time.Duration(mins * float64(time.Minute)))
		return !v.Before(cutoff)
	case OpBefore:
		ref, _ := time.Parse(time.RFC3339, c.Value.(string))
		return v.Before(ref)
	default: // after
		ref, _ := time.Parse(time.RFC3339, c.Value.(string))
		return v.After(ref)
	}
}

// String renders the condition for trigger descriptions and logs,
// e.g. `(close gt 100000 AND rsi_14 lt 30)`.
func (c *Condition) String() string {
	if c.isLeaf() {
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
	if c.Logic == LogicNot {
		return "NOT (" + c.Conditions[0].String() + ")"
	}
	parts := make([]string, len(c.Conditions))
	for i, child := range c.Conditions {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, " "+strings.ToUpper(string(c.Logic))+" ") + ")"
}

// asFloat accepts the numeric shapes both JSON decoding and direct Go
// construction produce.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
