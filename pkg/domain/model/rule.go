package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Operator is the comparison applied by a route condition
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpContains  Operator = "contains"
	OpChanged   Operator = "changed"
)

// MatchOptions tunes condition evaluation behavior.
type MatchOptions struct {
	// TreatMissingPriorAsChanged makes the "changed" operator succeed
	// when the delivery carries no prior-state snapshot. Default is the
	// conservative reading: no snapshot means no observable change.
	TreatMissingPriorAsChanged bool
}

// Condition filters events by a single field of the flattened payload.
//
//	{field: "assignee.name", operator: "equals", value: "Claude"}
type Condition struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value,omitempty" json:"value,omitempty"`
}

// Evaluate is total: an absent field makes equals/in/contains false
// rather than erroring.
func (c *Condition) Evaluate(ev *Event, opts MatchOptions) bool {
	value, ok := ev.Fields[c.Field]

	switch c.Operator {
	case OpEquals, "":
		return ok && looseEqual(value, c.Value)

	case OpNotEquals:
		if !ok {
			return true
		}
		return !looseEqual(value, c.Value)

	case OpIn:
		if !ok {
			return false
		}
		members, isList := c.Value.([]any)
		if !isList {
			return false
		}
		for _, m := range members {
			if looseEqual(value, m) {
				return true
			}
		}
		return false

	case OpContains:
		if !ok {
			return false
		}
		switch typed := value.(type) {
		case string:
			return strings.Contains(typed, fmt.Sprint(c.Value))
		case []any:
			for _, m := range typed {
				if looseEqual(m, c.Value) {
					return true
				}
			}
			return false
		default:
			return false
		}

	case OpChanged:
		if ev.PreviousFields == nil {
			return opts.TreatMissingPriorAsChanged
		}
		old, hadOld := ev.PreviousFields[c.Field]
		if !hadOld && !ok {
			return false
		}
		if hadOld != ok {
			return true
		}
		return !looseEqual(old, value)

	default:
		return false
	}
}

// Validate reports a structurally broken condition at rule load time
func (c *Condition) Validate() error {
	if c.Field == "" {
		return goerr.New("condition field must not be empty", goerr.T(types.ErrTagBadRule))
	}

	switch c.Operator {
	case OpEquals, OpNotEquals, OpContains, OpChanged, "":
	case OpIn:
		if _, ok := c.Value.([]any); !ok {
			return goerr.New("'in' condition requires a list value",
				goerr.T(types.ErrTagBadRule),
				goerr.V("field", c.Field),
			)
		}
	default:
		return goerr.New("unknown condition operator",
			goerr.T(types.ErrTagBadRule),
			goerr.V("operator", string(c.Operator)),
			goerr.V("field", c.Field),
		)
	}

	return nil
}

// Rule maps an event pattern plus conditions to a prompt template.
// Rules are immutable once loaded; a reload builds a fresh RuleSet.
type Rule struct {
	Pattern     string      `yaml:"pattern" json:"pattern"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool        `yaml:"enabled" json:"enabled"`
	Conditions  []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Template    string      `yaml:"template" json:"template"`
}

// Matches reports whether this rule fully matches the event: enabled,
// pattern matches the "Type.action" key, and every condition holds
// (AND semantics, empty list is trivially true).
func (r *Rule) Matches(ev *Event, opts MatchOptions) bool {
	if !r.Enabled {
		return false
	}
	if !matchPattern(r.Pattern, ev) {
		return false
	}
	for i := range r.Conditions {
		if !r.Conditions[i].Evaluate(ev, opts) {
			return false
		}
	}
	return true
}

// matchPattern supports three forms: literal "Type.action", the
// wildcard-action "Type.*", and the match-all "*".
func matchPattern(pattern string, ev *Event) bool {
	if pattern == "*" {
		return true
	}
	if entityType, ok := strings.CutSuffix(pattern, ".*"); ok {
		return entityType == ev.EntityType
	}
	return pattern == ev.Key()
}

// Validate checks rule structure; it does not check whether the pattern
// names a real Linear entity, since routing is data-driven on purpose.
func (r *Rule) Validate() error {
	if r.Pattern == "" {
		return goerr.New("rule pattern must not be empty", goerr.T(types.ErrTagBadRule))
	}
	if r.Template == "" {
		return goerr.New("rule template must not be empty",
			goerr.T(types.ErrTagBadRule),
			goerr.V("pattern", r.Pattern),
		)
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return goerr.Wrap(err, "invalid rule condition",
				goerr.V("pattern", r.Pattern),
				goerr.V("condition_index", i),
			)
		}
	}
	return nil
}

// looseEqual compares with the value's natural type when both sides are
// the same primitive kind (number, bool, string), falling back to string
// comparison otherwise. YAML rule values and JSON payload values decode
// to different Go types for the same number, so numeric comparison goes
// through float64.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
		return false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
