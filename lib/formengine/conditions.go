package formengine

import (
	"fmt"
	"strconv"
)

// Values is a snapshot of form values keyed by attribute name
type Values map[string]FormValue

// Get returns the current value of a field, or nil when absent
func (v Values) Get(name string) any {
	if fv, ok := v[name]; ok {
		return fv.Value
	}
	return nil
}

// ShouldShow decides whether attr is visible for the given values.
//
// Groups are visited in declaration order. The first group whose referenced
// field holds a non-empty value and carries a "field" rule decides; with no
// decision the field is visible.
func ShouldShow(attr Attribute, values Values) bool {
	for _, group := range attr.Context.Conditions {
		current := values.Get(group.Field)
		if isEmpty(current) {
			continue
		}
		for _, rule := range group.Rules {
			if rule.ValueType != ValueTypeField {
				continue
			}
			matched, ok := rule.matches(current)
			if !ok {
				continue
			}
			if matched {
				return rule.Show
			}
			return !rule.Show
		}
	}
	return true
}

// ComputeOptions narrows base to the options allowed by attr's option rules.
//
// Option rules are "value" rules and any rule that lists options. The first
// matching rule, visiting groups in declaration order and skipping groups
// whose referenced field is empty, yields base ∩ rule.Options. Without a
// match base is returned unchanged.
func ComputeOptions(base OptionSet, attr Attribute, values Values) OptionSet {
	for _, group := range attr.Context.Conditions {
		current := values.Get(group.Field)
		if isEmpty(current) {
			continue
		}
		for _, rule := range group.Rules {
			if rule.ValueType != ValueTypeValue && len(rule.Options) == 0 {
				continue
			}
			if matched, ok := rule.matches(current); ok && matched {
				return base.Intersect(rule.Options)
			}
		}
	}
	return base
}

// Evaluator binds the condition functions to one values snapshot
type Evaluator struct {
	values Values
}

// NewEvaluator creates an evaluator over values
func NewEvaluator(values Values) Evaluator {
	return Evaluator{values: values}
}

// Visible is ShouldShow over the evaluator's values
func (e Evaluator) Visible(attr Attribute) bool {
	return ShouldShow(attr, e.values)
}

// Options is ComputeOptions over the evaluator's values
func (e Evaluator) Options(base OptionSet, attr Attribute) OptionSet {
	return ComputeOptions(base, attr, e.values)
}

// matches applies the rule operation to current.
// ok is false for operations the engine does not know.
func (r ConditionRule) matches(current any) (matched bool, ok bool) {
	in := containsValue(r.Values, current)
	switch r.Operation {
	case OpIn:
		return in, true
	case OpNotIn:
		return !in, true
	}
	return false, false
}

// containsValue reports whether current, or any element of a collection value, is listed
func containsValue(list []string, current any) bool {
	switch v := current.(type) {
	case []any:
		for _, item := range v {
			if containsValue(list, item) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if containsValue(list, item) {
				return true
			}
		}
		return false
	}
	s := stringify(current)
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

// isEmpty treats nil, "", false, numeric zero and empty collections as unset
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case float32:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return fmt.Sprint(v)
}
