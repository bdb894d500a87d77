package formengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

// Attribute is a server-supplied form field descriptor.
// Name is the sole correlation key between schema, form values and upload state.
type Attribute struct {
	Name       string           `json:"name"`
	Label      string           `json:"label"`
	FieldType  FieldType        `json:"field_type"`
	Section    string           `json:"section"`
	Position   int              `json:"position"`
	IsRequired bool             `json:"is_required"`
	IsDisabled bool             `json:"is_disabled"`
	IsDefault  bool             `json:"is_default"`
	HelpText   string           `json:"help_text,omitempty"`
	Context    AttributeContext `json:"context"`
}

// AttributeContext is the rule bag attached to an attribute
type AttributeContext struct {
	Options    OptionSet  `json:"options,omitempty"`
	Conditions Conditions `json:"conditions,omitempty"`
}

// Schema is the payload returned by the check-in attribute API
type Schema struct {
	Items []Attribute `json:"items"`
	Count int         `json:"count"`
}

// Option is a single selectable choice
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// OptionSet is an ordered list of options.
// It decodes from a JSON object (key order preserved) or a JSON array whose
// elements are strings or {key, label} objects.
type OptionSet []Option

// UnmarshalJSON implements json.Unmarshaler
func (s *OptionSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	var out OptionSet
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		for _, raw := range items {
			var opt Option
			if err := json.Unmarshal(raw, &opt); err == nil && opt.Key != "" {
				if opt.Label == "" {
					opt.Label = opt.Key
				}
				out = append(out, opt)
				continue
			}
			key, err := scalarString(raw)
			if err != nil {
				return fmt.Errorf("options: %w", err)
			}
			out = append(out, Option{Key: key, Label: key})
		}
		*s = out
		return nil
	}

	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		label, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("option %q: %w", key, err)
		}
		if label == "" {
			label = key
		}
		out = append(out, Option{Key: key, Label: label})
		return nil
	})
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*s = out
	return nil
}

// MarshalJSON encodes the set as a JSON object in option order
func (s OptionSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(opt.Key)
		v, _ := json.Marshal(opt.Label)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the option keys in order
func (s OptionSet) Keys() []string {
	keys := make([]string, len(s))
	for i, opt := range s {
		keys[i] = opt.Key
	}
	return keys
}

// Has reports whether key is one of the options
func (s OptionSet) Has(key string) bool {
	for _, opt := range s {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// Intersect keeps the options whose key is listed in keys, preserving s's order
func (s OptionSet) Intersect(keys []string) OptionSet {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	out := OptionSet{}
	for _, opt := range s {
		if _, ok := allowed[opt.Key]; ok {
			out = append(out, opt)
		}
	}
	return out
}

// Operation is the comparison a condition rule applies
type Operation string

const (
	OpIn    Operation = "in"
	OpNotIn Operation = "not_in"
)

// ValueType selects which evaluator a rule participates in
type ValueType string

const (
	// ValueTypeValue rules restrict dropdown options
	ValueTypeValue ValueType = "value"
	// ValueTypeField rules toggle visibility
	ValueTypeField ValueType = "field"
)

// ConditionRule is one rule of a condition group
type ConditionRule struct {
	Show      bool       `json:"show"`
	Values    StringList `json:"values"`
	Operation Operation  `json:"operation"`
	ValueType ValueType  `json:"value_type"`
	Options   StringList `json:"options,omitempty"`
}

// ConditionGroup is the rule list keyed by one referenced field
type ConditionGroup struct {
	Field string
	Rules []ConditionRule
}

// Conditions is the ordered set of condition groups of an attribute.
// It decodes from {"fieldName": [rule, ...], ...} keeping declaration order.
type Conditions []ConditionGroup

// UnmarshalJSON implements json.Unmarshaler
func (c *Conditions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	var out Conditions
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var rules []ConditionRule
		if err := json.Unmarshal(raw, &rules); err != nil {
			return fmt.Errorf("condition %q: %w", key, err)
		}
		out = append(out, ConditionGroup{Field: key, Rules: rules})
		return nil
	})
	if err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	*c = out
	return nil
}

// MarshalJSON encodes the groups as a JSON object in declaration order
func (c Conditions) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, group := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(group.Field)
		if err != nil {
			return nil, err
		}
		rules := group.Rules
		if rules == nil {
			rules = []ConditionRule{}
		}
		v, err := json.Marshal(rules)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StringList decodes a JSON array of scalars into strings
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, raw := range items {
		s, err := scalarString(raw)
		if err != nil {
			return err
		}
		out = append(out, s)
	}
	*l = out
	return nil
}

// SortAttributes orders attributes by section (first appearance) then position
func SortAttributes(attrs []Attribute) []Attribute {
	order := make(map[string]int)
	for _, a := range attrs {
		if _, ok := order[a.Section]; !ok {
			order[a.Section] = len(order)
		}
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := order[out[i].Section], order[out[j].Section]
		if si != sj {
			return si < sj
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// decodeOrderedObject calls fn for each member of a JSON object in document order
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json")
	}
	obj := gjson.ParseBytes(data)
	if !obj.IsObject() {
		return fmt.Errorf("expected object, got %s", obj.Type)
	}
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		err = fn(key.String(), json.RawMessage(value.Raw))
		return err == nil
	})
	return err
}

func scalarString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("expected scalar, got %s", string(raw))
}
