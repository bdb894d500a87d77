package formengine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

func mustAttributes(t *testing.T, raw string) []Attribute {
	t.Helper()
	var attrs []Attribute
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	return attrs
}

func values(kv ...any) Values {
	out := make(Values)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = FormValue{Value: kv[i+1]}
	}
	return out
}

const visaSchema = `[
	{"name": "Nationality", "field_type": "Country", "section": "Guest", "position": 1},
	{"name": "Visa Number", "field_type": "Text", "section": "Guest", "position": 2,
	 "context": {"conditions": {"Nationality": [
		{"show": false, "values": ["X"], "operation": "in", "value_type": "field"}
	 ]}}}
]`

func TestShouldShow(t *testing.T) {
	attrs := mustAttributes(t, visaSchema)
	visa := attrs[1]

	t.Run("attributes without conditions are always visible", func(t *testing.T) {
		for _, v := range []Values{nil, values("Nationality", "X"), values("Nationality", []any{"X"})} {
			if !ShouldShow(attrs[0], v) {
				t.Errorf("expected visible for %v", v)
			}
		}
	})

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"listed value applies the rule", "X", false},
		{"unlisted value applies the inverse", "Y", true},
		{"empty value keeps the default", "", true},
		{"missing value keeps the default", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldShow(visa, values("Nationality", tt.value)); got != tt.want {
				t.Errorf("ShouldShow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldShowNotIn(t *testing.T) {
	attrs := mustAttributes(t, `[{"name": "Purpose", "field_type": "Dropdown",
		"context": {"conditions": {"Nationality": [
			{"show": true, "values": ["IN"], "operation": "not_in", "value_type": "field"}
		]}}}]`)

	if !ShouldShow(attrs[0], values("Nationality", "US")) {
		t.Error("expected visible when value is not listed")
	}
	if ShouldShow(attrs[0], values("Nationality", "IN")) {
		t.Error("expected hidden when value is listed")
	}
}

func TestShouldShowFirstMatchWins(t *testing.T) {
	attrs := mustAttributes(t, `[{"name": "Visa Number", "field_type": "Text",
		"context": {"conditions": {
			"Nationality": [{"show": true, "values": ["IN"], "operation": "in", "value_type": "field"}],
			"Purpose":     [{"show": false, "values": ["Business"], "operation": "in", "value_type": "field"}]
		}}}]`)
	attr := attrs[0]

	// the first group with a value decides even though the second would hide the field
	if !ShouldShow(attr, values("Nationality", "IN", "Purpose", "Business")) {
		t.Error("expected first group to decide")
	}
	// the first group is skipped while its field is empty
	if ShouldShow(attr, values("Nationality", "", "Purpose", "Business")) {
		t.Error("expected second group to decide")
	}
	if ShouldShow(attr, values("Nationality", "US", "Purpose", "Leisure")) {
		t.Error("expected first group to hide the field")
	}
}

func TestShouldShowIgnoresValueRules(t *testing.T) {
	attrs := mustAttributes(t, `[{"name": "Document Type", "field_type": "Dropdown",
		"context": {"conditions": {"Nationality": [
			{"show": false, "values": ["IN"], "operation": "in", "value_type": "value", "options": ["Aadhar"]}
		]}}}]`)
	if !ShouldShow(attrs[0], values("Nationality", "IN")) {
		t.Error("value rules must not affect visibility")
	}
}

func TestShouldShowCollections(t *testing.T) {
	attrs := mustAttributes(t, `[{"name": "Allergy Notes", "field_type": "Long Text",
		"context": {"conditions": {"Diet": [
			{"show": true, "values": ["Nut free", 1], "operation": "in", "value_type": "field"}
		]}}}]`)
	attr := attrs[0]

	if !ShouldShow(attr, values("Diet", []any{"Vegan", "Nut free"})) {
		t.Error("expected visible when any element is listed")
	}
	if ShouldShow(attr, values("Diet", []any{"Vegan"})) {
		t.Error("expected hidden when no element is listed")
	}
	if !ShouldShow(attr, values("Diet", []any{})) {
		t.Error("empty collection keeps the default")
	}
	if !ShouldShow(attr, values("Diet", float64(1))) {
		t.Error("numbers compare by their string form")
	}
}

func TestComputeOptions(t *testing.T) {
	attrs := mustAttributes(t, `[
		{"name": "Country", "field_type": "Country", "is_required": true},
		{"name": "Document Type", "field_type": "Dropdown", "is_required": true,
		 "context": {
			"options": {"Passport": "Passport", "Aadhar": "Aadhar Card", "Driving License": "Driving License"},
			"conditions": {"Country": [
				{"show": true, "values": ["IN"], "operation": "in", "value_type": "field", "options": ["Aadhar", "Passport"]}
			]}
		 }}
	]`)
	doc := attrs[1]
	base := doc.Context.Options

	t.Run("no value keeps base options", func(t *testing.T) {
		got := ComputeOptions(base, doc, values("Country", ""))
		if !reflect.DeepEqual(got, base) {
			t.Errorf("got %v, want %v", got, base)
		}
	})

	t.Run("matching rule intersects with base options in base order", func(t *testing.T) {
		got := ComputeOptions(base, doc, values("Country", "IN"))
		want := OptionSet{{Key: "Passport", Label: "Passport"}, {Key: "Aadhar", Label: "Aadhar Card"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("unmatched rule keeps base options", func(t *testing.T) {
		got := ComputeOptions(base, doc, values("Country", "US"))
		if !reflect.DeepEqual(got, base) {
			t.Errorf("got %v, want %v", got, base)
		}
	})

	t.Run("rule options outside base are dropped", func(t *testing.T) {
		narrow := OptionSet{{Key: "Passport", Label: "Passport"}}
		got := ComputeOptions(narrow, doc, values("Country", "IN"))
		if !reflect.DeepEqual(got, narrow) {
			t.Errorf("got %v, want %v", got, narrow)
		}
	})
}

func TestComputeOptionsValueRules(t *testing.T) {
	attrs := mustAttributes(t, `[{"name": "Room", "field_type": "Dropdown",
		"context": {
			"options": ["Single", "Double", "Suite"],
			"conditions": {
				"Guests": [{"show": true, "values": ["1"], "operation": "not_in", "value_type": "value", "options": ["Double", "Suite"]}],
				"Tier":   [{"show": true, "values": ["Gold"], "operation": "in", "value_type": "value", "options": ["Suite"]}]
			}
		}}]`)
	room := attrs[0]
	base := room.Context.Options

	got := ComputeOptions(base, room, values("Guests", float64(2), "Tier", "Gold"))
	if want := []string{"Double", "Suite"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Errorf("first matching group: got %v, want %v", got.Keys(), want)
	}

	got = ComputeOptions(base, room, values("Guests", float64(1), "Tier", "Gold"))
	if want := []string{"Suite"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Errorf("fall through to second group: got %v, want %v", got.Keys(), want)
	}

	got = ComputeOptions(base, room, values("Guests", float64(1), "Tier", "Silver"))
	if !reflect.DeepEqual(got, base) {
		t.Errorf("no match: got %v, want base", got.Keys())
	}
}

func TestAttributeDecoding(t *testing.T) {
	t.Run("options and conditions keep declaration order", func(t *testing.T) {
		attrs := mustAttributes(t, `[{"name": "a", "field_type": "dropdown", "context": {
			"options": {"z": "Zulu", "a": "Alpha", "m": ""},
			"conditions": {"second": [], "first": []}
		}}]`)
		a := attrs[0]
		if a.FieldType != FieldDropdown {
			t.Errorf("field type = %q", a.FieldType)
		}
		if want := []string{"z", "a", "m"}; !reflect.DeepEqual(a.Context.Options.Keys(), want) {
			t.Errorf("option keys = %v, want %v", a.Context.Options.Keys(), want)
		}
		if a.Context.Options[2].Label != "m" {
			t.Errorf("empty label should fall back to key, got %q", a.Context.Options[2].Label)
		}
		if len(a.Context.Conditions) != 2 || a.Context.Conditions[0].Field != "second" {
			t.Errorf("conditions = %+v", a.Context.Conditions)
		}
	})

	t.Run("option arrays accept strings and objects", func(t *testing.T) {
		var set OptionSet
		if err := json.Unmarshal([]byte(`["A", {"key": "b", "label": "Bee"}]`), &set); err != nil {
			t.Fatal(err)
		}
		want := OptionSet{{Key: "A", Label: "A"}, {Key: "b", Label: "Bee"}}
		if !reflect.DeepEqual(set, want) {
			t.Errorf("got %v, want %v", set, want)
		}
	})

	t.Run("unknown field types are rejected", func(t *testing.T) {
		var attrs []Attribute
		if err := json.Unmarshal([]byte(`[{"name": "a", "field_type": "Slider"}]`), &attrs); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("conditions encode back in order", func(t *testing.T) {
		attrs := mustAttributes(t, `[{"name": "a", "field_type": "Text", "context": {"conditions": {
			"b": [{"show": true, "values": ["1"], "operation": "in", "value_type": "field"}],
			"a": []
		}}}]`)
		out, err := json.Marshal(attrs[0].Context.Conditions)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"b":[{"show":true,"values":["1"],"operation":"in","value_type":"field"}],"a":[]}`
		if string(out) != want {
			t.Errorf("got %s, want %s", out, want)
		}
	})
}

func TestSortAttributes(t *testing.T) {
	attrs := []Attribute{
		{Name: "c", Section: "Stay", Position: 2},
		{Name: "a", Section: "Guest", Position: 2},
		{Name: "b", Section: "Stay", Position: 1},
		{Name: "d", Section: "Guest", Position: 1},
	}
	var names []string
	for _, a := range SortAttributes(attrs) {
		names = append(names, a.Name)
	}
	if want := []string{"b", "c", "d", "a"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
	if attrs[0].Name != "c" {
		t.Error("input slice must not be reordered")
	}
}

func TestDecodeOrderedObject(t *testing.T) {
	var keys []string
	err := decodeOrderedObject([]byte(`{"k": 1, "c": {"x": [1, 2]}, "a": "s", "b": null}`), func(key string, raw json.RawMessage) error {
		keys = append(keys, key+"="+string(raw))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`k=1`, `c={"x": [1, 2]}`, `a="s"`, `b=null`}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("got %v, want %v", keys, want)
	}

	for _, bad := range []string{`5`, `["a"]`, `{"a": `, `"x"`} {
		if err := decodeOrderedObject([]byte(bad), func(string, json.RawMessage) error { return nil }); err == nil {
			t.Errorf("decodeOrderedObject(%s) succeeded", bad)
		}
	}

	calls := 0
	stop := decodeOrderedObject([]byte(`{"a": 1, "b": 2}`), func(key string, _ json.RawMessage) error {
		calls++
		return fmt.Errorf("stop at %s", key)
	})
	if stop == nil || calls != 1 {
		t.Errorf("err = %v after %d calls, want first error to stop the walk", stop, calls)
	}
}
