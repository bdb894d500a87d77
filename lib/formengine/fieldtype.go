// Package formengine implements the condition-driven check-in form engine:
// the attribute schema, per-screen form state, condition evaluation, the
// completeness signal, control rendering and submission payload assembly.
//
// The package has no HTTP or storage knowledge. Callers own a Store per
// screen and drive it with the operations it exposes.
package formengine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the declared type of an attribute
type FieldType string

// Field type constants
const (
	FieldText        FieldType = "Text"
	FieldLongText    FieldType = "Long Text"
	FieldEmail       FieldType = "Email"
	FieldPhone       FieldType = "Phone"
	FieldNumber      FieldType = "Number"
	FieldAmount      FieldType = "Amount"
	FieldDate        FieldType = "Date"
	FieldTime        FieldType = "Time"
	FieldImage       FieldType = "Image"
	FieldFile        FieldType = "File"
	FieldURL         FieldType = "URL"
	FieldCheckbox    FieldType = "Checkbox"
	FieldCountry     FieldType = "Country"
	FieldState       FieldType = "State"
	FieldDropdown    FieldType = "Dropdown"
	FieldMultiSelect FieldType = "Multi-Select Dropdown"
	FieldSign        FieldType = "Sign"
)

// FieldTypes lists every supported field type
var FieldTypes = []FieldType{
	FieldText, FieldLongText, FieldEmail, FieldPhone, FieldNumber, FieldAmount,
	FieldDate, FieldTime, FieldImage, FieldFile, FieldURL, FieldCheckbox,
	FieldCountry, FieldState, FieldDropdown, FieldMultiSelect, FieldSign,
}

// ParseFieldType resolves a field type name, ignoring case and surrounding space
func ParseFieldType(s string) (FieldType, error) {
	s = strings.TrimSpace(s)
	for _, ft := range FieldTypes {
		if strings.EqualFold(string(ft), s) {
			return ft, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// UnmarshalJSON rejects field types outside the supported set
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field_type: %w", err)
	}
	ft, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// IsUpload reports whether values of this type are produced by the upload pipeline
func (t FieldType) IsUpload() bool {
	return t == FieldImage || t == FieldFile
}

// ZeroValue returns the value a freshly initialized field holds
func (t FieldType) ZeroValue() any {
	switch t {
	case FieldCheckbox:
		return false
	case FieldNumber, FieldAmount:
		return float64(0)
	case FieldMultiSelect:
		return []any{}
	case FieldDate:
		return nil
	default:
		return ""
	}
}

// Screen identifies one of the two check-in stages
type Screen string

// Screen constants
const (
	ScreenDocument Screen = "document"
	ScreenDetail   Screen = "detail"
)

// ParseScreen resolves a screen name
func ParseScreen(s string) (Screen, error) {
	switch Screen(strings.ToLower(strings.TrimSpace(s))) {
	case ScreenDocument:
		return ScreenDocument, nil
	case ScreenDetail:
		return ScreenDetail, nil
	}
	return "", fmt.Errorf("unknown screen %q", s)
}
