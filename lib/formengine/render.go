package formengine

import (
	"fmt"
)

// ControlKind is the UI control a field type is drawn with
type ControlKind string

const (
	KindText        ControlKind = "text"
	KindTextarea    ControlKind = "textarea"
	KindEmail       ControlKind = "email"
	KindPhone       ControlKind = "phone"
	KindNumber      ControlKind = "number"
	KindAmount      ControlKind = "amount"
	KindDate        ControlKind = "date"
	KindTime        ControlKind = "time"
	KindImage       ControlKind = "image"
	KindFile        ControlKind = "file"
	KindURL         ControlKind = "url"
	KindCheckbox    ControlKind = "checkbox"
	KindCountry     ControlKind = "country"
	KindState       ControlKind = "state"
	KindSelect      ControlKind = "select"
	KindMultiSelect ControlKind = "multiselect"
	KindSignature   ControlKind = "signature"
)

type optionSource int

const (
	noOptions optionSource = iota
	attributeOptions
	countryOptions
)

type openFlag int

const (
	noFlag openFlag = iota
	dropdownFlag
	pickerFlag
)

type controlHandler struct {
	kind    ControlKind
	options optionSource
	flag    openFlag
}

var controlHandlers = map[FieldType]controlHandler{
	FieldText:        {kind: KindText},
	FieldLongText:    {kind: KindTextarea},
	FieldEmail:       {kind: KindEmail},
	FieldPhone:       {kind: KindPhone},
	FieldNumber:      {kind: KindNumber},
	FieldAmount:      {kind: KindAmount},
	FieldDate:        {kind: KindDate, flag: pickerFlag},
	FieldTime:        {kind: KindTime, flag: pickerFlag},
	FieldImage:       {kind: KindImage},
	FieldFile:        {kind: KindFile},
	FieldURL:         {kind: KindURL},
	FieldCheckbox:    {kind: KindCheckbox},
	FieldCountry:     {kind: KindCountry, options: countryOptions, flag: dropdownFlag},
	FieldState:       {kind: KindState, options: attributeOptions, flag: dropdownFlag},
	FieldDropdown:    {kind: KindSelect, options: attributeOptions, flag: dropdownFlag},
	FieldMultiSelect: {kind: KindMultiSelect, options: attributeOptions, flag: dropdownFlag},
	FieldSign:        {kind: KindSignature},
}

// UploadView is the renderable part of a field's upload state
type UploadView struct {
	Status      UploadStatus `json:"status"`
	FileName    string       `json:"file_name,omitempty"`
	ContentType string       `json:"content_type,omitempty"`
	Size        int64        `json:"size,omitempty"`
	Preview     string       `json:"preview,omitempty"`
	Error       string       `json:"error,omitempty"`
	Queued      int          `json:"queued,omitempty"`
}

// Control is one field drawn against the current state
type Control struct {
	Name       string      `json:"name"`
	Label      string      `json:"label"`
	Kind       ControlKind `json:"kind"`
	FieldType  FieldType   `json:"field_type"`
	Position   int         `json:"position"`
	Required   bool        `json:"required"`
	Disabled   bool        `json:"disabled"`
	HelpText   string      `json:"help_text,omitempty"`
	Visible    bool        `json:"visible"`
	Value      any         `json:"value"`
	IsDefault  bool        `json:"is_default"`
	Options    OptionSet   `json:"options,omitempty"`
	Open       bool        `json:"open,omitempty"`
	PhoneValid *bool       `json:"phone_valid,omitempty"`
	Upload     *UploadView `json:"upload,omitempty"`
}

// Section is a group of controls sharing a section key
type Section struct {
	Name     string    `json:"name"`
	Controls []Control `json:"controls"`
}

// RenderOptions supplies renderer collaborators
type RenderOptions struct {
	// Countries overrides the country catalog
	Countries OptionSet
	// PreviewURL maps a preview reference to an address clients can load
	PreviewURL func(ref string) string
}

// Render draws every attribute against snap, grouped by section in display order.
// Hidden controls are included with Visible set to false.
func Render(attrs []Attribute, snap Snapshot, opts RenderOptions) ([]Section, error) {
	ev := NewEvaluator(snap.Values)
	var sections []Section
	index := make(map[string]int)
	for _, attr := range SortAttributes(attrs) {
		control, err := RenderControl(attr, snap, ev, opts)
		if err != nil {
			return nil, err
		}
		i, ok := index[attr.Section]
		if !ok {
			i = len(sections)
			index[attr.Section] = i
			sections = append(sections, Section{Name: attr.Section})
		}
		sections[i].Controls = append(sections[i].Controls, control)
	}
	return sections, nil
}

// RenderControl draws one attribute
func RenderControl(attr Attribute, snap Snapshot, ev Evaluator, opts RenderOptions) (Control, error) {
	h, ok := controlHandlers[attr.FieldType]
	if !ok {
		return Control{}, fmt.Errorf("no control for field type %q", attr.FieldType)
	}

	fv, hasValue := snap.Values[attr.Name]
	if !hasValue {
		fv = FormValue{Value: attr.FieldType.ZeroValue(), IsDefault: attr.IsDefault}
	}
	c := Control{
		Name:      attr.Name,
		Label:     attr.Label,
		Kind:      h.kind,
		FieldType: attr.FieldType,
		Position:  attr.Position,
		Required:  attr.IsRequired,
		Disabled:  attr.IsDisabled,
		HelpText:  attr.HelpText,
		Visible:   ev.Visible(attr),
		Value:     fv.Value,
		IsDefault: fv.IsDefault,
	}
	if c.Label == "" {
		c.Label = attr.Name
	}

	switch h.options {
	case attributeOptions:
		c.Options = ev.Options(attr.Context.Options, attr)
	case countryOptions:
		base := attr.Context.Options
		if len(base) == 0 {
			base = opts.Countries
		}
		if len(base) == 0 {
			base = Countries()
		}
		c.Options = ev.Options(base, attr)
	}

	switch h.flag {
	case dropdownFlag:
		c.Open = snap.Dropdowns[attr.Name]
	case pickerFlag:
		c.Open = snap.DatePickers[attr.Name]
	}

	if attr.FieldType == FieldPhone {
		if valid, known := snap.PhoneValidity[attr.Name]; known {
			c.PhoneValid = &valid
		}
	}

	if attr.FieldType.IsUpload() {
		view := &UploadView{Status: UploadIdle}
		if u := snap.Uploads[attr.Name]; u != nil {
			view.Status = u.Status
			view.Error = u.Error
			view.Queued = len(u.Queue)
			if u.File != nil {
				view.FileName = u.File.Name
				view.ContentType = u.File.ContentType
				view.Size = u.File.Size
			}
			if u.Preview != "" {
				view.Preview = u.Preview
				if opts.PreviewURL != nil {
					view.Preview = opts.PreviewURL(u.Preview)
				}
			}
		}
		c.Upload = view
	}
	return c, nil
}
