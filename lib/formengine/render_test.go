package formengine

import (
	"reflect"
	"testing"
)

func TestEveryFieldTypeHasControl(t *testing.T) {
	for _, ft := range FieldTypes {
		if _, ok := controlHandlers[ft]; !ok {
			t.Errorf("no control handler for %q", ft)
		}
	}
	if len(controlHandlers) != len(FieldTypes) {
		t.Errorf("%d handlers for %d field types", len(controlHandlers), len(FieldTypes))
	}
}

func TestRender(t *testing.T) {
	attrs := mustAttributes(t, `[
		{"name": "Document Type", "field_type": "Dropdown", "section": "Document", "position": 2, "is_required": true,
		 "context": {
			"options": {"Passport": "Passport", "Aadhar": "Aadhar", "Driving License": "Driving License"},
			"conditions": {"Country": [
				{"show": true, "values": ["IN"], "operation": "in", "value_type": "field", "options": ["Aadhar", "Passport"]}
			]}
		 }},
		{"name": "Country", "field_type": "Country", "section": "Document", "position": 1, "is_required": true},
		{"name": "Front", "field_type": "Image", "section": "Upload", "position": 1},
		{"name": "Mobile", "field_type": "Phone", "section": "Contact", "position": 1}
	]`)

	s := NewStore(ScreenDocument)
	s.Initialize(attrs)
	s.SetValue("Country", "IN", true)
	s.ToggleDropdown("Document Type", true)
	s.SetPhoneValue("Mobile", "123")
	ticket, _ := s.BeginUpload("Front", &File{Name: "front.jpg", ContentType: "image/jpeg", Size: 2048})
	s.AttachPreview(ticket, "ref-1")
	s.BeginUpload("Front", &File{Name: "front2.jpg"})

	sections, err := Render(attrs, s.Snapshot(), RenderOptions{
		Countries:  OptionSet{{Key: "IN", Label: "India"}, {Key: "US", Label: "United States"}},
		PreviewURL: func(ref string) string { return "/previews/" + ref },
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var names []string
	for _, sec := range sections {
		names = append(names, sec.Name)
	}
	if want := []string{"Document", "Upload", "Contact"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("sections = %v, want %v", names, want)
	}

	country, docType := sections[0].Controls[0], sections[0].Controls[1]
	if country.Name != "Country" || country.Kind != KindCountry {
		t.Errorf("first control = %+v", country)
	}
	if want := []string{"IN", "US"}; !reflect.DeepEqual(country.Options.Keys(), want) {
		t.Errorf("country options = %v", country.Options.Keys())
	}
	if docType.Kind != KindSelect || !docType.Open || !docType.Visible {
		t.Errorf("document type = %+v", docType)
	}
	if want := []string{"Passport", "Aadhar"}; !reflect.DeepEqual(docType.Options.Keys(), want) {
		t.Errorf("document type options = %v, want %v", docType.Options.Keys(), want)
	}

	front := sections[1].Controls[0]
	if front.Upload == nil {
		t.Fatal("expected upload view")
	}
	want := UploadView{
		Status:      UploadUploading,
		FileName:    "front.jpg",
		ContentType: "image/jpeg",
		Size:        2048,
		Preview:     "/previews/ref-1",
		Queued:      1,
	}
	if *front.Upload != want {
		t.Errorf("upload view = %+v, want %+v", *front.Upload, want)
	}

	mobile := sections[2].Controls[0]
	if mobile.PhoneValid == nil || *mobile.PhoneValid {
		t.Errorf("phone validity = %v", mobile.PhoneValid)
	}
}

func TestRenderHiddenControl(t *testing.T) {
	attrs := mustAttributes(t, visaSchema)
	sections, err := Render(attrs, Snapshot{Values: values("Nationality", "X")}, RenderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	visa := sections[0].Controls[1]
	if visa.Visible {
		t.Error("expected visa control to be hidden")
	}
	if visa.Value != "" {
		t.Errorf("missing values render as the zero value, got %#v", visa.Value)
	}
	if len(sections[0].Controls[0].Options) == 0 {
		t.Error("country control should fall back to the built-in catalog")
	}
}

func TestCountries(t *testing.T) {
	list := Countries()
	if len(list) < 200 {
		t.Fatalf("expected the ISO country list, got %d entries", len(list))
	}
	for _, code := range []string{"IN", "US", "DE", "JP"} {
		if !list.Has(code) {
			t.Errorf("missing %s", code)
		}
	}
	if list.Has("ZZ") || list.Has("AA") {
		t.Error("unknown and private use regions must be excluded")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Label > list[i].Label {
			t.Fatalf("not sorted at %d: %q > %q", i, list[i-1].Label, list[i].Label)
		}
	}
}
