package formengine

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

type releaseLog struct {
	mu   sync.Mutex
	refs []string
}

func (r *releaseLog) release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, ref)
}

func (r *releaseLog) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs...)
}

func allTypesSchema() []Attribute {
	var attrs []Attribute
	for i, ft := range FieldTypes {
		attrs = append(attrs, Attribute{Name: string(ft), FieldType: ft, Section: "All", Position: i})
	}
	return attrs
}

func TestStoreInitialize(t *testing.T) {
	s := NewStore(ScreenDetail)
	if !s.Initialize(allTypesSchema()) {
		t.Fatal("expected first initialize to apply")
	}

	snap := s.Snapshot()
	want := map[FieldType]any{
		FieldCheckbox:    false,
		FieldNumber:      float64(0),
		FieldAmount:      float64(0),
		FieldMultiSelect: []any{},
		FieldDate:        nil,
		FieldText:        "",
		FieldImage:       "",
		FieldSign:        "",
	}
	for ft, v := range want {
		if got := snap.Values.Get(string(ft)); !reflect.DeepEqual(got, v) {
			t.Errorf("%s zero value = %#v, want %#v", ft, got, v)
		}
	}
	if u := snap.Uploads[string(FieldImage)]; u == nil || u.Status != UploadIdle {
		t.Errorf("image upload state = %+v", u)
	}

	t.Run("re-initialize keeps user input", func(t *testing.T) {
		s.SetValue("Text", "Jane", true)
		if s.Initialize(allTypesSchema()) {
			t.Error("expected second initialize to be a no-op")
		}
		if got := s.Snapshot().Values["Text"]; got.Value != "Jane" || !got.IsDefault {
			t.Errorf("value lost: %+v", got)
		}
	})

	t.Run("reset allows initialize again", func(t *testing.T) {
		s.Reset()
		if len(s.Snapshot().Values) != 0 {
			t.Fatal("expected empty store after reset")
		}
		if !s.Initialize(allTypesSchema()) {
			t.Error("expected initialize after reset to apply")
		}
	})
}

func TestStoreIsDefaultFromSchema(t *testing.T) {
	s := NewStore(ScreenDetail)
	s.Initialize([]Attribute{{Name: "Full Name", FieldType: FieldText, IsDefault: true}})
	if !s.Snapshot().Values["Full Name"].IsDefault {
		t.Error("expected is_default to follow the attribute")
	}
}

func TestStorePhoneValidity(t *testing.T) {
	s := NewStore(ScreenDetail)
	s.Initialize([]Attribute{{Name: "Mobile", FieldType: FieldPhone}})

	tests := []struct {
		value string
		want  bool
	}{
		{"+919876543210", true},
		{"+1 (415) 555-0100", true},
		{"", true},
		{"12345", false},
		{"+12ab", false},
	}
	for _, tt := range tests {
		s.SetPhoneValue("Mobile", tt.value)
		snap := s.Snapshot()
		if got := snap.PhoneValidity["Mobile"]; got != tt.want {
			t.Errorf("validity(%q) = %v, want %v", tt.value, got, tt.want)
		}
		if snap.Values.Get("Mobile") != tt.value {
			t.Errorf("value = %v, want %q", snap.Values.Get("Mobile"), tt.value)
		}
	}
}

func TestStoreUIFlags(t *testing.T) {
	s := NewStore(ScreenDetail)
	s.ToggleDropdown("a", true)
	s.ToggleDropdown("b", false)
	s.ToggleDatePicker("a", true)
	s.ToggleDropdown("a", false)

	snap := s.Snapshot()
	if snap.Dropdowns["a"] || snap.Dropdowns["b"] {
		t.Errorf("dropdowns = %v", snap.Dropdowns)
	}
	if !snap.DatePickers["a"] {
		t.Error("date picker flag must be independent of the dropdown flag")
	}

	s.SetCountry("IN")
	s.SetRegion("KA")
	s.SetCountry("IN")
	if snap := s.Snapshot(); snap.Region != "KA" {
		t.Errorf("region = %q, want KA", snap.Region)
	}
	s.SetCountry("US")
	if snap := s.Snapshot(); snap.Country != "US" || snap.Region != "" {
		t.Errorf("country change must clear region, got %q/%q", snap.Country, snap.Region)
	}
}

func TestStoreUploadQueue(t *testing.T) {
	log := &releaseLog{}
	s := NewStore(ScreenDocument, WithPreviewReleaser(log.release))
	s.Initialize([]Attribute{{Name: "Passport", FieldType: FieldImage, IsRequired: true}})

	first := &File{Name: "one.jpg"}
	second := &File{Name: "two.jpg"}
	third := &File{Name: "three.jpg"}

	t1, started := s.BeginUpload("Passport", first)
	if !started {
		t.Fatal("expected first file to start")
	}
	s.AttachPreview(t1, "preview-1")
	if _, started := s.BeginUpload("Passport", second); started {
		t.Fatal("second file must be queued while uploading")
	}
	s.BeginUpload("Passport", third)

	u, _ := s.Upload("Passport")
	if u.Status != UploadUploading || len(u.Queue) != 2 || u.File != first {
		t.Fatalf("upload state = %+v", u)
	}

	t2, next, current := s.FinishUpload(t1, "https://cdn/one.jpg", nil)
	if !current || next != second {
		t.Fatalf("expected second file next, got %v (current=%v)", next, current)
	}
	if got := s.Snapshot().Values.Get("Passport"); got != "https://cdn/one.jpg" {
		t.Errorf("value after first upload = %v", got)
	}
	if s.Valid() {
		t.Error("form must not be valid while the next file uploads")
	}

	t3, next, _ := s.FinishUpload(t2, "", errors.New("network down"))
	if next != third {
		t.Fatalf("expected third file next, got %v", next)
	}
	if got := s.Snapshot().Values.Get("Passport"); got != "" {
		t.Errorf("failed upload must clear the value, got %v", got)
	}

	_, next, _ = s.FinishUpload(t3, "https://cdn/three.jpg", nil)
	if next != nil {
		t.Fatalf("queue should be drained, got %v", next)
	}
	u, _ = s.Upload("Passport")
	if u.Status != UploadSuccess || u.File != third || len(u.Queue) != 0 {
		t.Errorf("final state = %+v", u)
	}
	if !s.Valid() {
		t.Error("expected form to be valid after the last upload succeeded")
	}
	if got := log.all(); !reflect.DeepEqual(got, []string{"preview-1"}) {
		t.Errorf("released = %v", got)
	}
}

func TestStoreRemoveFile(t *testing.T) {
	log := &releaseLog{}
	s := NewStore(ScreenDocument, WithPreviewReleaser(log.release))
	s.Initialize([]Attribute{{Name: "Passport", FieldType: FieldImage, IsRequired: true}})

	ticket, _ := s.BeginUpload("Passport", &File{Name: "one.jpg"})
	s.AttachPreview(ticket, "blob-1")
	s.BeginUpload("Passport", &File{Name: "two.jpg"})
	s.RemoveFile("Passport")

	u, _ := s.Upload("Passport")
	if u.Status != UploadIdle || u.File != nil || u.Preview != "" || len(u.Queue) != 0 {
		t.Errorf("state after remove = %+v", u)
	}
	if got := s.Snapshot().Values.Get("Passport"); got != "" {
		t.Errorf("value after remove = %v", got)
	}
	if got := log.all(); !reflect.DeepEqual(got, []string{"blob-1"}) {
		t.Errorf("released = %v", got)
	}

	t.Run("late completion is ignored", func(t *testing.T) {
		_, next, current := s.FinishUpload(ticket, "https://cdn/one.jpg", nil)
		if current || next != nil {
			t.Error("expected stale ticket to be rejected")
		}
		if s.AttachPreview(ticket, "blob-late") {
			t.Error("expected stale preview to be rejected")
		}
		u, _ := s.Upload("Passport")
		if u.Status != UploadIdle {
			t.Errorf("status = %s, want idle", u.Status)
		}
		if got := s.Snapshot().Values.Get("Passport"); got != "" {
			t.Errorf("stale success overwrote the removal: %v", got)
		}
	})
}

func TestStoreRejectFile(t *testing.T) {
	s := NewStore(ScreenDocument)
	s.Initialize([]Attribute{{Name: "Passport", FieldType: FieldImage}})

	s.RejectFile("Passport", "file is too large")
	u, _ := s.Upload("Passport")
	if u.Status != UploadError || u.Error != "file is too large" {
		t.Errorf("state = %+v", u)
	}

	ticket, _ := s.BeginUpload("Passport", &File{Name: "ok.jpg"})
	s.AttachPreview(ticket, "p")
	s.RejectFile("Passport", "unsupported type")
	u, _ = s.Upload("Passport")
	if u.Status != UploadUploading || u.Preview != "p" || u.File == nil || u.File.Name != "ok.jpg" {
		t.Errorf("rejecting a file must not disturb the in-flight upload: %+v", u)
	}
}

func TestStoreResetReleasesPreviews(t *testing.T) {
	log := &releaseLog{}
	s := NewStore(ScreenDocument, WithPreviewReleaser(log.release))
	s.Initialize([]Attribute{
		{Name: "Front", FieldType: FieldImage},
		{Name: "Back", FieldType: FieldImage},
	})
	t1, _ := s.BeginUpload("Front", &File{Name: "f.jpg"})
	s.AttachPreview(t1, "front")
	t2, _ := s.BeginUpload("Back", &File{Name: "b.jpg"})
	s.AttachPreview(t2, "back")

	s.Reset()
	got := log.all()
	if len(got) != 2 {
		t.Errorf("released = %v, want both previews", got)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore(ScreenDetail)
	s.Initialize([]Attribute{{Name: "Diet", FieldType: FieldMultiSelect}})
	s.SetValue("Diet", []any{"Vegan"}, false)

	snap := s.Snapshot()
	snap.Values["Diet"].Value.([]any)[0] = "Changed"
	snap.Dropdowns["Diet"] = true

	again := s.Snapshot()
	if got := again.Values.Get("Diet").([]any)[0]; got != "Vegan" {
		t.Errorf("snapshot shares value storage: %v", got)
	}
	if again.Dropdowns["Diet"] {
		t.Error("snapshot shares flag storage")
	}
}

func TestStoreRestore(t *testing.T) {
	attrs := []Attribute{
		{Name: "Full Name", FieldType: FieldText, IsRequired: true, IsDefault: true},
		{Name: "Passport", FieldType: FieldImage},
	}
	s := NewStore(ScreenDocument)
	s.Initialize(attrs)
	s.SetValue("Full Name", "Jane", true)
	s.BeginUpload("Passport", &File{Name: "p.jpg"})
	s.SetCountry("IN")
	snap := s.Snapshot()

	restored := NewStore(ScreenDocument)
	restored.Initialize(attrs)
	restored.Restore(snap)

	got := restored.Snapshot()
	if got.Values.Get("Full Name") != "Jane" || got.Country != "IN" {
		t.Errorf("restored = %+v", got)
	}
	if u := got.Uploads["Passport"]; u.Status != UploadError || u.Error == "" {
		t.Errorf("interrupted upload must turn to error, got %+v", u)
	}
	if !restored.Valid() {
		t.Error("expected restored form to be valid")
	}
}

func TestStoreEmptyIsNotValid(t *testing.T) {
	s := NewStore(ScreenDetail)
	s.Initialize(nil)
	if s.Valid() {
		t.Error("a store without attributes has nothing to submit")
	}
}
