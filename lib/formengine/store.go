package formengine

import (
	"sync"
)

// FormValue is the current value of one field.
// IsDefault routes the value to the top level of the submission instead of context.extras.
type FormValue struct {
	Value     any  `json:"value"`
	IsDefault bool `json:"is_default"`
}

// UploadStatus is the state of a field's upload state machine
type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// File is a file selected for an upload field. Data is never serialized.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// FileUpload is the upload state of one field.
// At most one file is in flight; later selections wait in Queue.
type FileUpload struct {
	File    *File        `json:"file,omitempty"`
	Preview string       `json:"preview,omitempty"`
	Status  UploadStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Queue   []*File      `json:"-"`

	ticket uint64
}

func (u *FileUpload) clone() *FileUpload {
	c := *u
	c.Queue = append([]*File(nil), u.Queue...)
	return &c
}

// Ticket identifies one in-flight upload. Completions carrying a ticket that
// is no longer current (the field was removed, replaced or reset) are ignored.
type Ticket struct {
	Field string
	ID    uint64
}

// Snapshot is a copy of a store's state
type Snapshot struct {
	Screen        Screen                 `json:"screen"`
	Values        Values                 `json:"values"`
	Uploads       map[string]*FileUpload `json:"uploads"`
	Dropdowns     map[string]bool        `json:"dropdowns"`
	DatePickers   map[string]bool        `json:"date_pickers"`
	PhoneValidity map[string]bool        `json:"phone_validity"`
	Country       string                 `json:"country,omitempty"`
	Region        string                 `json:"region,omitempty"`
	Valid         bool                   `json:"valid"`
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithPreviewReleaser sets the function called for every preview the store drops
func WithPreviewReleaser(fn func(ref string)) StoreOption {
	return func(s *Store) {
		s.releaser = fn
	}
}

// WithPhoneValidator overrides the phone validity check
func WithPhoneValidator(fn func(string) bool) StoreOption {
	return func(s *Store) {
		s.phoneValid = fn
	}
}

// Store is the single source of truth for one screen's form state.
// All operations are total: invalid input becomes state, never an error.
type Store struct {
	mu sync.Mutex

	screen        Screen
	attrs         []Attribute
	values        Values
	uploads       map[string]*FileUpload
	dropdowns     map[string]bool
	datePickers   map[string]bool
	phoneValidity map[string]bool
	country       string
	region        string
	valid         bool

	seq      uint64
	released []string

	releaser   func(ref string)
	phoneValid func(string) bool
}

// NewStore creates an empty store for screen
func NewStore(screen Screen, opts ...StoreOption) *Store {
	s := &Store{
		screen:     screen,
		phoneValid: ValidPhone,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.attrs = nil
	s.values = make(Values)
	s.uploads = make(map[string]*FileUpload)
	s.dropdowns = make(map[string]bool)
	s.datePickers = make(map[string]bool)
	s.phoneValidity = make(map[string]bool)
	s.country = ""
	s.region = ""
	s.valid = false
}

// mutate runs fn under the lock, recomputes the completeness signal and
// releases dropped previews once the lock is gone.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.valid = len(s.attrs) > 0 && Complete(s.attrs, s.view())
	refs := s.released
	s.released = nil
	s.mu.Unlock()

	if s.releaser == nil {
		return
	}
	for _, ref := range refs {
		s.releaser(ref)
	}
}

func (s *Store) release(ref string) {
	if ref != "" {
		s.released = append(s.released, ref)
	}
}

// Screen returns the screen the store belongs to
func (s *Store) Screen() Screen {
	return s.screen
}

// Attributes returns the attributes the store was initialized with, sorted
func (s *Store) Attributes() []Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attribute(nil), s.attrs...)
}

// Initialize assigns every attribute its type's zero value.
// It is a no-op once the store holds values, so remounts keep user input.
func (s *Store) Initialize(attrs []Attribute) bool {
	initialized := false
	s.mutate(func() {
		if len(s.values) > 0 {
			return
		}
		s.attrs = SortAttributes(attrs)
		for _, a := range s.attrs {
			s.values[a.Name] = FormValue{Value: a.FieldType.ZeroValue(), IsDefault: a.IsDefault}
			if a.FieldType.IsUpload() {
				s.uploads[a.Name] = &FileUpload{Status: UploadIdle}
			}
		}
		initialized = len(s.attrs) > 0
	})
	return initialized
}

// SetValue replaces the value of name
func (s *Store) SetValue(name string, value any, isDefault bool) {
	s.mutate(func() {
		s.values[name] = FormValue{Value: value, IsDefault: isDefault}
	})
}

// SetPhoneValue sets a phone value and records whether it is a valid number
func (s *Store) SetPhoneValue(name, value string) {
	s.mutate(func() {
		fv := s.values[name]
		fv.Value = value
		s.values[name] = fv
		s.phoneValidity[name] = s.phoneValid(value)
	})
}

// ToggleDropdown sets the open flag of a dropdown
func (s *Store) ToggleDropdown(name string, open bool) {
	s.mutate(func() {
		s.dropdowns[name] = open
	})
}

// ToggleDatePicker sets the open flag of a date or time picker
func (s *Store) ToggleDatePicker(name string, open bool) {
	s.mutate(func() {
		s.datePickers[name] = open
	})
}

// SetCountry selects the country used for region lookups; changing it clears the region
func (s *Store) SetCountry(code string) {
	s.mutate(func() {
		if code != s.country {
			s.region = ""
		}
		s.country = code
	})
}

// SetRegion selects the region within the current country
func (s *Store) SetRegion(code string) {
	s.mutate(func() {
		s.region = code
	})
}

// RemoveFile returns an upload field to idle, drops its queue and preview
// and clears its value. A completion for the removed upload is ignored.
func (s *Store) RemoveFile(name string) {
	s.mutate(func() {
		if u, ok := s.uploads[name]; ok {
			s.release(u.Preview)
		}
		s.uploads[name] = &FileUpload{Status: UploadIdle}
		fv := s.values[name]
		fv.Value = ""
		s.values[name] = fv
	})
}

// Reset clears all state and releases every preview
func (s *Store) Reset() {
	s.mutate(func() {
		for _, u := range s.uploads {
			s.release(u.Preview)
		}
		s.clear()
	})
}

// Valid returns the completeness signal as of the last mutation
func (s *Store) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// Missing lists the required, visible, enabled fields that are not yet satisfied
func (s *Store) Missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Missing(s.attrs, s.view())
}

// Upload returns a copy of a field's upload state
func (s *Store) Upload(name string) (FileUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[name]
	if !ok {
		return FileUpload{}, false
	}
	return *u.clone(), true
}

// BeginUpload makes file the in-flight upload of field.
// When an upload is already in flight the file is queued and started is false.
func (s *Store) BeginUpload(field string, file *File) (ticket Ticket, started bool) {
	s.mutate(func() {
		u := s.upload(field)
		if u.Status == UploadUploading {
			u.Queue = append(u.Queue, file)
			return
		}
		s.release(u.Preview)
		s.seq++
		*u = FileUpload{File: file, Status: UploadUploading, ticket: s.seq}
		ticket, started = Ticket{Field: field, ID: s.seq}, true
	})
	return ticket, started
}

// AttachPreview records the preview of the in-flight upload.
// It returns false when the ticket is stale; the caller then owns ref.
func (s *Store) AttachPreview(t Ticket, ref string) bool {
	attached := false
	s.mutate(func() {
		u, ok := s.uploads[t.Field]
		if !ok || t.ID == 0 || u.ticket != t.ID {
			return
		}
		if u.Preview != ref {
			s.release(u.Preview)
		}
		u.Preview = ref
		attached = true
	})
	return attached
}

// FinishUpload applies the outcome of the upload identified by t.
//
// On success url becomes the field value; on failure the field turns to
// error and its preview is released. If files are queued, the next one
// becomes in flight atomically and is returned with its ticket. current is
// false when t is stale, in which case nothing changes.
func (s *Store) FinishUpload(t Ticket, url string, uploadErr error) (next Ticket, nextFile *File, current bool) {
	s.mutate(func() {
		u, ok := s.uploads[t.Field]
		if !ok || t.ID == 0 || u.ticket != t.ID {
			return
		}
		current = true

		fv := s.values[t.Field]
		if uploadErr != nil {
			s.release(u.Preview)
			u.Preview = ""
			u.Status = UploadError
			u.Error = uploadErr.Error()
			fv.Value = ""
		} else {
			u.Status = UploadSuccess
			u.Error = ""
			fv.Value = url
		}
		s.values[t.Field] = fv

		if len(u.Queue) == 0 {
			return
		}
		nextFile = u.Queue[0]
		u.Queue[0] = nil
		u.Queue = u.Queue[1:]
		s.release(u.Preview)
		s.seq++
		u.File = nextFile
		u.Preview = ""
		u.Status = UploadUploading
		u.Error = ""
		u.ticket = s.seq
		next = Ticket{Field: t.Field, ID: s.seq}
	})
	return next, nextFile, current
}

// RejectFile records a validation failure for field.
// File and preview are kept; an in-flight upload keeps its status.
func (s *Store) RejectFile(field, message string) {
	s.mutate(func() {
		u := s.upload(field)
		u.Error = message
		if u.Status != UploadUploading {
			u.Status = UploadError
		}
	})
}

func (s *Store) upload(field string) *FileUpload {
	u, ok := s.uploads[field]
	if !ok {
		u = &FileUpload{Status: UploadIdle}
		s.uploads[field] = u
	}
	return u
}

// Snapshot returns a deep copy of the store state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Screen:        s.screen,
		Values:        make(Values, len(s.values)),
		Uploads:       make(map[string]*FileUpload, len(s.uploads)),
		Dropdowns:     copyFlags(s.dropdowns),
		DatePickers:   copyFlags(s.datePickers),
		PhoneValidity: copyFlags(s.phoneValidity),
		Country:       s.country,
		Region:        s.region,
		Valid:         s.valid,
	}
	for k, v := range s.values {
		snap.Values[k] = FormValue{Value: copyValue(v.Value), IsDefault: v.IsDefault}
	}
	for k, u := range s.uploads {
		snap.Uploads[k] = u.clone()
	}
	return snap
}

// Restore loads values and UI state from a snapshot taken earlier.
// Uploads that were in flight cannot be resumed and turn to error.
func (s *Store) Restore(snap Snapshot) {
	s.mutate(func() {
		for k, v := range snap.Values {
			s.values[k] = FormValue{Value: copyValue(v.Value), IsDefault: v.IsDefault}
		}
		for k, u := range snap.Uploads {
			if u == nil {
				continue
			}
			c := &FileUpload{File: u.File, Preview: u.Preview, Status: u.Status, Error: u.Error}
			if c.Status == UploadUploading {
				s.release(c.Preview)
				c.Preview = ""
				c.Status = UploadError
				c.Error = "upload was interrupted, please select the file again"
				fv := s.values[k]
				fv.Value = ""
				s.values[k] = fv
			}
			s.uploads[k] = c
		}
		for k, v := range snap.Dropdowns {
			s.dropdowns[k] = v
		}
		for k, v := range snap.DatePickers {
			s.datePickers[k] = v
		}
		for k, v := range snap.PhoneValidity {
			s.phoneValidity[k] = v
		}
		s.country = snap.Country
		s.region = snap.Region
	})
}

// view exposes the live state for read-only derivations; callers hold the lock
func (s *Store) view() Snapshot {
	return Snapshot{
		Screen:        s.screen,
		Values:        s.values,
		Uploads:       s.uploads,
		Dropdowns:     s.dropdowns,
		DatePickers:   s.datePickers,
		PhoneValidity: s.phoneValidity,
		Country:       s.country,
		Region:        s.region,
		Valid:         s.valid,
	}
}

func copyFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		return append([]any{}, x...)
	case []string:
		return append([]string{}, x...)
	}
	return v
}
