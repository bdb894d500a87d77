package formengine

// Satisfied reports whether attr's current state fulfils its requirement.
// It does not consider visibility or the required flag.
func Satisfied(attr Attribute, snap Snapshot) bool {
	value := snap.Values.Get(attr.Name)
	switch attr.FieldType {
	case FieldImage, FieldFile:
		u := snap.Uploads[attr.Name]
		return u != nil && u.Status == UploadSuccess && u.File != nil && !isEmpty(value)
	case FieldCheckbox:
		b, _ := value.(bool)
		return b
	case FieldMultiSelect:
		return !isEmpty(value)
	case FieldPhone:
		if isEmpty(value) {
			return false
		}
		valid, known := snap.PhoneValidity[attr.Name]
		return !known || valid
	}
	return !isEmpty(value)
}

// requires reports whether attr takes part in the completeness signal
func requires(attr Attribute, ev Evaluator) bool {
	return attr.IsRequired && !attr.IsDisabled && ev.Visible(attr)
}

// Complete reports whether every required, enabled and visible attribute is satisfied
func Complete(attrs []Attribute, snap Snapshot) bool {
	ev := NewEvaluator(snap.Values)
	for _, attr := range attrs {
		if requires(attr, ev) && !Satisfied(attr, snap) {
			return false
		}
	}
	return true
}

// Missing returns the names of the attributes that keep the form incomplete
func Missing(attrs []Attribute, snap Snapshot) []string {
	ev := NewEvaluator(snap.Values)
	var missing []string
	for _, attr := range attrs {
		if requires(attr, ev) && !Satisfied(attr, snap) {
			missing = append(missing, attr.Name)
		}
	}
	return missing
}
