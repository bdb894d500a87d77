// Package upload implements the per-field file upload pipeline of the check-in
// form: validation, client-side image compression, previews and FIFO draining
// of files selected while an upload is in flight.
package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/iesreza/checkin-backend/lib/formengine"
)

// Size limits and image processing parameters
const (
	MaxFileSize       = 10 << 20
	MinFileSize       = 1 << 10
	CompressThreshold = 1 << 20
	MaxImageWidth     = 1600
	JPEGQuality       = 80
	PreviewWidth      = 480
	PreviewQuality    = 70
)

const (
	mimeDoc  = "application/msword"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var imageTypes = []string{"image/jpeg", "image/png"}

var documentTypes = []string{"application/pdf", mimeDoc, mimeDocx}

// ValidationError is a field-local rejection shown next to the control
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validate checks file against the allow-list of fieldType and the size bounds.
// It returns the MIME type sniffed from the content.
func Validate(file *formengine.File, fieldType formengine.FieldType) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", &ValidationError{Reason: "No file was selected."}
	}
	size := len(file.Data)
	if size > MaxFileSize {
		return "", &ValidationError{Reason: fmt.Sprintf("File is too large. Maximum size is %d MB.", MaxFileSize>>20)}
	}
	if size < MinFileSize {
		return "", &ValidationError{Reason: "File appears to be empty or corrupted. Please select another file."}
	}

	m := mimetype.Detect(file.Data)
	switch fieldType {
	case formengine.FieldImage:
		if !isOneOf(m, imageTypes) {
			return "", &ValidationError{Reason: "Only JPG, JPEG and PNG images are allowed."}
		}
	case formengine.FieldFile:
		if !isDocument(m, file.Name) {
			return "", &ValidationError{Reason: "Only PDF, DOC and DOCX documents are allowed."}
		}
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("Field type %q does not accept files.", fieldType)}
	}
	return mimeOf(m, file.Name), nil
}

func isOneOf(m *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// isDocument accepts the sniffed document types, plus the generic OLE and ZIP
// containers when the file name carries the matching Word extension.
func isDocument(m *mimetype.MIME, name string) bool {
	if isOneOf(m, documentTypes) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return (ext == ".doc" && m.Is("application/x-ole-storage")) ||
		(ext == ".docx" && m.Is("application/zip"))
}

func mimeOf(m *mimetype.MIME, name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".doc":
		if m.Is("application/x-ole-storage") {
			return mimeDoc
		}
	case ".docx":
		if m.Is("application/zip") {
			return mimeDocx
		}
	}
	return m.String()
}

// IsImage reports whether contentType is one of the accepted image types
func IsImage(contentType string) bool {
	for _, t := range imageTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

// Extension returns the file extension used for objects of contentType
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case mimeDoc:
		return ".doc"
	case mimeDocx:
		return ".docx"
	}
	if ext := mimetype.Lookup(contentType); ext != nil {
		return ext.Extension()
	}
	return ""
}
