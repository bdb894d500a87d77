package formengine

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidPhone reports whether value is an acceptable phone number.
// The empty string is valid; spaces, dashes, dots and parentheses are ignored.
func ValidPhone(value string) bool {
	if value == "" {
		return true
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, value)
	return validate.Var(cleaned, "required,e164") == nil
}
