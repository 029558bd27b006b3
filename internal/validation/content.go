package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Length limits for user-supplied text.
const (
	MaxTitleLength       = 200
	MaxBodyLength        = 20000
	MaxContentLength     = 10000
	MaxDescriptionLength = 2000
	MaxBioLength         = 500
	MaxQuestionLength    = 500
)

// RequireText trims s and checks it is non-empty and at most max runes.
func RequireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return s, nil
}

// OptionalText trims s and checks it is at most max runes.
func OptionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return s, nil
}
