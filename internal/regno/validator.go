// Package regno validates and extracts institution registration numbers
// (prefix, 2 digits, 2 letters, 4 digits, e.g. URK23AI1112) from scanned payloads.
package regno

import (
	"regexp"
	"strings"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Validator checks strings against the registration number grammar.
type Validator struct {
	prefix   string
	anchored *regexp.Regexp
	search   *regexp.Regexp
}

// NewValidator returns a validator for the given prefix. An empty prefix
// falls back to the default institution prefix.
func NewValidator(prefix string) *Validator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = constants.DefaultPrefix
	}
	body := regexp.QuoteMeta(prefix) + `[0-9]{2}[A-Z]{2}[0-9]{4}`
	return &Validator{
		prefix:   prefix,
		anchored: regexp.MustCompile(`^` + body + `$`),
		search:   regexp.MustCompile(body),
	}
}

// Prefix returns the institution prefix.
func (v *Validator) Prefix() string {
	return v.prefix
}

// Validate reports whether text is exactly one registration number.
// Validation is case sensitive; callers normalize case before validating.
func (v *Validator) Validate(text string) bool {
	if text == "" || len(text) < len(v.prefix)+constants.RegNoSuffixLength {
		return false
	}
	if !strings.HasPrefix(text, v.prefix) {
		return false
	}
	return v.anchored.MatchString(text)
}

// Find returns the first registration number embedded anywhere in text.
func (v *Validator) Find(text string) (string, bool) {
	m := v.search.FindString(text)
	return m, m != ""
}
