package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// misreads maps characters OCR and vision models commonly confuse inside names.
var misreads = strings.NewReplacer("|", "I", "0", "O", "1", "I")

// RemoveDiacritics removes diacritical marks from a string (e.g., "Nováková" -> "Novakova").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// CleanName normalizes a machine-read name. It keeps letters, spaces,
// hyphens and dots, drops one-letter fragments, and capitalizes each word.
// It fails when fewer than two words survive or the result is not a
// plausible name.
func CleanName(raw string) (string, bool) {
	s := misreads.Replace(RemoveDiacritics(raw))

	var b strings.Builder
	for _, r := range s {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r), r == '-', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	title := cases.Title(language.Und)
	var words []string
	for _, w := range strings.Fields(b.String()) {
		if len(w) >= 2 {
			words = append(words, title.String(w))
		}
	}
	if len(words) < 2 {
		return "", false
	}

	name := strings.Join(words, " ")
	return name, ValidName(name)
}

// ValidName reports whether name is 3 to 50 characters and has a letter.
func ValidName(name string) bool {
	if len(name) < 3 || len(name) > 50 {
		return false
	}
	return strings.IndexFunc(name, unicode.IsLetter) >= 0
}
