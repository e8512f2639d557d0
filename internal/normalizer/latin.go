package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripMarks removes combining marks, e.g. "Й" decomposes to "И" + breve.
func StripMarks(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// Latin folds a normalized address into upper-case ASCII. Cyrillic is
// transliterated, so "БАЯНЗҮРХ" and "BAYANZURKH" land close to each other.
// The result is used as a search key and cache fingerprint, never for
// parsing.
func Latin(text string) string {
	s := Normalize(text)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(unidecode.Unidecode(StripMarks(s)))
	return strings.Join(strings.Fields(s), " ")
}
