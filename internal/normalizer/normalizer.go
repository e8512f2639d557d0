package normalizer

import (
	"strings"

	"github.com/mn-address-parser/internal/regex"
	"golang.org/x/text/unicode/norm"
)

// UnitWord matches the door-unit keyword ("тоот" and its spellings).
const UnitWord = `(?:ТООТ|Т|№|NO\.?|NO|ТОТ|ТОО|ТООТ\.?|TOOT|TOOT\.?)`

// SepChars is the character class of separators allowed between a building
// number and its block.
const SepChars = "[.\\\\/\\-#$^&*?`~:;<>|]"

var (
	commaRun     = regex.MustCompile(`[，,]+`, false)
	// Each rule starts at the first digit of a run only; retrying inside the
	// run can never succeed and would make long runs quadratic.
	ordinalDash  = regex.MustCompile(`(?<![0-9])([0-9]+)\s*-\s*Р`, false)
	ordinalBare  = regex.MustCompile(`(?<![0-9])([0-9]+)\s*Р\b`, false)
	unitWordGlue = regex.MustCompile(`(?<![0-9])([0-9]+)\s*(`+UnitWord+`)\b`, false)

	controlSpace = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
)

// Normalize canonicalizes a raw address. Steps, in order:
//
//  1. trim and compose (NFKC) the text, then upper-case it
//  2. turn newlines, carriage returns, tabs and comma runs into spaces
//  3. rewrite ordinals ("3 -р", "3р") to "3-Р"
//  4. put exactly one space between a number and a following unit word
//  5. collapse whitespace
//
// Normalize is total and idempotent.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	s = strings.ToUpper(norm.NFKC.String(s))
	s = controlSpace.Replace(s)
	s = commaRun.ReplaceAll(s, " ")

	s = ordinalDash.ReplaceAll(s, "$1-Р")
	s = ordinalBare.ReplaceAll(s, "$1-Р")

	s = unitWordGlue.ReplaceAll(s, "$1 $2")

	return strings.Join(strings.Fields(s), " ")
}
