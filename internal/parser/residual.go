package parser

import (
	"strconv"
	"strings"

	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/regex"
)

const maxSubDistrictID = 99

// khorooStrip holds, per khoroo number, the rules that erase its mention.
type khorooStrip struct {
	word  *regex.Regex // "3-Р ХОРОО", "3 KHOROO", "3 Х"
	short *regex.Regex // "3Х"
	bare  *regex.Regex // a leftover "3" and its comma
}

// residualBuilder erases everything already resolved so the building
// extractor only sees what is left.
type residualBuilder struct {
	khoroo      [maxSubDistrictID + 1]khorooStrip
	cityMarkers []*regex.Regex
	district    map[string][]*regex.Regex
}

func newResidualBuilder(table *gazetteer.Table) *residualBuilder {
	rb := &residualBuilder{district: make(map[string][]*regex.Regex, len(table.Districts()))}

	for n := 1; n <= maxSubDistrictID; n++ {
		id := strconv.Itoa(n)
		rb.khoroo[n] = khorooStrip{
			word:  regex.MustCompile(`\b`+id+`\s*(?:-Р|-R)?\s*(?:ХОРОО|KHOROO|HOROO|Х|H)\b`, true),
			short: regex.MustCompile(`\b`+id+`(?:Х|H)\b`, true),
			bare:  regex.MustCompile(`\b`+id+`\b\s*,?`, false),
		}
	}

	keyword := func(k string) *regex.Regex {
		return regex.MustCompile(`\b`+regex.Escape(k)+`\b\s*,?`, true)
	}
	for _, marker := range table.CityMarkers() {
		rb.cityMarkers = append(rb.cityMarkers, keyword(marker))
	}
	for _, d := range table.Districts() {
		rules := []*regex.Regex{keyword(d.Name)}
		for _, alias := range d.Aliases {
			rules = append(rules, keyword(alias))
		}
		rb.district[d.Name] = rules
	}
	return rb
}

// Build returns normalized with the khoroo, city and district mentions
// removed and whitespace collapsed.
func (rb *residualBuilder) Build(normalized string, subDistrictID int, district string) string {
	s := normalized

	if subDistrictID > 0 && subDistrictID <= maxSubDistrictID {
		strip := rb.khoroo[subDistrictID]
		s = strip.word.ReplaceAll(s, " ")
		s = strip.short.ReplaceAll(s, " ")
		s = strip.bare.ReplaceAll(s, " ")
	}

	for _, re := range rb.cityMarkers {
		s = re.ReplaceAll(s, " ")
	}
	for _, re := range rb.district[district] {
		s = re.ReplaceAll(s, " ")
	}

	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}
