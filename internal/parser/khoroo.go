package parser

import (
	"strconv"

	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/regex"
)

var (
	// "3-Р ХОРОО", "3 KHOROO", "3-R HOROO", "3Х"
	khorooWord = regex.MustCompile(`([0-9]{1,2})\s*(?:-Р|-R)?\s*(?:ХОРОО|KHOROO|HOROO|H|Х)\b`, true)
	// "3 Х", "3H"
	khorooShort = regex.MustCompile(`\b([0-9]{1,2})\s*(?:Х|H)\b`, true)
)

// SubDistrictResolver finds the khoroo number.
type SubDistrictResolver struct {
	// per district: its aliases followed by its canonical name, each as
	// "ALIAS <n>"
	afterDistrict map[string][]*regex.Regex
}

// NewSubDistrictResolver precompiles the district-relative rules.
func NewSubDistrictResolver(table *gazetteer.Table) *SubDistrictResolver {
	sr := &SubDistrictResolver{afterDistrict: make(map[string][]*regex.Regex, len(table.Districts()))}
	for _, d := range table.Districts() {
		names := append(append([]string(nil), d.Aliases...), d.Name)
		rules := make([]*regex.Regex, 0, len(names))
		for _, name := range names {
			rules = append(rules, regex.MustCompile(regex.Escape(name)+`\s*([0-9]{1,2})\b`, true))
		}
		sr.afterDistrict[d.Name] = rules
	}
	return sr
}

// FindSubDistrict returns the khoroo number in text, or 0. The first rule
// that matches wins: the explicit khoroo word, the short "NХ" form, then a
// number written right after the resolved district.
func (sr *SubDistrictResolver) FindSubDistrict(text, district string) int {
	if g := khorooWord.FindGroups(text); g != nil {
		return atoi(g[1])
	}
	if g := khorooShort.FindGroups(text); g != nil {
		return atoi(g[1])
	}
	if district == "" {
		return 0
	}
	for _, re := range sr.afterDistrict[district] {
		if g := re.FindGroups(text); g != nil {
			return atoi(g[1])
		}
	}
	return 0
}

// atoi parses a bounded run of ASCII digits. Anything else is 0.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
