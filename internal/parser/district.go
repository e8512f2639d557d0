package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/regex"
)

// DefaultFuzzyThreshold is the lowest similarity a fuzzy district match may have.
const DefaultFuzzyThreshold = 0.85

var nonWord = regex.MustCompile(`\W+`, false)

// DistrictMatch describes how a district was resolved.
type DistrictMatch struct {
	Name   string
	Alias  string
	Score  float64
	Method string
}

type aliasRule struct {
	district string
	alias    string
	re       *regex.Regex
}

// DistrictResolver maps free text to a canonical district: first by a
// whole-word alias hit, then by the closest token above the threshold.
type DistrictResolver struct {
	table      *gazetteer.Table
	exact      []aliasRule
	threshold  float64
	similarity Similarity
}

// NewDistrictResolver precompiles one whole-word rule per alias.
func NewDistrictResolver(table *gazetteer.Table, threshold float64, similarity Similarity) *DistrictResolver {
	if similarity == nil {
		similarity = LCSRatio
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}

	dr := &DistrictResolver{
		table:      table,
		threshold:  threshold,
		similarity: similarity,
	}
	for _, d := range table.Districts() {
		for _, alias := range d.Aliases {
			dr.exact = append(dr.exact, aliasRule{
				district: d.Name,
				alias:    alias,
				re:       regex.MustCompile(`\b`+regex.Escape(alias)+`\b`, false),
			})
		}
	}
	return dr
}

// FindDistrict returns the canonical district named in text.
func (dr *DistrictResolver) FindDistrict(text string) (string, bool) {
	m := dr.Resolve(text)
	return m.Name, m.Method != models.MethodNone
}

// Resolve is FindDistrict with the evidence attached.
func (dr *DistrictResolver) Resolve(text string) DistrictMatch {
	t := strings.ToUpper(text)

	for _, rule := range dr.exact {
		if rule.re.MatchString(t) {
			return DistrictMatch{Name: rule.district, Alias: rule.alias, Score: 1, Method: models.MethodExact}
		}
	}

	best := DistrictMatch{Method: models.MethodNone}
	for _, word := range strings.Fields(t) {
		clean := nonWord.ReplaceAll(word, "")
		if utf8.RuneCountInString(clean) < 2 {
			continue
		}
		for _, rule := range dr.exact {
			score := dr.similarity(clean, rule.alias)
			if score > best.Score && score >= dr.threshold {
				best = DistrictMatch{Name: rule.district, Alias: rule.alias, Score: score, Method: models.MethodFuzzy}
			}
		}
	}
	return best
}
