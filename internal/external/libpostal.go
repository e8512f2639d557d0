//go:build cgo && libpostal

package external

import (
	"strings"

	"github.com/openvenues/gopostal/expand"
	"github.com/openvenues/gopostal/parser"
)

// Available reports whether libpostal was compiled in.
func Available() bool { return true }

// ExtractWithLibpostal expands raw and labels the best expansion. Coverage
// is the share of its words that landed in some component.
func ExtractWithLibpostal(raw string) (LP, error) {
	if strings.TrimSpace(raw) == "" {
		return LP{Components: map[string]string{}}, nil
	}

	opts := expand.GetDefaultExpansionOptions()
	opts.Languages = []string{"mn"}
	best := raw
	if exps := expand.ExpandAddressOptions(raw, opts); len(exps) > 0 {
		best = exps[0]
	}

	lp := LP{Expanded: best, Components: make(map[string]string)}
	covered, total := 0, len(strings.Fields(best))
	for _, c := range parser.ParseAddress(best) {
		lp.Components[c.Label] = c.Value
		switch c.Label {
		case "house_number":
			lp.House = c.Value
		case "road":
			lp.Road = c.Value
		case "unit":
			lp.Unit = c.Value
		case "suburb", "city_district":
			lp.District = c.Value
		case "city":
			lp.City = c.Value
		}
		covered += len(strings.Fields(c.Value))
	}
	if total > 0 {
		lp.Coverage = float64(covered) / float64(total)
	}
	return lp, nil
}
