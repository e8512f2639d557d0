package parser

import (
	"strings"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/normalizer"
	"github.com/mn-address-parser/internal/regex"
)

// Extraction is the building, block and door read from the residual text.
type Extraction struct {
	Building int
	Block    string
	Door     int
	Pattern  string
}

func noExtraction() Extraction {
	return Extraction{Block: models.DefaultBlock, Pattern: models.PatternNone}
}

type extractRule struct {
	tag   string
	re    *regex.Regex
	build func(g []string) Extraction
}

const blockLetter = `[А-ЯӨҮЁA-Z]`

var (
	sepChars = regex.MustCompile(normalizer.SepChars, false)

	// Tried in order, first match wins. Widths are fixed: building 1-5
	// digits, block one letter or 1-2 digits, door 1-4 digits.
	cascade = []extractRule{
		{
			tag: models.PatternBlockSeparated,
			re: regex.MustCompile(
				`\b([0-9]{1,5})(`+normalizer.SepChars+`)(`+blockLetter+`|[0-9]{1,2})\s+([0-9]{1,4})\b`, false),
			build: func(g []string) Extraction {
				return Extraction{Building: atoi(g[1]), Block: g[3], Door: atoi(g[4])}
			},
		},
		{
			tag: models.PatternBlockLetter,
			re:  regex.MustCompile(`\b([0-9]{1,5})(`+blockLetter+`)\s+([0-9]{1,4})\b`, false),
			build: func(g []string) Extraction {
				return Extraction{Building: atoi(g[1]), Block: g[2], Door: atoi(g[3])}
			},
		},
		{
			tag: models.PatternBuildingDoor,
			re:  regex.MustCompile(`\b([0-9]{1,5})\s+([0-9]{1,4})\s*(?:`+normalizer.UnitWord+`)?\b`, false),
			build: func(g []string) Extraction {
				return Extraction{Building: atoi(g[1]), Block: models.DefaultBlock, Door: atoi(g[2])}
			},
		},
		{
			tag: models.PatternDoorOnly,
			re:  regex.MustCompile(normalizer.UnitWord+`\s*([0-9]{1,4})\b`, false),
			build: func(g []string) Extraction {
				return Extraction{Block: models.DefaultBlock, Door: atoi(g[1])}
			},
		},
	}
)

// ExtractBuilding reads building, block and door from residual text. The
// strict two-token reading is tried first, then the cascade.
func ExtractBuilding(residual string) Extraction {
	if ex, ok := strictContentBlocks(residual); ok {
		return ex
	}
	return extractByCascade(residual)
}

// strictContentBlocks keeps the tokens that carry a digit. With at least
// two of them, the first holds the building (and maybe a block) and the last
// holds the door.
func strictContentBlocks(residual string) (Extraction, bool) {
	var blocks []string
	for _, tok := range strings.Fields(residual) {
		if strings.ContainsAny(tok, "0123456789") {
			blocks = append(blocks, tok)
		}
	}
	if len(blocks) < 2 {
		return Extraction{}, false
	}

	first := blocks[0]
	run := leadingDigits(first)
	if run == "" {
		return Extraction{}, false
	}
	building, ok := parseDigits(run)
	if !ok {
		return Extraction{}, false
	}

	block := sepChars.ReplaceAll(first[len(run):], "")
	if block == "" {
		block = models.DefaultBlock
	}

	door, ok := parseDigits(firstDigits(blocks[len(blocks)-1]))
	if !ok {
		return Extraction{}, false
	}

	return Extraction{
		Building: building,
		Block:    block,
		Door:     door,
		Pattern:  models.PatternStrictBlocks,
	}, true
}

func extractByCascade(residual string) Extraction {
	for _, rule := range cascade {
		if g := rule.re.FindGroups(residual); g != nil {
			ex := rule.build(g)
			ex.Pattern = rule.tag
			return ex
		}
	}
	return noExtraction()
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func firstDigits(s string) string {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return ""
	}
	return leadingDigits(s[start:])
}

// parseDigits converts an unbounded digit run. Runs too long for an int are
// rejected rather than truncated.
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		d := int(s[i] - '0')
		if n > (maxInt-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

const maxInt = int(^uint(0) >> 1)
