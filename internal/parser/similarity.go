package parser

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Similarity scores two strings in [0, 1], 1 meaning identical.
type Similarity func(a, b string) float64

// Names accepted by SimilarityByName.
const (
	SimilarityLCS         = "lcs"
	SimilarityLevenshtein = "levenshtein"
	SimilarityJaroWinkler = "jaro_winkler"
)

// SimilarityByName returns the scorer registered under name. An empty name
// selects the LCS ratio.
func SimilarityByName(name string) (Similarity, error) {
	switch name {
	case "", SimilarityLCS:
		return LCSRatio, nil
	case SimilarityLevenshtein:
		return LevenshteinRatio, nil
	case SimilarityJaroWinkler:
		return JaroWinkler, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", name)
	}
}

// LCSRatio is 2*LCS(a, b) / (len(a)+len(b)) over runes.
//
// With insert and delete costing 1 and substitute costing 2, Wagner-Fischer
// yields the indel distance len(a)+len(b)-2*LCS, from which the ratio
// follows directly.
func LCSRatio(a, b string) float64 {
	ea, eb, total, ok := compactPair(a, b)
	if total == 0 {
		return 1
	}
	if !ok {
		return 0
	}
	d := smetrics.WagnerFischer(ea, eb, 1, 1, 2)
	return 1 - float64(d)/float64(total)
}

// LevenshteinRatio is 1 - distance/max(len) over runes.
func LevenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// JaroWinkler runs on compacted runes so multi-byte letters count once.
func JaroWinkler(a, b string) float64 {
	ea, eb, total, ok := compactPair(a, b)
	if total == 0 {
		return 1
	}
	if !ok || ea == "" || eb == "" {
		return 0
	}
	return smetrics.JaroWinkler(ea, eb, 0.7, 4)
}

// compactPair maps every distinct rune of a and b to one byte so byte
// oriented metrics see each letter as a single symbol. ok is false when the
// pair uses more than 256 distinct runes. total is the combined rune count.
func compactPair(a, b string) (string, string, int, bool) {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)

	codes := make(map[rune]byte, 32)
	encode := func(rs []rune) ([]byte, bool) {
		out := make([]byte, len(rs))
		for i, r := range rs {
			c, seen := codes[r]
			if !seen {
				if len(codes) > 255 {
					return nil, false
				}
				c = byte(len(codes))
				codes[r] = c
			}
			out[i] = c
		}
		return out, true
	}

	ea, ok := encode(ra)
	if !ok {
		return "", "", total, false
	}
	eb, ok := encode(rb)
	if !ok {
		return "", "", total, false
	}
	return string(ea), string(eb), total, true
}
