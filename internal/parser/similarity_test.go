package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLCSRatio(t *testing.T) {
	assert.Equal(t, 1.0, LCSRatio("", ""))
	assert.Equal(t, 1.0, LCSRatio("БАЯНЗҮРХ", "БАЯНЗҮРХ"))
	assert.Equal(t, 0.0, LCSRatio("АБ", ""))
	assert.Equal(t, 0.0, LCSRatio("АБ", "ВГ"))
	assert.InDelta(t, 16.0/17.0, LCSRatio("БАЯНЗҮРКХ", "БАЯНЗҮРХ"), 1e-9)
	assert.InDelta(t, 6.0/7.0, LCSRatio("БЗД3", "БЗД"), 1e-9)
	assert.InDelta(t, 0.5, LCSRatio("ABCD", "ABXY"), 1e-9)
}

func TestLCSRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"БАЯНГОЛ", "БЯНГОЛ"},
		{"SUKHBAATAR", "SUHBATAR"},
		{"ХАН-УУЛ", "ХАНУЛ"},
	}
	for _, p := range pairs {
		assert.InDelta(t, LCSRatio(p[0], p[1]), LCSRatio(p[1], p[0]), 1e-12)
	}
}

func TestLCSRatio_TooManyDistinctRunes(t *testing.T) {
	var sb strings.Builder
	for r := rune(0x4E00); r < 0x4E00+300; r++ {
		sb.WriteRune(r)
	}
	assert.Equal(t, 0.0, LCSRatio(sb.String(), "А"))
}

func TestLevenshteinRatio(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.InDelta(t, 2.0/3.0, LevenshteinRatio("ABC", "ABD"), 1e-9)
	assert.InDelta(t, 7.0/8.0, LevenshteinRatio("БАЯНЗҮРХ", "БАЯНЗУРХ"), 1e-9)
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, JaroWinkler("", ""))
	assert.Equal(t, 0.0, JaroWinkler("АБ", ""))
	assert.InDelta(t, 1.0, JaroWinkler("БАЯНГОЛ", "БАЯНГОЛ"), 1e-9)
	assert.Greater(t, JaroWinkler("БАЯНГОЛ", "БАЯНГАЛ"), 0.9)
}

func TestSimilarityByName(t *testing.T) {
	for _, name := range []string{"", SimilarityLCS, SimilarityLevenshtein, SimilarityJaroWinkler} {
		s, err := SimilarityByName(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0, s("БЗД", "БЗД"), 1e-9)
	}

	_, err := SimilarityByName("hamming")
	assert.Error(t, err)
}
