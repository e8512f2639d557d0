package regex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCyrillicWordBoundary(t *testing.T) {
	re := MustCompile(`\bБЗД\b`, false)

	assert.True(t, re.MatchString("БЗД 3-Р ХОРОО"))
	assert.True(t, re.MatchString("УБ, БЗД"))
	assert.False(t, re.MatchString("АБЗД 3"))
	assert.False(t, re.MatchString("БЗДХ"))
}

func TestIgnoreCase(t *testing.T) {
	re := MustCompile(`байр`, true)
	assert.True(t, re.MatchString("15 БАЙР"))
}

func TestFindGroups(t *testing.T) {
	re := MustCompile(`([0-9]+)(?:-(Р))?`, false)

	assert.Equal(t, []string{"15-Р", "15", "Р"}, re.FindGroups("15-Р БАЙР"))
	assert.Equal(t, []string{"15", "15", ""}, re.FindGroups("15 БАЙР"))
	assert.Nil(t, re.FindGroups("БАЙР"))
}

func TestFindString(t *testing.T) {
	re := MustCompile(`[0-9]+`, false)

	got, ok := re.FindString("ТООТ 25")
	assert.True(t, ok)
	assert.Equal(t, "25", got)

	_, ok = re.FindString("ТООТ")
	assert.False(t, ok)
}

func TestReplaceAll(t *testing.T) {
	re := MustCompile(`([0-9]+)\s*-\s*Р`, false)
	assert.Equal(t, "3-Р ХОРОО 15-Р", re.ReplaceAll("3 - Р ХОРОО 15 -Р", "$1-Р"))
}

func TestEscape(t *testing.T) {
	re := MustCompile(Escape("7/2.Б"), false)
	assert.True(t, re.MatchString("7/2.Б БАЙР"))
	assert.False(t, re.MatchString("7/2XБ"))
}

func TestDigitRunTriedOnce(t *testing.T) {
	re := MustCompile(`(?<![0-9])([0-9]+)\s*-\s*Р`, false)
	long := strings.Repeat("9", 5000)

	assert.Equal(t, long+" 3-Р", re.ReplaceAll(long+" 3 - Р", "$1-Р"))
	assert.False(t, re.MatchString(long+"Х"))

	g := re.FindGroups("123456-Р")
	assert.Equal(t, "123456", g[1])
}
