// Package regex wraps regexp2 for the address rules.
//
// The rules need word boundaries that treat Cyrillic letters as word
// characters, which the standard library's RE2 engine does not do. Matching
// has no timeout, so the same input always gives the same answer; patterns
// must not backtrack more than linearly. Every helper is total: a match
// error is reported as "no match" so callers never have to handle one.
package regex

import "github.com/dlclark/regexp2"

// Regex is a compiled, read-only pattern safe for concurrent use.
type Regex struct {
	re *regexp2.Regexp
}

// MustCompile compiles expr and panics on a syntax error. Patterns are fixed
// at build time, so a bad one is a programming error.
func MustCompile(expr string, ignoreCase bool) *Regex {
	opts := regexp2.None
	if ignoreCase {
		opts = regexp2.IgnoreCase
	}
	return &Regex{re: regexp2.MustCompile(expr, opts)}
}

// Escape quotes every metacharacter in s.
func Escape(s string) string {
	return regexp2.Escape(s)
}

// String returns the source pattern.
func (r *Regex) String() string { return r.re.String() }

// MatchString reports whether s contains a match.
func (r *Regex) MatchString(s string) bool {
	ok, err := r.re.MatchString(s)
	return err == nil && ok
}

// FindGroups returns the whole match followed by every capture group, or nil
// when there is no match. Groups that did not participate are "".
func (r *Regex) FindGroups(s string) []string {
	m, err := r.re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i := range groups {
		out[i] = groups[i].String()
	}
	return out
}

// FindString returns the leftmost match, or "" and false.
func (r *Regex) FindString(s string) (string, bool) {
	m, err := r.re.FindStringMatch(s)
	if err != nil || m == nil {
		return "", false
	}
	return m.String(), true
}

// ReplaceAll substitutes every match with repl, which may reference groups
// as $1, $2. On failure the input is returned unchanged.
func (r *Regex) ReplaceAll(s, repl string) string {
	out, err := r.re.Replace(s, repl, -1, -1)
	if err != nil {
		return s
	}
	return out
}
