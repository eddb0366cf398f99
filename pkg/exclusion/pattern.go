// Package exclusion decides whether an item participates in caching at all.
// Patterns come from host configuration as newline-delimited text and are
// compiled into matcher lists on every evaluation, so settings changes take
// effect immediately.
package exclusion

import (
	"strings"

	"github.com/gobwas/glob"
)

// commentMarker starts a comment line in pattern list text.
const commentMarker = "#"

// Rule is a single compiled exclusion pattern.
// Four forms are supported:
//   - exact:     "page:home" matches only that string
//   - prefix:    "session:*" matches anything starting with "session:"
//   - match-all: "*" matches everything
//   - glob:      "frag:*:object-1*:*" is compiled with full glob semantics
type Rule struct {
	raw    string
	prefix string
	all    bool
	g      glob.Glob
}

// Compile parses a single pattern into a Rule.
// Returns false when the pattern is empty or fails to compile.
func Compile(pattern string) (Rule, bool) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Rule{}, false
	}

	// A bare wildcard disables caching for everything the list guards.
	if pattern == "*" {
		return Rule{raw: pattern, all: true}, true
	}

	// Prefix fast path: single trailing wildcard, no other metacharacters.
	if strings.HasSuffix(pattern, "*") {
		head := pattern[:len(pattern)-1]
		if !strings.ContainsAny(head, "*?[]{}\\") {
			return Rule{raw: pattern, prefix: head}, true
		}
	}

	if strings.ContainsAny(pattern, "*?[]{}\\") {
		g, err := glob.Compile(pattern)
		if err != nil {
			return Rule{}, false
		}
		return Rule{raw: pattern, g: g}, true
	}

	// Exact match.
	return Rule{raw: pattern}, true
}

// Matches reports whether s matches the rule.
func (r Rule) Matches(s string) bool {
	switch {
	case r.all:
		return true
	case r.g != nil:
		return r.g.Match(s)
	case r.prefix != "":
		return strings.HasPrefix(s, r.prefix)
	default:
		return s == r.raw
	}
}

// String returns the original pattern text.
func (r Rule) String() string {
	return r.raw
}

// RuleList is an ordered list of compiled exclusion rules.
type RuleList []Rule

// ParseList compiles newline-delimited pattern text into a RuleList.
// Blank lines and lines starting with "#" are ignored. Patterns that fail
// to compile are skipped rather than failing the whole list.
func ParseList(text string) RuleList {
	var rules RuleList
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}
		if r, ok := Compile(line); ok {
			rules = append(rules, r)
		}
	}
	return rules
}

// Matches reports whether any rule in the list matches s.
func (l RuleList) Matches(s string) bool {
	for _, r := range l {
		if r.Matches(s) {
			return true
		}
	}
	return false
}

// MatchesSubstring reports whether any rule's raw text occurs inside s.
// Used for content-body exclusions, where patterns are plain substrings of
// the rendered markup rather than key globs.
func (l RuleList) MatchesSubstring(s string) bool {
	for _, r := range l {
		if r.raw != "" && strings.Contains(s, r.raw) {
			return true
		}
	}
	return false
}
