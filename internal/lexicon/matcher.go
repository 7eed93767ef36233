package lexicon

import (
	"regexp"
	"strconv"
	"strings"
)

// Matcher reports whether a phrase occurs in already-lowercased text.
type Matcher interface {
	Match(text string) bool
}

// NumberMatcher is a Matcher that also yields the numeric captures of its
// first match, in capture order.
type NumberMatcher interface {
	Matcher
	Numbers(text string) []float64
}

// Stripper removes every occurrence of its phrase from text.
type Stripper interface {
	Strip(text string) string
}

// PatternMatcher is the regexp-backed implementation of Matcher,
// NumberMatcher and Stripper. Patterns are compiled case-insensitively.
type PatternMatcher struct {
	re *regexp.Regexp
}

func Pattern(expr string) *PatternMatcher {
	return &PatternMatcher{re: regexp.MustCompile(`(?i)` + expr)}
}

func (m *PatternMatcher) Match(text string) bool {
	return m.re.MatchString(text)
}

func (m *PatternMatcher) Numbers(text string) []float64 {
	groups := m.re.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}
	var nums []float64
	for _, g := range groups[1:] {
		if v, err := strconv.ParseFloat(g, 64); err == nil {
			nums = append(nums, v)
		}
	}
	return nums
}

func (m *PatternMatcher) Strip(text string) string {
	return m.re.ReplaceAllString(text, "")
}

func (m *PatternMatcher) String() string {
	return m.re.String()
}

// MatchAny reports whether any matcher hits text.
func MatchAny(matchers []Matcher, text string) bool {
	for _, m := range matchers {
		if m.Match(text) {
			return true
		}
	}
	return false
}

// Phrases is a literal, case-sensitive substring Matcher. Useful for test
// lexicons that do not want regexp semantics.
type Phrases []string

func (p Phrases) Match(text string) bool {
	for _, s := range p {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}
