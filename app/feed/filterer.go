package feed

import (
	"regexp"
	"strings"
)

var matchAllSentinels = map[string]bool{
	"all":        true,
	"everything": true,
}

// TitleFilter decides whether an entry title matches the user pattern.
// Matching is case-sensitive and unanchored, so "Foo" behaves like ".*Foo.*".
type TitleFilter struct {
	pattern string
	regex   *regexp.Regexp
}

func CompileTitleFilter(pattern string) (*TitleFilter, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || matchAllSentinels[trimmed] {
		return &TitleFilter{pattern: trimmed}, nil
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}

	return &TitleFilter{pattern: pattern, regex: regex}, nil
}

// MatchTitle compiles pattern and tests title in one step.
func MatchTitle(pattern, title string) (bool, error) {
	filter, err := CompileTitleFilter(pattern)
	if err != nil {
		return false, err
	}
	return filter.Matches(title), nil
}

func (f *TitleFilter) Matches(title string) bool {
	if f.regex == nil {
		return true
	}
	return f.regex.MatchString(title)
}

func (f *TitleFilter) MatchesAll() bool {
	return f.regex == nil
}

func (f *TitleFilter) String() string {
	if f.MatchesAll() {
		return "all"
	}
	return f.regex.String()
}
