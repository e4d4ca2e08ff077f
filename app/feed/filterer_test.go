package feed

import (
	"errors"
	"testing"
)

func TestTitleFilter_MatchAllSentinels(t *testing.T) {
	titles := []string{"", "The Foo Remix", "anything at all", "ALL CAPS"}

	for _, pattern := range []string{"all", "everything", "", "  all  "} {
		filter, err := CompileTitleFilter(pattern)
		if err != nil {
			t.Fatalf("Pattern %q: expected no error, got: %v", pattern, err)
		}
		if !filter.MatchesAll() {
			t.Errorf("Pattern %q: expected match-all filter", pattern)
		}
		for _, title := range titles {
			if !filter.Matches(title) {
				t.Errorf("Pattern %q: expected title %q to match", pattern, title)
			}
		}
	}
}

func TestTitleFilter_Substring(t *testing.T) {
	tests := []struct {
		pattern  string
		title    string
		expected bool
	}{
		{"Foo", "The Foo Remix", true},
		{"Foo", "Bar Remix", false},
		{"Foo", "Foo", true},
		{"Remix", "The Foo Remix", true},
		{"foo", "The Foo Remix", false}, // case-sensitive
		{"Sonic.*Zone", "Sonic 3 'Ice Cap Zone'", true},
		{"^Sonic", "Super Sonic", false},
		{"allegro", "Allegro Moderato", false},
	}

	for _, tt := range tests {
		result, err := MatchTitle(tt.pattern, tt.title)
		if err != nil {
			t.Errorf("MatchTitle(%q, %q): unexpected error: %v", tt.pattern, tt.title, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("MatchTitle(%q, %q): expected %t, got %t", tt.pattern, tt.title, tt.expected, result)
		}
	}
}

func TestTitleFilter_SentinelIsExact(t *testing.T) {
	filter, err := CompileTitleFilter("allegro")
	if err != nil {
		t.Fatal(err)
	}
	if filter.MatchesAll() {
		t.Error("Expected 'allegro' to be a regular pattern, not the match-all sentinel")
	}
}

func TestTitleFilter_InvalidPattern(t *testing.T) {
	_, err := CompileTitleFilter("Sonic (")
	if err == nil {
		t.Fatal("Expected error for malformed regular expression")
	}
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern, got: %v", err)
	}

	var patternErr *InvalidPatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("Expected *InvalidPatternError, got: %T", err)
	}
	if patternErr.Pattern != "Sonic (" {
		t.Errorf("Expected pattern 'Sonic (', got '%s'", patternErr.Pattern)
	}
}

func TestTitleFilter_String(t *testing.T) {
	all, _ := CompileTitleFilter("everything")
	if all.String() != "all" {
		t.Errorf("Expected 'all', got '%s'", all.String())
	}

	sonic, _ := CompileTitleFilter("Sonic")
	if sonic.String() != "Sonic" {
		t.Errorf("Expected 'Sonic', got '%s'", sonic.String())
	}
}
