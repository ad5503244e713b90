package collector

import (
	"reflect"
	"testing"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name     string
		caption  string
		expected []string
	}{
		{
			name:     "simple tags",
			caption:  "Great day #sun #fun",
			expected: []string{"sun", "fun"},
		},
		{
			name:     "no tags",
			caption:  "just a caption",
			expected: []string{},
		},
		{
			name:     "duplicate tags collapse",
			caption:  "#sun and #sun again",
			expected: []string{"sun"},
		},
		{
			name:     "case folds",
			caption:  "#Sun #SUN #sun",
			expected: []string{"sun"},
		},
		{
			name:     "tag at start and punctuation boundary",
			caption:  "#morning, coffee! #espresso.",
			expected: []string{"morning", "espresso"},
		},
		{
			name:     "underscore and digits",
			caption:  "#no_filter #2026",
			expected: []string{"no_filter", "2026"},
		},
		{
			name:     "bare marker ignored",
			caption:  "just a # sign",
			expected: []string{},
		},
		{
			name:     "empty caption",
			caption:  "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHashtags(tt.caption)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ExtractHashtags(%q) = %v, want %v", tt.caption, got, tt.expected)
			}
		})
	}
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name     string
		caption  string
		expected []string
	}{
		{
			name:     "simple mentions",
			caption:  "with @alice and @bob_99",
			expected: []string{"alice", "bob_99"},
		},
		{
			name:     "dotted username keeps inner dots",
			caption:  "shot by @photo.studio.",
			expected: []string{"photo.studio"},
		},
		{
			name:     "case preserved",
			caption:  "thanks @Alice",
			expected: []string{"Alice"},
		},
		{
			name:     "duplicates collapse",
			caption:  "@alice @alice",
			expected: []string{"alice"},
		},
		{
			name:     "none",
			caption:  "email me at example dot com",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.caption)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ExtractMentions(%q) = %v, want %v", tt.caption, got, tt.expected)
			}
		})
	}
}
