package util

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Spring Sale 2026", "spring-sale-2026"},
		{"The Matrix: Reloaded", "the-matrix-reloaded"},
		{"  Breaking -- News!  ", "breaking-news"},
		{"Café résumé", "cafe-resume"},
		{"Über München", "uber-munchen"},
		{"Новости дня", "novosti-dnia"},
		{"breaking/news:today", "breaking-news-today"},
		{"!@#$%^&*()", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugify_AlwaysValid(t *testing.T) {
	for _, input := range []string{"日本語のニュース", strings.Repeat("movie title ", 20), "a - b - c"} {
		got := Slugify(input)
		if got == "" || !IsValidSlug(got) {
			t.Errorf("Slugify(%q) = %q, want a non-empty valid slug", input, got)
		}
		if len(got) > MaxSlugLength {
			t.Errorf("Slugify(%q) length = %d, want <= %d", input, len(got), MaxSlugLength)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"the-matrix", true},
		{"episode-123", true},
		{"2026", true},
		{"", false},
		{"The-Matrix", false},
		{"the matrix", false},
		{"the_matrix", false},
		{"-matrix", false},
		{"matrix-", false},
		{"the--matrix", false},
		{strings.Repeat("a", MaxSlugLength+1), false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.input); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
