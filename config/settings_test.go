package config

import (
	"errors"
	"testing"
)

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://za.pycon.org", "https://za.pycon.org", true},
		{"https://za.pycon.org/", "https://za.pycon.org", true},
		{"http://localhost:8080", "http://localhost:8080", true},
		{"ftp://example.com", "", false},
		{"example.com", "", false},
		{"https://example.com/conf", "", false},
		{"https://example.com/?x=1", "", false},
		{"https://user@example.com", "", false},
	}

	for _, tc := range cases {
		got, err := NormalizeBaseURL(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("NormalizeBaseURL(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("NormalizeBaseURL(%q) expected ErrInvalidSettings, got %v", tc.in, err)
		}
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("WAFER_CONFERENCE_NAME", "PyCon ZA")
	t.Setenv("WAFER_BASE_URL", "https://za.pycon.org/")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WAFER_TALKS_OPEN", "false")
	t.Setenv("MARKDOWN_EXTENSIONS", "tables, footnote,,")
	t.Setenv("WAFER_REVIEW_SCORE_MAX", "5")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.ConferenceName != "PyCon ZA" {
		t.Fatalf("unexpected conference name %q", s.ConferenceName)
	}
	if s.BaseURL != "https://za.pycon.org" {
		t.Fatalf("expected normalized base url, got %q", s.BaseURL)
	}
	if s.TalksOpen {
		t.Fatalf("expected talks to be closed")
	}
	if len(s.MarkdownExtensions) != 2 || s.MarkdownExtensions[1] != "footnote" {
		t.Fatalf("unexpected extensions %#v", s.MarkdownExtensions)
	}
	if s.ReviewScoreMin != -2 || s.ReviewScoreMax != 5 {
		t.Fatalf("unexpected score range %d..%d", s.ReviewScoreMin, s.ReviewScoreMax)
	}
}

func TestLoadSettingsRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("WAFER_BASE_URL", "https://example.com")

	if _, err := LoadSettings(); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSettingsValidateScoreRange(t *testing.T) {
	s := Settings{ConferenceName: "x", BaseURL: "https://example.com", JWTSecret: "s", ReviewScoreMin: 3, ReviewScoreMax: 1}
	if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}
