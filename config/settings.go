package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the conference-wide configuration. It is loaded once at
// startup and handed to whatever needs it.
type Settings struct {
	ConferenceName     string
	BaseURL            string
	Port               string
	JWTSecret          string
	TalksOpen          bool
	PublicAttendeeList bool
	TicketsSecret      string
	ReviewScoreMin     int
	ReviewScoreMax     int
	AdminPassword      string
	CORSOrigins        []string

	// MarkdownAllowList is the path of a YAML allow-list overriding the
	// embedded default. Empty means the default.
	MarkdownAllowList  string
	MarkdownExtensions []string
	MarkdownHardWraps  bool
}

// LoadSettings reads Settings from the environment
func LoadSettings() (Settings, error) {
	s := Settings{
		ConferenceName:     GetEnv("WAFER_CONFERENCE_NAME", "Wafer"),
		BaseURL:            GetEnv("WAFER_BASE_URL", "http://localhost:8080"),
		Port:               GetEnv("PORT", "8080"),
		JWTSecret:          GetEnv("JWT_SECRET", ""),
		TalksOpen:          GetEnvBool("WAFER_TALKS_OPEN", true),
		PublicAttendeeList: GetEnvBool("WAFER_PUBLIC_ATTENDEE_LIST", true),
		TicketsSecret:      GetEnv("WAFER_TICKETS_SECRET", ""),
		ReviewScoreMin:     GetEnvInt("WAFER_REVIEW_SCORE_MIN", -2),
		ReviewScoreMax:     GetEnvInt("WAFER_REVIEW_SCORE_MAX", 2),
		AdminPassword:      GetEnv("ADMIN_PASSWORD", "admin123"),
		CORSOrigins:        GetEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001", "http://127.0.0.1:3000"}),
		MarkdownAllowList:  GetEnv("MARKDOWN_ALLOWLIST", ""),
		MarkdownExtensions: GetEnvList("MARKDOWN_EXTENSIONS", []string{"tables", "strikethrough", "linkify"}),
		MarkdownHardWraps:  GetEnvBool("MARKDOWN_HARD_WRAPS", false),
	}

	base, err := NormalizeBaseURL(s.BaseURL)
	if err != nil {
		return Settings{}, err
	}
	s.BaseURL = base

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings that cannot be defaulted
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ConferenceName) == "" {
		return fmt.Errorf("%w: WAFER_CONFERENCE_NAME is empty", ErrInvalidSettings)
	}
	if _, err := NormalizeBaseURL(s.BaseURL); err != nil {
		return err
	}
	if s.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrInvalidSettings)
	}
	if s.ReviewScoreMin > s.ReviewScoreMax {
		return fmt.Errorf("%w: review score range %d..%d is empty", ErrInvalidSettings, s.ReviewScoreMin, s.ReviewScoreMax)
	}
	return nil
}

// NormalizeBaseURL accepts scheme + host (optionally with a trailing slash)
// and returns it without the slash.
func NormalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: WAFER_BASE_URL: %v", ErrInvalidSettings, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: WAFER_BASE_URL must use http or https, got %q", ErrInvalidSettings, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: WAFER_BASE_URL has no host: %q", ErrInvalidSettings, raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return "", fmt.Errorf("%w: WAFER_BASE_URL must be scheme and domain only, got %q", ErrInvalidSettings, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
