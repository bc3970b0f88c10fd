// Package templates exposes the conference settings to html/template and
// text/template rendering. Nothing here reads the environment: the site
// context is built from config.Settings and passed in.
package templates

import (
	"html/template"
	"net/url"
	"strings"

	"wafer-be/config"
	"wafer-be/markdown"
)

// SiteContext is what every template may know about the site
type SiteContext struct {
	ConferenceName string `json:"conference_name"`
	BaseURL        string `json:"base_url"`
}

func NewSiteContext(settings config.Settings) SiteContext {
	return SiteContext{
		ConferenceName: settings.ConferenceName,
		BaseURL:        strings.TrimRight(settings.BaseURL, "/"),
	}
}

// AbsoluteURL joins path onto the base URL. Absolute URLs are returned
// unchanged.
func (s SiteContext) AbsoluteURL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if path == "" {
		return s.BaseURL + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.BaseURL + path
}

// Values is the context-processor view of the site, merged into template
// data under these keys.
func (s SiteContext) Values() map[string]interface{} {
	return map[string]interface{}{
		"WAFER_CONFERENCE_NAME": s.ConferenceName,
		"WAFER_BASE_URL":        s.BaseURL,
	}
}

// FuncMap provides conference_name, base_url, absolute_url and markdown.
// renderer may be nil, in which case markdown escapes its input.
func FuncMap(site SiteContext, renderer *markdown.Renderer) template.FuncMap {
	return template.FuncMap{
		"conference_name": func() string { return site.ConferenceName },
		"base_url":        func() string { return site.BaseURL },
		"absolute_url":    site.AbsoluteURL,
		"markdown": func(text string) (template.HTML, error) {
			if renderer == nil {
				return template.HTML(template.HTMLEscapeString(text)), nil
			}
			return renderer.HTML(text)
		},
	}
}

// Merge copies the site values into data without overwriting keys the
// caller set.
func Merge(site SiteContext, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+2)
	for k, v := range site.Values() {
		out[k] = v
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}
