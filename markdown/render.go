// Package markdown turns untrusted markdown into HTML that is safe to embed
// in a page. Rendering is two independent stages: goldmark produces HTML,
// then an allow-list policy rebuilds it keeping only permitted elements and
// attributes.
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

var ErrUnknownExtension = errors.New("unknown markdown extension")

// Options are handed to the parse stage unchanged. The sanitize stage does
// not look at them.
type Options struct {
	Extensions []string `json:"extensions,omitempty"`
	HardWraps  bool     `json:"hard_wraps,omitempty"`
	XHTML      bool     `json:"xhtml,omitempty"`
}

var extensions = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
}

// Renderer is immutable after construction and safe for concurrent use.
type Renderer struct {
	allow    AllowList
	policy   *bluemonday.Policy
	defaults Options
}

// NewRenderer builds a renderer enforcing allow. defaults are the options
// used by RenderDefault; they are checked here so a bad configuration fails
// at startup.
func NewRenderer(allow AllowList, defaults Options) (*Renderer, error) {
	if err := allow.Validate(); err != nil {
		return nil, err
	}
	if _, err := newEngine(defaults); err != nil {
		return nil, err
	}
	defaults.Extensions = append([]string(nil), defaults.Extensions...)
	return &Renderer{
		allow:    allow.Clone(),
		policy:   allow.Policy(),
		defaults: defaults,
	}, nil
}

// Render converts text to sanitized HTML. The only error is an option the
// parse stage does not understand.
func (r *Renderer) Render(text string, opts Options) (string, error) {
	engine, err := newEngine(opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := engine.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("markdown parse: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// RenderDefault renders text with the renderer's default options.
func (r *Renderer) RenderDefault(text string) (string, error) {
	return r.Render(text, r.defaults)
}

// HTML is RenderDefault typed for direct use in html/template.
func (r *Renderer) HTML(text string) (template.HTML, error) {
	out, err := r.RenderDefault(text)
	return template.HTML(out), err
}

// Sanitize runs only the allow-list stage. It is idempotent.
func (r *Renderer) Sanitize(unsafe string) string {
	return r.policy.Sanitize(unsafe)
}

// AllowList returns a copy of the policy in force.
func (r *Renderer) AllowList() AllowList {
	return r.allow.Clone()
}

func (r *Renderer) Defaults() Options {
	d := r.defaults
	d.Extensions = append([]string(nil), r.defaults.Extensions...)
	return d
}

func newEngine(opts Options) (goldmark.Markdown, error) {
	exts, err := collectExtensions(opts.Extensions)
	if err != nil {
		return nil, err
	}

	// Raw HTML is passed through on purpose: the policy is the only
	// safety boundary and it sees everything.
	rendererOptions := []renderer.Option{html.WithUnsafe()}
	if opts.HardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}
	if opts.XHTML {
		rendererOptions = append(rendererOptions, html.WithXHTML())
	}

	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOptions...),
	), nil
}

func collectExtensions(names []string) ([]goldmark.Extender, error) {
	var exts []goldmark.Extender
	seen := map[goldmark.Extender]struct{}{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		ext, ok := extensions[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	return exts, nil
}
