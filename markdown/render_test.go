package markdown

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"
)

var hostileInputs = []string{
	"",
	"   \n\n",
	"# Hello\n\n<img src=x onerror=alert(1)>",
	"**bold** and [link](http://example.com)",
	"<script>alert(1)</script>",
	"<ScRiPt>alert(1)</sCrIpT>",
	"<SCRIPT SRC=//evil.example/x.js></SCRIPT>",
	"text <scr<script>ipt>alert(1)</script>",
	"&lt;script&gt;alert(1)&lt;/script&gt;",
	"<a href=\"javascript:alert(1)\">click</a>",
	"[click](javascript:alert(1))",
	"<div onclick=\"steal()\" ONMOUSEOVER=\"steal()\" style=\"color:red\">hi</div>",
	"<img src=\"x\" on&#101;rror=\"alert(1)\">",
	"<iframe src=\"http://evil.example\"></iframe>after",
	"<svg><g onload=alert(1)></g></svg>",
	"<p><b><i>unclosed",
	"</div></div><p>stray closers",
	"<table><tr><td onclick=x>cell</td></tr></table>",
	"| a | b |\n|---|---|\n| <span onmouseover=x>1</span> | 2 |",
	"```html\n<script>alert(1)</script>\n```",
	"`<script>`",
	"* [ ] task\n* [x] done",
	"Footnote[^1].\n\n[^1]: <em onclick=x>note</em>",
	"Ünïcödé ✓ 漢字 \u202e evil",
	"<<<>>>**[[",
	"<a href=\"http://example.com\" target=\"_blank\" rel=\"opener\">x</a>",
	"<IMG SRC=\"jav&#x09;ascript:alert('XSS');\">",
	"<style>body{display:none}</style>visible",
	"<math><mi xlink:href=\"javascript:alert(1)\">x</mi></math>",
}

var allExtensions = Options{Extensions: []string{"gfm", "tasklist", "definition", "footnote", "typographer"}}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultAllowList(), Options{Extensions: []string{"tables", "strikethrough", "linkify"}})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

// assertAllowed walks the HTML and fails on any element or attribute that
// the allow-list does not permit.
func assertAllowed(t *testing.T, allow AllowList, out string) {
	t.Helper()
	z := html.NewTokenizer(strings.NewReader(out))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				t.Fatalf("tokenize %q: %v", out, z.Err())
			}
			return
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			tok := z.Token()
			if !allow.AllowsTag(tok.Data) {
				t.Fatalf("element %q survived in %q", tok.Data, out)
			}
			for _, attr := range tok.Attr {
				if !allow.AllowsAttr(tok.Data, attr.Key) {
					t.Fatalf("attribute %q on %q survived in %q", attr.Key, tok.Data, out)
				}
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
					t.Fatalf("script url survived in %q", out)
				}
			}
		}
	}
}

func TestRenderNeverEmitsScript(t *testing.T) {
	r := newTestRenderer(t)
	for _, opts := range []Options{{}, r.Defaults(), allExtensions} {
		for _, in := range hostileInputs {
			out, err := r.Render(in, opts)
			if err != nil {
				t.Fatalf("Render(%q): %v", in, err)
			}
			if strings.Contains(strings.ToLower(out), "<script") {
				t.Fatalf("script tag survived for %q: %q", in, out)
			}
		}
	}
}

func TestRenderOnlyAllowListedMarkup(t *testing.T) {
	r := newTestRenderer(t)
	for _, opts := range []Options{{}, r.Defaults(), allExtensions} {
		for _, in := range hostileInputs {
			out, err := r.Render(in, opts)
			if err != nil {
				t.Fatalf("Render(%q): %v", in, err)
			}
			assertAllowed(t, r.AllowList(), out)
		}
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	r := newTestRenderer(t)
	for _, in := range hostileInputs {
		rendered, err := r.Render(in, allExtensions)
		if err != nil {
			t.Fatalf("Render(%q): %v", in, err)
		}
		once := r.Sanitize(rendered)
		twice := r.Sanitize(once)
		if once != twice {
			t.Fatalf("second sanitize changed output for %q:\n%q\n%q", in, once, twice)
		}
	}
}

func TestRenderEmptyInput(t *testing.T) {
	r := newTestRenderer(t)
	for _, in := range []string{"", " ", "\n\n\t"} {
		out, err := r.RenderDefault(in)
		if err != nil {
			t.Fatalf("RenderDefault(%q): %v", in, err)
		}
		if strings.TrimSpace(out) != "" {
			t.Fatalf("expected blank output for %q, got %q", in, out)
		}
	}
}

func TestRenderHeadingAndImageHandler(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderDefault("# Hello\n\n<img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatalf("RenderDefault: %v", err)
	}
	if !strings.Contains(out, `<h1 id="hello">Hello</h1>`) {
		t.Fatalf("expected heading, got %q", out)
	}
	if strings.Contains(out, "onerror") {
		t.Fatalf("onerror survived: %q", out)
	}
	if !strings.Contains(out, "<img") {
		t.Fatalf("expected img to be kept without its handler, got %q", out)
	}
}

func TestRenderImageDroppedWhenNotAllowed(t *testing.T) {
	allow := DefaultAllowList()
	var tags []string
	for _, tag := range allow.Tags {
		if tag != "img" {
			tags = append(tags, tag)
		}
	}
	allow.Tags = tags
	delete(allow.Attributes, "img")

	r, err := NewRenderer(allow, Options{})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	out, err := r.RenderDefault("# Hello\n\n<img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatalf("RenderDefault: %v", err)
	}
	if strings.Contains(out, "<img") || strings.Contains(out, "onerror") {
		t.Fatalf("img should be stripped: %q", out)
	}
}

func TestRenderBoldAndLink(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderDefault("**bold** and [link](http://example.com)")
	if err != nil {
		t.Fatalf("RenderDefault: %v", err)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Fatalf("missing strong: %q", out)
	}
	if !strings.Contains(out, `<a href="http://example.com">link</a>`) {
		t.Fatalf("missing link: %q", out)
	}
}

func TestRenderStripsDisallowedKeepingText(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderDefault("<article><mark>kept text</mark></article>")
	if err != nil {
		t.Fatalf("RenderDefault: %v", err)
	}
	if !strings.Contains(out, "kept text") {
		t.Fatalf("text of stripped element lost: %q", out)
	}
	if strings.Contains(out, "<article") || strings.Contains(out, "<mark") {
		t.Fatalf("disallowed element kept: %q", out)
	}
}

func TestRenderOptionsReachParser(t *testing.T) {
	r := newTestRenderer(t)
	src := "| a | b |\n|---|---|\n| 1 | 2 |"

	plain, err := r.Render(src, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(plain, "<table>") {
		t.Fatalf("table rendered without the extension: %q", plain)
	}

	withTables, err := r.Render(src, Options{Extensions: []string{"Tables"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(withTables, "<table>") || !strings.Contains(withTables, "<td>1</td>") {
		t.Fatalf("expected a table, got %q", withTables)
	}

	wrapped, err := r.Render("one\ntwo", Options{HardWraps: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(wrapped, "<br") {
		t.Fatalf("expected hard wrap, got %q", wrapped)
	}
}

func TestRenderUnknownExtension(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.Render("x", Options{Extensions: []string{"tables", "mermaid"}})
	if !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("expected ErrUnknownExtension, got %v", err)
	}
	if !strings.Contains(err.Error(), "mermaid") {
		t.Fatalf("error should name the extension: %v", err)
	}

	if _, err := NewRenderer(DefaultAllowList(), Options{Extensions: []string{"nope"}}); !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("expected NewRenderer to reject bad defaults, got %v", err)
	}
}

func TestRenderConcurrent(t *testing.T) {
	r := newTestRenderer(t)
	want, err := r.RenderDefault(hostileInputs[2])
	if err != nil {
		t.Fatalf("RenderDefault: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.RenderDefault(hostileInputs[2])
			if err != nil || got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("concurrent render mismatch: %q", got)
	}
}

func TestHTMLReturnsTemplateHTML(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.HTML("_hi_")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if string(out) != "<p><em>hi</em></p>\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRendererAllowListIsACopy(t *testing.T) {
	allow := DefaultAllowList()
	r, err := NewRenderer(allow, Options{Extensions: []string{"tables"}})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	// Neither the list handed in nor the one handed out reaches the renderer
	allow.Tags[0] = "script"
	got := r.AllowList()
	first := got.Tags[0]
	got.Tags[0] = "script"
	got.Attributes["a"] = append(got.Attributes["a"], "onclick")
	for el, attrs := range got.Attributes {
		if len(attrs) > 0 {
			got.Attributes[el][0] = "onerror"
		}
	}

	fresh := r.AllowList()
	if fresh.AllowsTag("script") || !fresh.AllowsTag(first) {
		t.Fatalf("renderer tags changed through a returned copy: %v", fresh.Tags)
	}
	if fresh.AllowsAttr("a", "onclick") || fresh.AllowsAttr("a", "onerror") {
		t.Fatalf("renderer attributes changed through a returned copy: %v", fresh.Attributes)
	}
	if !fresh.AllowsAttr("a", "href") {
		t.Fatalf("href should still be allowed on a")
	}

	opts := r.Defaults()
	opts.Extensions[0] = "emoji"
	if _, err := r.RenderDefault("x"); err != nil {
		t.Fatalf("defaults changed through a returned copy: %v", err)
	}
}
