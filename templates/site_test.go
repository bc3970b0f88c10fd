package templates

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"wafer-be/config"
	"wafer-be/markdown"
)

func testSite() SiteContext {
	return NewSiteContext(config.Settings{ConferenceName: "PyCon ZA", BaseURL: "https://za.pycon.org/"})
}

func TestNewSiteContext(t *testing.T) {
	site := testSite()
	if site.ConferenceName != "PyCon ZA" || site.BaseURL != "https://za.pycon.org" {
		t.Fatalf("unexpected site %+v", site)
	}
	values := site.Values()
	if values["WAFER_CONFERENCE_NAME"] != "PyCon ZA" || values["WAFER_BASE_URL"] != "https://za.pycon.org" {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestAbsoluteURL(t *testing.T) {
	site := testSite()
	cases := map[string]string{
		"":                      "https://za.pycon.org/",
		"/talks/1/":             "https://za.pycon.org/talks/1/",
		"users/alice":           "https://za.pycon.org/users/alice",
		"http://other.example/": "http://other.example/",
	}
	for in, want := range cases {
		if got := site.AbsoluteURL(in); got != want {
			t.Fatalf("AbsoluteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFuncMapInTemplate(t *testing.T) {
	renderer, err := markdown.NewRenderer(markdown.DefaultAllowList(), markdown.Options{})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	tmpl := template.Must(template.New("page").Funcs(FuncMap(testSite(), renderer)).Parse(
		`<title>{{conference_name}}</title><a href="{{absolute_url "/talks/"}}">talks</a>{{markdown .Abstract}}`,
	))

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]string{"Abstract": "**Go** <script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<title>PyCon ZA</title>") {
		t.Fatalf("missing conference name: %q", out)
	}
	if !strings.Contains(out, `href="https://za.pycon.org/talks/"`) {
		t.Fatalf("missing absolute url: %q", out)
	}
	if !strings.Contains(out, "<strong>Go</strong>") || strings.Contains(out, "<script") {
		t.Fatalf("markdown not rendered safely: %q", out)
	}
}

func TestFuncMapWithoutRenderer(t *testing.T) {
	tmpl := template.Must(template.New("x").Funcs(FuncMap(testSite(), nil)).Parse(`{{base_url}} {{markdown .}}`))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, "<b>x</b>"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if buf.String() != "https://za.pycon.org &lt;b&gt;x&lt;/b&gt;" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestMerge(t *testing.T) {
	data := Merge(testSite(), map[string]interface{}{"WAFER_BASE_URL": "override", "talk": 1})
	if data["WAFER_BASE_URL"] != "override" || data["WAFER_CONFERENCE_NAME"] != "PyCon ZA" || data["talk"] != 1 {
		t.Fatalf("unexpected merge %v", data)
	}
}
