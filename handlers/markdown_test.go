package handlers

import (
	"net/http"
	"strings"
	"testing"

	"wafer-be/markdown"
	"wafer-be/models"
)

func TestPreviewMarkdown(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)

	var out struct {
		HTML      string `json:"html"`
		AllowList string `json:"allowlist"`
	}
	expect(t, serve(t, h.PreviewMarkdown, call{method: http.MethodPost, user: alice, body: map[string]string{
		"text": "~~gone~~ <script>alert(1)</script>",
	}}), http.StatusOK, &out)
	if !strings.Contains(out.HTML, "<del>gone</del>") || strings.Contains(out.HTML, "<script") {
		t.Fatalf("unexpected preview %q", out.HTML)
	}
	if out.AllowList != h.Markdown.AllowList().Version {
		t.Fatalf("allowlist = %q", out.AllowList)
	}

	// Explicit options replace the defaults
	expect(t, serve(t, h.PreviewMarkdown, call{method: http.MethodPost, user: alice, body: map[string]interface{}{
		"text":    "~~kept~~",
		"options": map[string]interface{}{"extensions": []string{}},
	}}), http.StatusOK, &out)
	if strings.Contains(out.HTML, "<del>") {
		t.Fatalf("strikethrough applied without the extension: %q", out.HTML)
	}

	rec := serve(t, h.PreviewMarkdown, call{method: http.MethodPost, user: alice, body: map[string]interface{}{
		"text":    "hi",
		"options": map[string]interface{}{"extensions": []string{"emoji"}},
	}})
	env := expect(t, rec, http.StatusBadRequest, nil)
	if env.Error.Code != "INVALID_OPTIONS" {
		t.Fatalf("error code = %q", env.Error.Code)
	}
}

func TestGetAllowList(t *testing.T) {
	h := newTestHandler(t)

	var allow markdown.AllowList
	expect(t, serve(t, h.GetAllowList, call{}), http.StatusOK, &allow)
	if allow.Version == "" || !allow.AllowsTag("p") {
		t.Fatalf("unexpected allow-list %+v", allow)
	}
}
