package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wafer-be/models"
)

func TestPages(t *testing.T) {
	h := newTestHandler(t)
	admin := createUser(t, h, "root", models.RoleAdmin)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)

	env := expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"content": "no name",
	}}), http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "name")

	env = expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"name": "About", "people": []string{"nobody"},
	}}), http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "people")

	env = expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"name": "About", "files": []string{"nothing"},
	}}), http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "files")

	var about PageData
	expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"name":    "About",
		"content": "We are **PyCon ZA** <script>alert(1)</script>",
		"people":  []string{alice.ID},
	}}), http.StatusCreated, &about)
	if !strings.Contains(about.ContentHTML, "<strong>PyCon ZA</strong>") || strings.Contains(about.ContentHTML, "<script") {
		t.Fatalf("content not sanitized: %q", about.ContentHTML)
	}
	if len(about.People) != 1 || about.People[0].Username != "alice" {
		t.Fatalf("unexpected people %+v", about.People)
	}

	var venue PageData
	expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"name": "Venue",
	}}), http.StatusCreated, &venue)

	var listed struct {
		Pages []PageSummary `json:"pages"`
	}
	expect(t, serve(t, h.ListPages, call{}), http.StatusOK, &listed)
	if len(listed.Pages) != 2 || listed.Pages[0].Name != "About" || listed.Pages[1].ID != venue.ID {
		t.Fatalf("unexpected pages %+v", listed.Pages)
	}

	vars := map[string]string{"id": about.ID}
	rec := serve(t, h.GetPage, call{vars: vars})
	if strings.Contains(rec.Body.String(), "alice@example.com") {
		t.Fatalf("page exposes people emails: %s", rec.Body.String())
	}
	var fetched PageData
	expect(t, rec, http.StatusOK, &fetched)
	if fetched.Name != "About" || fetched.ContentHTML != about.ContentHTML {
		t.Fatalf("unexpected page %+v", fetched.Page)
	}

	expect(t, serve(t, h.UpdatePage, call{method: http.MethodPut, user: admin, vars: vars, body: map[string]interface{}{
		"name": "About us", "content": "_hello_", "people": []string{bob.ID, alice.ID},
	}}), http.StatusOK, &fetched)
	if fetched.Name != "About us" || !strings.Contains(fetched.ContentHTML, "<em>hello</em>") {
		t.Fatalf("unexpected update %+v", fetched.Page)
	}
	if len(fetched.People) != 2 || fetched.People[0].Username != "alice" || fetched.People[1].Username != "bob" {
		t.Fatalf("people not replaced: %+v", fetched.People)
	}

	expect(t, serve(t, h.UpdatePage, call{method: http.MethodPut, user: admin, vars: vars, body: map[string]interface{}{
		"name": "About us", "people": []string{},
	}}), http.StatusOK, &fetched)
	if len(fetched.People) != 0 {
		t.Fatalf("people not cleared: %+v", fetched.People)
	}

	expect(t, serve(t, h.DeletePage, call{method: http.MethodDelete, user: admin, vars: vars}), http.StatusOK, nil)
	expect(t, serve(t, h.GetPage, call{vars: vars}), http.StatusNotFound, nil)
	expect(t, serve(t, h.DeletePage, call{method: http.MethodDelete, user: admin, vars: vars}), http.StatusNotFound, nil)
	expect(t, serve(t, h.UpdatePage, call{method: http.MethodPut, user: admin, vars: vars, body: map[string]interface{}{
		"name": "Gone",
	}}), http.StatusNotFound, nil)

	// The cached listing is dropped on writes
	expect(t, serve(t, h.ListPages, call{}), http.StatusOK, &listed)
	if len(listed.Pages) != 1 || listed.Pages[0].Name != "Venue" {
		t.Fatalf("stale pages after delete %+v", listed.Pages)
	}
}

func TestUploadPageFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	h := newTestHandler(t)
	admin := createUser(t, h, "root", models.RoleAdmin)
	page := models.Page{Name: "Venue"}
	if err := h.DB.Create(&page).Error; err != nil {
		t.Fatalf("create page: %v", err)
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	rec := httptest.NewRecorder()
	h.UploadPageFile(rec, uploadRequest(t, page.ID, "map.png", []byte("plain text, not an image")))
	env := expect(t, rec, http.StatusBadRequest, nil)
	if env.Error.Code != "INVALID_FILE" {
		t.Fatalf("error code = %q", env.Error.Code)
	}

	rec = httptest.NewRecorder()
	h.UploadPageFile(rec, uploadRequest(t, page.ID, "map.png", png))
	var file models.PageFile
	expect(t, rec, http.StatusCreated, &file)
	if file.Name != "Logo" || !strings.HasPrefix(file.URL, "https://za.pycon.org/uploads/pages/") {
		t.Fatalf("unexpected file %+v", file)
	}
	if _, err := os.Stat(filepath.Join("uploads", "pages", filepath.Base(file.URL))); err != nil {
		t.Fatalf("upload not written: %v", err)
	}

	var fetched PageData
	vars := map[string]string{"id": page.ID}
	expect(t, serve(t, h.GetPage, call{vars: vars}), http.StatusOK, &fetched)
	if len(fetched.Files) != 1 || fetched.Files[0].ID != file.ID || fetched.Files[0].URL != file.URL {
		t.Fatalf("file not linked: %+v", fetched.Files)
	}

	// An uploaded file can be linked from another page and outlives the first
	var other PageData
	expect(t, serve(t, h.CreatePage, call{method: http.MethodPost, user: admin, body: map[string]interface{}{
		"name": "Travel", "files": []string{file.ID},
	}}), http.StatusCreated, &other)
	if len(other.Files) != 1 || other.Files[0].ID != file.ID {
		t.Fatalf("file not shared: %+v", other.Files)
	}
	expect(t, serve(t, h.DeletePage, call{method: http.MethodDelete, user: admin, vars: vars}), http.StatusOK, nil)
	expect(t, serve(t, h.GetPage, call{vars: map[string]string{"id": other.ID}}), http.StatusOK, &other)
	if len(other.Files) != 1 {
		t.Fatalf("shared file lost with first page: %+v", other.Files)
	}

	rec = httptest.NewRecorder()
	h.UploadPageFile(rec, uploadRequest(t, "missing", "map.png", png))
	expect(t, rec, http.StatusNotFound, nil)
}
