package handlers

import (
	"net/http"
	"strings"
	"testing"

	"wafer-be/config"
	"wafer-be/models"
)

func submitTalk(t *testing.T, h *Handler, author *models.User, body map[string]interface{}) TalkDetail {
	t.Helper()
	var talk TalkDetail
	expect(t, serve(t, h.CreateTalk, call{method: http.MethodPost, user: author, body: body}), http.StatusCreated, &talk)
	return talk
}

func TestCreateTalkRendersAbstract(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)

	talk := submitTalk(t, h, alice, map[string]interface{}{
		"title":         "Hello World",
		"abstract":      "**bold** <script>alert(1)</script>",
		"notes":         "needs a projector",
		"private_notes": "ignored for non-admins",
		"authors":       []string{bob.ID},
	})

	if talk.Status != models.TalkSubmitted || talk.Slug != "hello-world" {
		t.Fatalf("unexpected talk %+v", talk.TalkSummary)
	}
	if !strings.Contains(talk.AbstractHTML, "<strong>bold</strong>") || strings.Contains(talk.AbstractHTML, "<script") {
		t.Fatalf("abstract not sanitized: %q", talk.AbstractHTML)
	}
	if talk.Authors != "alice & bob" || len(talk.AuthorList) != 2 {
		t.Fatalf("unexpected authors %q %+v", talk.Authors, talk.AuthorList)
	}
	if talk.CorrespondingAuthor.Username != "alice" || talk.Notes != "needs a projector" || talk.PrivateNotes != "" {
		t.Fatalf("unexpected detail %+v", talk)
	}
	if !talk.CanEdit {
		t.Fatalf("author should be able to edit")
	}
}

func TestCreateTalkUnknownAuthor(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)

	rec := serve(t, h.CreateTalk, call{method: http.MethodPost, user: alice, body: map[string]interface{}{
		"title":    "T",
		"abstract": "A",
		"authors":  []string{"nobody"},
	}})
	env := expect(t, rec, http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "authors")
}

func TestCreateTalkWhenClosed(t *testing.T) {
	h := newTestHandler(t, func(s *config.Settings) { s.TalksOpen = false })
	alice := createUser(t, h, "alice", models.RoleUser)
	admin := createUser(t, h, "root", models.RoleAdmin)
	body := map[string]interface{}{"title": "T", "abstract": "A"}

	expect(t, serve(t, h.CreateTalk, call{method: http.MethodPost, user: alice, body: body}), http.StatusForbidden, nil)
	submitTalk(t, h, admin, body)
}

func TestCreateTalkDisabledType(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)

	closed := models.TalkType{Name: "Keynote", DisableSubmission: true}
	open := models.TalkType{Name: "Lightning Talk"}
	if err := h.DB.Create(&closed).Error; err != nil {
		t.Fatalf("create type: %v", err)
	}
	if err := h.DB.Create(&open).Error; err != nil {
		t.Fatalf("create type: %v", err)
	}

	rec := serve(t, h.CreateTalk, call{method: http.MethodPost, user: alice, body: map[string]interface{}{
		"title": "T", "abstract": "A", "talk_type_id": closed.ID,
	}})
	env := expect(t, rec, http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "talk_type_id")

	talk := submitTalk(t, h, alice, map[string]interface{}{
		"title": "T", "abstract": "A", "talk_type_id": open.ID,
	})
	if talk.TalkType != "Lightning Talk" || len(talk.CSSClasses) != 1 || talk.CSSClasses[0] != "talk-type-lightning-talk" {
		t.Fatalf("unexpected talk type %+v", talk.TalkSummary)
	}
}

func TestTalkVisibility(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)
	reviewer := createUser(t, h, "rev", models.RoleReviewer)
	admin := createUser(t, h, "root", models.RoleAdmin)

	talk := submitTalk(t, h, alice, map[string]interface{}{"title": "Pending", "abstract": "A"})
	vars := map[string]string{"id": talk.ID}

	expect(t, serve(t, h.GetTalk, call{vars: vars}), http.StatusNotFound, nil)
	expect(t, serve(t, h.GetTalk, call{vars: vars, user: bob}), http.StatusNotFound, nil)
	expect(t, serve(t, h.GetTalk, call{vars: vars, user: alice}), http.StatusOK, nil)
	expect(t, serve(t, h.GetTalk, call{vars: vars, user: reviewer}), http.StatusOK, nil)

	type listing struct {
		Talks []TalkSummary `json:"talks"`
	}
	var list listing
	expect(t, serve(t, h.ListTalks, call{}), http.StatusOK, &list)
	if len(list.Talks) != 0 {
		t.Fatalf("anonymous listing should be empty, got %+v", list.Talks)
	}
	list = listing{}
	expect(t, serve(t, h.ListTalks, call{user: alice}), http.StatusOK, &list)
	if len(list.Talks) != 1 {
		t.Fatalf("author should see their own talk, got %+v", list.Talks)
	}

	rec := serve(t, h.UpdateTalkStatus, call{method: http.MethodPut, user: admin, vars: vars, body: map[string]string{"status": "A"}})
	var accepted TalkDetail
	expect(t, rec, http.StatusOK, &accepted)
	if accepted.Status != models.TalkAccepted || accepted.StatusLabel != "Accepted" {
		t.Fatalf("unexpected status %q", accepted.Status)
	}

	var public TalkDetail
	expect(t, serve(t, h.GetTalk, call{vars: vars}), http.StatusOK, &public)
	if public.Notes != "" || public.CanEdit {
		t.Fatalf("anonymous view leaks author fields: %+v", public)
	}

	list = listing{}
	expect(t, serve(t, h.ListTalks, call{target: "/?status=A"}), http.StatusOK, &list)
	if len(list.Talks) != 1 || list.Talks[0].Title != "Pending" {
		t.Fatalf("unexpected public listing %+v", list.Talks)
	}

	expect(t, serve(t, h.ListTalks, call{target: "/?status=Z"}), http.StatusBadRequest, nil)
	expect(t, serve(t, h.UpdateTalkStatus, call{method: http.MethodPut, user: admin, vars: vars, body: map[string]string{"status": "Z"}}), http.StatusUnprocessableEntity, nil)
}

func TestUpdateTalkPermissions(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)

	talk := submitTalk(t, h, alice, map[string]interface{}{"title": "Old", "abstract": "A"})
	vars := map[string]string{"id": talk.ID}
	update := map[string]interface{}{"title": "New", "abstract": "_changed_", "authors": []string{bob.ID}}

	expect(t, serve(t, h.UpdateTalk, call{method: http.MethodPut, user: bob, vars: vars, body: update}), http.StatusForbidden, nil)

	var updated TalkDetail
	expect(t, serve(t, h.UpdateTalk, call{method: http.MethodPut, user: alice, vars: vars, body: update}), http.StatusOK, &updated)
	if updated.Title != "New" || !strings.Contains(updated.AbstractHTML, "<em>changed</em>") || len(updated.AuthorList) != 2 {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := h.DB.Model(&models.Talk{}).Where("id = ?", talk.ID).Update("status", models.TalkAccepted).Error; err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Co-authors lose edit rights once the talk is decided
	expect(t, serve(t, h.UpdateTalk, call{method: http.MethodPut, user: bob, vars: vars, body: update}), http.StatusForbidden, nil)
}

func TestWithdrawTalk(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)

	talk := submitTalk(t, h, alice, map[string]interface{}{"title": "T", "abstract": "A"})
	vars := map[string]string{"id": talk.ID}

	expect(t, serve(t, h.WithdrawTalk, call{method: http.MethodPost, user: bob, vars: vars}), http.StatusForbidden, nil)

	var withdrawn TalkDetail
	expect(t, serve(t, h.WithdrawTalk, call{method: http.MethodPost, user: alice, vars: vars}), http.StatusOK, &withdrawn)
	if withdrawn.Status != models.TalkWithdrawn {
		t.Fatalf("status = %q", withdrawn.Status)
	}
	// Withdrawn talks are no longer editable by their authors
	expect(t, serve(t, h.WithdrawTalk, call{method: http.MethodPost, user: alice, vars: vars}), http.StatusForbidden, nil)
}

func TestTalkURLs(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	admin := createUser(t, h, "root", models.RoleAdmin)

	talk := submitTalk(t, h, alice, map[string]interface{}{"title": "T", "abstract": "A"})
	vars := map[string]string{"id": talk.ID}

	expect(t, serve(t, h.AddTalkURL, call{method: http.MethodPost, user: admin, vars: vars, body: map[string]string{"url": "not a url"}}), http.StatusUnprocessableEntity, nil)

	var added models.TalkURL
	expect(t, serve(t, h.AddTalkURL, call{method: http.MethodPost, user: admin, vars: vars, body: map[string]string{
		"description": "Slides",
		"url":         "https://example.com/slides.pdf",
	}}), http.StatusCreated, &added)

	var detail TalkDetail
	expect(t, serve(t, h.GetTalk, call{vars: vars, user: alice}), http.StatusOK, &detail)
	if len(detail.URLs) != 1 || detail.URLs[0].URL != "https://example.com/slides.pdf" {
		t.Fatalf("unexpected urls %+v", detail.URLs)
	}

	urlVars := map[string]string{"id": talk.ID, "urlID": added.ID}
	expect(t, serve(t, h.DeleteTalkURL, call{method: http.MethodDelete, user: admin, vars: urlVars}), http.StatusOK, nil)
	expect(t, serve(t, h.DeleteTalkURL, call{method: http.MethodDelete, user: admin, vars: urlVars}), http.StatusNotFound, nil)
}

func TestListSpeakers(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	bob := createUser(t, h, "bob", models.RoleUser)
	createUser(t, h, "carol", models.RoleUser)

	accepted := submitTalk(t, h, bob, map[string]interface{}{"title": "Accepted", "abstract": "A", "authors": []string{alice.ID}})
	submitTalk(t, h, alice, map[string]interface{}{"title": "Pending", "abstract": "A"})
	if err := h.DB.Model(&models.Talk{}).Where("id = ?", accepted.ID).Update("status", models.TalkAccepted).Error; err != nil {
		t.Fatalf("accept: %v", err)
	}

	var out struct {
		Speakers []SpeakerData `json:"speakers"`
	}
	expect(t, serve(t, h.ListSpeakers, call{}), http.StatusOK, &out)
	if len(out.Speakers) != 2 || out.Speakers[0].Username != "alice" || out.Speakers[1].Username != "bob" {
		t.Fatalf("unexpected speakers %+v", out.Speakers)
	}
	if len(out.Speakers[0].Talks) != 1 || out.Speakers[0].Talks[0].Title != "Accepted" {
		t.Fatalf("unexpected speaker talks %+v", out.Speakers[0].Talks)
	}
}

func TestTaxonomies(t *testing.T) {
	h := newTestHandler(t)
	admin := createUser(t, h, "root", models.RoleAdmin)

	for _, body := range []map[string]interface{}{
		{"name": "Talk", "order": 2},
		{"name": "Tutorial", "order": 1},
	} {
		expect(t, serve(t, h.CreateTalkType, call{method: http.MethodPost, user: admin, body: body}), http.StatusCreated, nil)
	}
	expect(t, serve(t, h.CreateTrack, call{method: http.MethodPost, user: admin, body: map[string]string{"name": "Data Science"}}), http.StatusCreated, nil)
	expect(t, serve(t, h.CreateTrack, call{method: http.MethodPost, user: admin, body: map[string]string{}}), http.StatusUnprocessableEntity, nil)

	var types struct {
		TalkTypes []models.TalkType `json:"talk_types"`
	}
	expect(t, serve(t, h.ListTalkTypes, call{}), http.StatusOK, &types)
	if len(types.TalkTypes) != 2 || types.TalkTypes[0].Name != "Tutorial" {
		t.Fatalf("talk types not in display order: %+v", types.TalkTypes)
	}

	var tracks struct {
		Tracks []models.Track `json:"tracks"`
	}
	expect(t, serve(t, h.ListTracks, call{}), http.StatusOK, &tracks)
	if len(tracks.Tracks) != 1 || tracks.Tracks[0].Name != "Data Science" {
		t.Fatalf("unexpected tracks %+v", tracks.Tracks)
	}
}
