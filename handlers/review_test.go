package handlers

import (
	"net/http"
	"strings"
	"testing"

	"wafer-be/models"
)

func TestSubmitReview(t *testing.T) {
	h := newTestHandler(t)
	alice := createUser(t, h, "alice", models.RoleUser)
	reviewer := createUser(t, h, "rev", models.RoleReviewer)
	admin := createUser(t, h, "root", models.RoleAdmin)

	var aspect models.ReviewAspect
	expect(t, serve(t, h.CreateReviewAspect, call{method: http.MethodPost, user: admin, body: map[string]string{"name": "Relevance"}}), http.StatusCreated, &aspect)

	talk := submitTalk(t, h, alice, map[string]interface{}{"title": "T", "abstract": "A"})
	vars := map[string]string{"id": talk.ID}

	review := func(user *models.User, body map[string]interface{}) envelope {
		return expect(t, serve(t, h.SubmitReview, call{method: http.MethodPost, user: user, vars: vars, body: body}), http.StatusOK, nil)
	}

	// Authors may not review their own talk
	expect(t, serve(t, h.SubmitReview, call{method: http.MethodPost, user: alice, vars: vars, body: map[string]interface{}{}}), http.StatusForbidden, nil)

	rec := serve(t, h.SubmitReview, call{method: http.MethodPost, user: reviewer, vars: vars, body: map[string]interface{}{
		"scores": map[string]int{aspect.ID: 5},
	}})
	env := expect(t, rec, http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "scores")

	rec = serve(t, h.SubmitReview, call{method: http.MethodPost, user: reviewer, vars: vars, body: map[string]interface{}{
		"scores": map[string]int{"missing": 1},
	}})
	env = expect(t, rec, http.StatusUnprocessableEntity, nil)
	fieldError(t, env, "scores")

	var first ReviewData
	expect(t, serve(t, h.SubmitReview, call{method: http.MethodPost, user: reviewer, vars: vars, body: map[string]interface{}{
		"notes":  "*solid*",
		"scores": map[string]int{aspect.ID: 2},
	}}), http.StatusOK, &first)
	if !strings.Contains(first.NotesHTML, "<em>solid</em>") || first.Scores[aspect.ID] != 2 || !first.IsCurrent {
		t.Fatalf("unexpected review %+v", first)
	}

	var stored models.Talk
	if err := h.DB.First(&stored, "id = ?", talk.ID).Error; err != nil {
		t.Fatalf("reload talk: %v", err)
	}
	if stored.Status != models.TalkUnderConsideration {
		t.Fatalf("status = %q, want U", stored.Status)
	}

	// Reviewing again replaces the earlier scores
	review(reviewer, map[string]interface{}{"notes": "changed my mind", "scores": map[string]int{aspect.ID: -1}})
	review(admin, map[string]interface{}{"scores": map[string]int{aspect.ID: 1}})

	var count int64
	h.DB.Model(&models.Review{}).Where("talk_id = ?", talk.ID).Count(&count)
	if count != 2 {
		t.Fatalf("reviews = %d, want 2", count)
	}
	h.DB.Model(&models.Score{}).Count(&count)
	if count != 2 {
		t.Fatalf("scores = %d, want 2", count)
	}

	var listed struct {
		ReviewScore *float64     `json:"review_score"`
		Reviews     []ReviewData `json:"reviews"`
	}
	expect(t, serve(t, h.ListReviews, call{user: reviewer, vars: vars}), http.StatusOK, &listed)
	if listed.ReviewScore == nil || *listed.ReviewScore != 0 || len(listed.Reviews) != 2 {
		t.Fatalf("unexpected review listing %+v", listed)
	}
}

func TestListReviewAspects(t *testing.T) {
	h := newTestHandler(t)
	reviewer := createUser(t, h, "rev", models.RoleReviewer)

	for _, name := range []string{"Relevance", "Clarity"} {
		if err := h.DB.Create(&models.ReviewAspect{Name: name}).Error; err != nil {
			t.Fatalf("create aspect: %v", err)
		}
	}

	var out struct {
		Aspects  []models.ReviewAspect `json:"aspects"`
		ScoreMin int                   `json:"score_min"`
		ScoreMax int                   `json:"score_max"`
	}
	expect(t, serve(t, h.ListReviewAspects, call{user: reviewer}), http.StatusOK, &out)
	if len(out.Aspects) != 2 || out.Aspects[0].Name != "Clarity" || out.ScoreMin != -2 || out.ScoreMax != 2 {
		t.Fatalf("unexpected aspects %+v", out)
	}
}
