package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

var errUnknownAspect = errors.New("unknown review aspect")

// ReviewData is a review as shown to reviewers
type ReviewData struct {
	ID        string         `json:"id"`
	Reviewer  AuthorData     `json:"reviewer"`
	Notes     string         `json:"notes"`
	NotesHTML string         `json:"notes_html"`
	Scores    map[string]int `json:"scores"`
	AvgScore  *float64       `json:"avg_score"`
	IsCurrent bool           `json:"is_current"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func reviewData(review *models.Review, talk *models.Talk) ReviewData {
	d := ReviewData{
		ID:        review.ID,
		Reviewer:  authorData(&review.Reviewer),
		Notes:     review.Notes,
		NotesHTML: review.NotesHTML,
		Scores:    make(map[string]int, len(review.Scores)),
		AvgScore:  review.AvgScore(),
		IsCurrent: review.IsCurrent(talk),
		UpdatedAt: review.UpdatedAt,
	}
	for _, s := range review.Scores {
		d.Scores[s.AspectID] = s.Value
	}
	return d
}

// SubmitReview creates or replaces the caller's review of a talk. The
// first review moves a submitted talk under consideration.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	user := currentUser(r)
	if !talk.CanReview(user) {
		utils.RespondForbidden(w, "You cannot review this talk")
		return
	}

	var req validators.ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(h.Settings.ReviewScoreMin, h.Settings.ReviewScoreMax); err != nil {
		utils.RespondValidationError(w, validators.Fields(err))
		return
	}

	notesHTML, ok := h.renderMarkdown(w, req.Notes)
	if !ok {
		return
	}

	var review models.Review
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("talk_id = ? AND reviewer_id = ?", talk.ID, user.ID).First(&review).Error
		switch {
		case isNotFound(err):
			review = models.Review{TalkID: talk.ID, ReviewerID: user.ID, Notes: req.Notes, NotesHTML: notesHTML}
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&review).Updates(map[string]interface{}{
				"notes":      req.Notes,
				"notes_html": notesHTML,
			}).Error; err != nil {
				return err
			}
		}

		for aspectID, value := range req.Scores {
			var count int64
			if err := tx.Model(&models.ReviewAspect{}).Where("id = ?", aspectID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errUnknownAspect
			}

			var score models.Score
			err := tx.Where("review_id = ? AND aspect_id = ?", review.ID, aspectID).First(&score).Error
			switch {
			case isNotFound(err):
				if err := tx.Create(&models.Score{ReviewID: review.ID, AspectID: aspectID, Value: value}).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&score).Update("value", value).Error; err != nil {
					return err
				}
			}
		}

		// UpdateColumn leaves updated_at alone so existing reviews stay current
		if talk.Status == models.TalkSubmitted {
			return tx.Model(talk).UpdateColumn("status", models.TalkUnderConsideration).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnknownAspect) {
			utils.RespondValidationError(w, map[string]string{"scores": "Unknown review aspect"})
			return
		}
		log.Printf("Failed to save review of talk %s: %v", talk.ID, err)
		utils.RespondInternalError(w)
		return
	}

	if talk.Status == models.TalkSubmitted {
		talk.Status = models.TalkUnderConsideration
		h.invalidate(r, "talks:*")
	}

	if err := h.DB.Preload("Reviewer").Preload("Scores").First(&review, "id = ?", review.ID).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, reviewData(&review, talk), nil)
}

// ListReviews shows every review of a talk with the overall score
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	if !canSee(talk, currentUser(r)) {
		utils.RespondNotFound(w, "Talk")
		return
	}

	if err := h.DB.Preload("Reviewer").Preload("Scores").Where("talk_id = ?", talk.ID).Order("created_at").Find(&talk.Reviews).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	reviews := make([]ReviewData, len(talk.Reviews))
	for i := range talk.Reviews {
		reviews[i] = reviewData(&talk.Reviews[i], talk)
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"talk_id":      talk.ID,
		"review_score": talk.ReviewScore(),
		"reviews":      reviews,
	}, nil)
}

// ListReviewAspects lists the aspects reviewers score talks on
func (h *Handler) ListReviewAspects(w http.ResponseWriter, r *http.Request) {
	var aspects []models.ReviewAspect
	if err := h.DB.Order("name").Find(&aspects).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"aspects":   aspects,
		"score_min": h.Settings.ReviewScoreMin,
		"score_max": h.Settings.ReviewScoreMax,
	}, nil)
}

// CreateReviewAspect adds a review aspect (admin only)
func (h *Handler) CreateReviewAspect(w http.ResponseWriter, r *http.Request) {
	var req validators.ReviewAspectRequest
	if !decode(w, r, &req) {
		return
	}

	aspect := models.ReviewAspect{Name: req.Name}
	if err := h.DB.Create(&aspect).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, aspect, nil)
}
