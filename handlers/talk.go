package handlers

import (
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/notify"
	"wafer-be/utils"
	"wafer-be/validators"
)

var errUnknownAuthor = errors.New("unknown author")

// publicStatuses are visible to everyone
var publicStatuses = []string{string(models.TalkAccepted), string(models.TalkCancelled)}

// AuthorData is the public view of a talk author
type AuthorData struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func authorData(u *models.User) AuthorData {
	return AuthorData{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName()}
}

// TalkSummary is a talk as it appears in listings
type TalkSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Status      models.TalkStatus `json:"status"`
	StatusLabel string            `json:"status_label"`
	Authors     string            `json:"authors"`
	Excerpt     string            `json:"excerpt"`
	TalkType    string            `json:"talk_type,omitempty"`
	Track       string            `json:"track,omitempty"`
	CSSClasses  []string          `json:"css_classes"`
}

func summarizeTalk(t *models.Talk) TalkSummary {
	s := TalkSummary{
		ID:          t.ID,
		Title:       t.Title,
		Slug:        t.Slug(),
		Status:      t.Status,
		StatusLabel: t.Status.Label(),
		Authors:     t.AuthorsDisplayName(),
		Excerpt:     utils.MakeExcerpt(t.AbstractHTML, 200),
		CSSClasses:  []string{},
	}
	if t.TalkType != nil {
		s.TalkType = t.TalkType.Name
		s.CSSClasses = append(s.CSSClasses, t.TalkType.CSSClass())
	}
	if t.Track != nil {
		s.Track = t.Track.Name
		s.CSSClasses = append(s.CSSClasses, t.Track.CSSClass())
	}
	return s
}

// TalkDetail is a single talk. Notes are only filled in for the authors,
// reviewers and admins; private notes never reach the authors.
type TalkDetail struct {
	TalkSummary
	Abstract            string           `json:"abstract"`
	AbstractHTML        string           `json:"abstract_html"`
	Notes               string           `json:"notes,omitempty"`
	PrivateNotes        string           `json:"private_notes,omitempty"`
	Video               bool             `json:"video"`
	VideoReviewer       string           `json:"video_reviewer,omitempty"`
	TalkTypeID          *string          `json:"talk_type_id"`
	TrackID             *string          `json:"track_id"`
	CorrespondingAuthor AuthorData       `json:"corresponding_author"`
	AuthorList          []AuthorData     `json:"author_list"`
	URLs                []models.TalkURL `json:"urls"`
	CanEdit             bool             `json:"can_edit"`
	CanReview           bool             `json:"can_review"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func detailTalk(t *models.Talk, viewer *models.User) TalkDetail {
	d := TalkDetail{
		TalkSummary:         summarizeTalk(t),
		Abstract:            t.Abstract,
		AbstractHTML:        t.AbstractHTML,
		Video:               t.Video,
		TalkTypeID:          t.TalkTypeID,
		TrackID:             t.TrackID,
		CorrespondingAuthor: authorData(&t.CorrespondingAuthor),
		AuthorList:          make([]AuthorData, len(t.Authors)),
		URLs:                t.URLs,
		CanEdit:             t.CanEdit(viewer),
		CanReview:           t.CanReview(viewer),
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	for i := range t.Authors {
		d.AuthorList[i] = authorData(&t.Authors[i])
	}
	if d.URLs == nil {
		d.URLs = []models.TalkURL{}
	}
	if t.IsAmongAuthors(viewer) || viewer.IsAdmin() || d.CanReview {
		d.Notes = t.Notes
		d.VideoReviewer = t.VideoReviewer
	}
	if viewer.IsAdmin() || d.CanReview {
		d.PrivateNotes = t.PrivateNotes
	}
	return d
}

// canSee extends CanView to reviewers, who need pending talks
func canSee(t *models.Talk, u *models.User) bool {
	return t.CanView(u) || t.CanReview(u)
}

func (h *Handler) talkQuery() *gorm.DB {
	return h.DB.Preload("TalkType").Preload("Track").Preload("CorrespondingAuthor").Preload("Authors")
}

// loadTalk fetches the talk named by the {id} route variable, answering 404
// itself.
func (h *Handler) loadTalk(w http.ResponseWriter, r *http.Request) (*models.Talk, bool) {
	var talk models.Talk
	err := h.talkQuery().Preload("URLs").First(&talk, "id = ?", mux.Vars(r)["id"]).Error
	if err != nil {
		if isNotFound(err) {
			utils.RespondNotFound(w, "Talk")
		} else {
			utils.RespondInternalError(w)
		}
		return nil, false
	}
	return &talk, true
}

// ListTalks lists the talks the caller may see, a page at a time.
// Anonymous listings are cached.
func (h *Handler) ListTalks(w http.ResponseWriter, r *http.Request) {
	viewer := currentUser(r)
	status := r.URL.Query().Get("status")
	if status != "" && !models.TalkStatus(status).Valid() {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown talk status", nil)
		return
	}
	page, limit, offset := pagination(r)

	type cachedTalks struct {
		Talks []TalkSummary `json:"talks"`
		Meta  *utils.Meta   `json:"meta"`
	}
	cacheKey := ""
	if viewer == nil {
		cacheKey = utils.BuildCacheKey("talks", "list", "public", status, "page", page, "limit", limit)
		var cached cachedTalks
		if err := h.Cache.Get(r.Context(), cacheKey, &cached); err == nil {
			utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"talks": cached.Talks}, cached.Meta)
			return
		}
	}

	visible := func(db *gorm.DB) *gorm.DB {
		switch {
		case viewer.IsAdmin() || (viewer != nil && viewer.Role == models.RoleReviewer):
		case viewer != nil:
			own := h.DB.Table("talk_authors").Select("talk_id").Where("user_id = ?", viewer.ID)
			db = db.Where("status IN ? OR id IN (?)", publicStatuses, own)
		default:
			db = db.Where("status IN ?", publicStatuses)
		}
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := h.DB.Model(&models.Talk{}).Scopes(visible).Count(&total).Error; err != nil {
		log.Printf("Failed to count talks: %v", err)
		utils.RespondInternalError(w)
		return
	}

	var talks []models.Talk
	if err := h.talkQuery().Scopes(visible).Order("created_at").Limit(limit).Offset(offset).Find(&talks).Error; err != nil {
		log.Printf("Failed to list talks: %v", err)
		utils.RespondInternalError(w)
		return
	}

	summaries := make([]TalkSummary, 0, len(talks))
	for i := range talks {
		summaries = append(summaries, summarizeTalk(&talks[i]))
	}
	meta := utils.NewMeta(page, limit, total)

	if cacheKey != "" {
		if err := h.Cache.Set(r.Context(), cacheKey, cachedTalks{Talks: summaries, Meta: meta}, utils.CacheTTLTalksList); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			log.Printf("Failed to cache talks: %v", err)
		}
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"talks": summaries}, meta)
}

// GetTalk shows a talk. Talks the caller may not see are reported missing.
func (h *Handler) GetTalk(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	viewer := currentUser(r)
	if !canSee(talk, viewer) {
		utils.RespondNotFound(w, "Talk")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, detailTalk(talk, viewer), nil)
}

// resolveAuthors loads the users named by ids. The corresponding author is
// always among the result.
func resolveAuthors(db *gorm.DB, ids []string, corresponding string) ([]models.User, error) {
	seen := map[string]struct{}{corresponding: {}}
	unique := []string{corresponding}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	var users []models.User
	if err := db.Where("id IN ?", unique).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) != len(unique) {
		return nil, errUnknownAuthor
	}
	return users, nil
}

// checkTaxonomy verifies the talk type and track exist. Disabled talk types
// only accept submissions from admins.
func (h *Handler) checkTaxonomy(w http.ResponseWriter, req *validators.TalkRequest, user *models.User) bool {
	if req.TalkTypeID != nil && *req.TalkTypeID == "" {
		req.TalkTypeID = nil
	}
	if req.TrackID != nil && *req.TrackID == "" {
		req.TrackID = nil
	}

	if req.TalkTypeID != nil {
		var tt models.TalkType
		if err := h.DB.First(&tt, "id = ?", *req.TalkTypeID).Error; err != nil {
			utils.RespondValidationError(w, map[string]string{"talk_type_id": "Unknown talk type"})
			return false
		}
		if tt.DisableSubmission && !user.IsAdmin() {
			utils.RespondValidationError(w, map[string]string{"talk_type_id": "Submissions for this talk type are closed"})
			return false
		}
	}
	if req.TrackID != nil {
		var track models.Track
		if err := h.DB.First(&track, "id = ?", *req.TrackID).Error; err != nil {
			utils.RespondValidationError(w, map[string]string{"track_id": "Unknown track"})
			return false
		}
	}
	return true
}

// CreateTalk submits a talk with the caller as corresponding author
func (h *Handler) CreateTalk(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !h.Settings.TalksOpen && !user.IsAdmin() {
		utils.RespondForbidden(w, "Talk submission is closed")
		return
	}

	var req validators.TalkRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.checkTaxonomy(w, &req, user) {
		return
	}

	authors, err := resolveAuthors(h.DB, req.Authors, user.ID)
	if err != nil {
		if errors.Is(err, errUnknownAuthor) {
			utils.RespondValidationError(w, map[string]string{"authors": "Unknown author"})
			return
		}
		utils.RespondInternalError(w)
		return
	}

	abstractHTML, ok := h.renderMarkdown(w, req.Abstract)
	if !ok {
		return
	}

	talk := models.Talk{
		Title:                 req.Title,
		Abstract:              req.Abstract,
		AbstractHTML:          abstractHTML,
		Notes:                 req.Notes,
		TalkTypeID:            req.TalkTypeID,
		TrackID:               req.TrackID,
		CorrespondingAuthorID: user.ID,
		Video:                 req.Video,
		VideoReviewer:         req.VideoReviewer,
		Authors:               authors,
	}
	if user.IsAdmin() {
		talk.PrivateNotes = req.PrivateNotes
	}

	if err := h.DB.Omit("Authors.*").Create(&talk).Error; err != nil {
		log.Printf("Failed to create talk: %v", err)
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "talks:*")

	r = mux.SetURLVars(r, map[string]string{"id": talk.ID})
	created, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, detailTalk(created, user), nil)
}

// UpdateTalk edits a talk the caller may edit
func (h *Handler) UpdateTalk(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	user := currentUser(r)
	if !talk.CanEdit(user) {
		utils.RespondForbidden(w, "You cannot edit this talk")
		return
	}

	var req validators.TalkRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.checkTaxonomy(w, &req, user) {
		return
	}

	abstractHTML, ok := h.renderMarkdown(w, req.Abstract)
	if !ok {
		return
	}

	updates := map[string]interface{}{
		"title":          req.Title,
		"abstract":       req.Abstract,
		"abstract_html":  abstractHTML,
		"notes":          req.Notes,
		"talk_type_id":   req.TalkTypeID,
		"track_id":       req.TrackID,
		"video":          req.Video,
		"video_reviewer": req.VideoReviewer,
	}
	if user.IsAdmin() {
		updates["private_notes"] = req.PrivateNotes
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(talk).Updates(updates).Error; err != nil {
			return err
		}
		if len(req.Authors) == 0 {
			return nil
		}
		authors, err := resolveAuthors(tx, req.Authors, talk.CorrespondingAuthorID)
		if err != nil {
			return err
		}
		return tx.Model(talk).Association("Authors").Replace(authors)
	})
	if err != nil {
		if errors.Is(err, errUnknownAuthor) {
			utils.RespondValidationError(w, map[string]string{"authors": "Unknown author"})
			return
		}
		log.Printf("Failed to update talk %s: %v", talk.ID, err)
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "talks:*")

	updated, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, detailTalk(updated, user), nil)
}

// UpdateTalkStatus moves a talk to a new status and tells its authors
func (h *Handler) UpdateTalkStatus(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}

	var req validators.TalkStatusRequest
	if !decode(w, r, &req) {
		return
	}

	previous := talk.Status
	if err := h.DB.Model(talk).Update("status", req.Status).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	talk.Status = req.Status

	h.invalidate(r, "talks:*")
	if previous != req.Status {
		h.notifyTalkStatus(r, talk)
	}

	utils.RespondSuccess(w, http.StatusOK, detailTalk(talk, currentUser(r)), nil)
}

func (h *Handler) notifyTalkStatus(r *http.Request, talk *models.Talk) {
	if h.Notifier == nil {
		return
	}
	to := make([]string, 0, len(talk.Authors))
	for _, a := range talk.Authors {
		if a.Email != "" {
			to = append(to, a.Email)
		}
	}
	if len(to) == 0 {
		return
	}
	err := h.Notifier.Send(r.Context(), notify.KindTalkStatus, to, map[string]interface{}{
		"Speaker":     talk.CorrespondingAuthor.DisplayName(),
		"Title":       talk.Title,
		"StatusLabel": talk.Status.Label(),
		"Path":        "/talks/" + talk.ID + "/",
	})
	if err != nil {
		log.Printf("Failed to queue status notification for talk %s: %v", talk.ID, err)
	}
}

// WithdrawTalk lets an author pull a talk that is still pending
func (h *Handler) WithdrawTalk(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	user := currentUser(r)
	if !talk.CanEdit(user) {
		utils.RespondForbidden(w, "You cannot withdraw this talk")
		return
	}
	if talk.Status == models.TalkWithdrawn {
		utils.RespondBadRequest(w, "Talk already withdrawn")
		return
	}

	if err := h.DB.Model(talk).Update("status", models.TalkWithdrawn).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	talk.Status = models.TalkWithdrawn

	h.invalidate(r, "talks:*")
	utils.RespondSuccess(w, http.StatusOK, detailTalk(talk, user), nil)
}

// AddTalkURL attaches slides or a recording to a talk (admin only)
func (h *Handler) AddTalkURL(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}

	var req validators.TalkURLRequest
	if !decode(w, r, &req) {
		return
	}

	talkURL := models.TalkURL{TalkID: talk.ID, Description: req.Description, URL: req.URL}
	if err := h.DB.Create(&talkURL).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusCreated, talkURL, nil)
}

// DeleteTalkURL removes a talk URL (admin only)
func (h *Handler) DeleteTalkURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result := h.DB.Where("id = ? AND talk_id = ?", vars["urlID"], vars["id"]).Delete(&models.TalkURL{})
	if result.Error != nil {
		utils.RespondInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondNotFound(w, "Talk URL")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "Talk URL deleted successfully",
	}, nil)
}

// SpeakerData is a speaker with their accepted talks
type SpeakerData struct {
	AuthorData
	Talks []TalkSummary `json:"talks"`
}

// ListSpeakers lists the authors of accepted talks, by display name
func (h *Handler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	var talks []models.Talk
	if err := h.talkQuery().Where("status = ?", models.TalkAccepted).Order("created_at").Find(&talks).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	byID := map[string]*SpeakerData{}
	for i := range talks {
		talk := &talks[i]
		for j := range talk.Authors {
			author := &talk.Authors[j]
			speaker, ok := byID[author.ID]
			if !ok {
				speaker = &SpeakerData{AuthorData: authorData(author)}
				byID[author.ID] = speaker
			}
			speaker.Talks = append(speaker.Talks, summarizeTalk(talk))
		}
	}

	speakers := make([]SpeakerData, 0, len(byID))
	for _, s := range byID {
		speakers = append(speakers, *s)
	}
	sort.Slice(speakers, func(i, j int) bool {
		if speakers[i].DisplayName != speakers[j].DisplayName {
			return speakers[i].DisplayName < speakers[j].DisplayName
		}
		return speakers[i].Username < speakers[j].Username
	})

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"speakers": speakers}, nil)
}

// ListTalkTypes lists talk types in display order
func (h *Handler) ListTalkTypes(w http.ResponseWriter, r *http.Request) {
	var types []models.TalkType
	if !h.cachedList(w, r, "taxonomies:talk-types", &types) {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"talk_types": types}, nil)
}

// ListTracks lists tracks in display order
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	var tracks []models.Track
	if !h.cachedList(w, r, "taxonomies:tracks", &tracks) {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"tracks": tracks}, nil)
}

// cachedList fills dest from the cache or from the table ordered by
// sort_order then name.
func (h *Handler) cachedList(w http.ResponseWriter, r *http.Request, key string, dest interface{}) bool {
	if err := h.Cache.Get(r.Context(), key, dest); err == nil {
		return true
	}
	if err := h.DB.Order("sort_order, name").Find(dest).Error; err != nil {
		utils.RespondInternalError(w)
		return false
	}
	if err := h.Cache.Set(r.Context(), key, dest, utils.CacheTTLTaxonomiesList); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
		log.Printf("Failed to cache %s: %v", key, err)
	}
	return true
}

// CreateTalkType adds a talk type (admin only)
func (h *Handler) CreateTalkType(w http.ResponseWriter, r *http.Request) {
	var req validators.TaxonomyRequest
	if !decode(w, r, &req) {
		return
	}

	tt := models.TalkType{
		Name:              req.Name,
		Description:       req.Description,
		Order:             req.Order,
		DisableSubmission: req.DisableSubmission,
	}
	if err := h.DB.Create(&tt).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "taxonomies:*")
	utils.RespondSuccess(w, http.StatusCreated, tt, nil)
}

// CreateTrack adds a track (admin only)
func (h *Handler) CreateTrack(w http.ResponseWriter, r *http.Request) {
	var req validators.TaxonomyRequest
	if !decode(w, r, &req) {
		return
	}

	track := models.Track{Name: req.Name, Description: req.Description, Order: req.Order}
	if err := h.DB.Create(&track).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "taxonomies:*")
	utils.RespondSuccess(w, http.StatusCreated, track, nil)
}
