package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

// ProfileResponse is the public view of a user
type ProfileResponse struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name"`
	Bio            string         `json:"bio,omitempty"`
	Homepage       string         `json:"homepage,omitempty"`
	TwitterHandle  string         `json:"twitter_handle,omitempty"`
	GithubUsername string         `json:"github_username,omitempty"`
	AcceptedTalks  []TalkSummary  `json:"accepted_talks"`
	OtherTalks     []TalkSummary  `json:"other_talks,omitempty"`
	Private        *PrivateFields `json:"private,omitempty"`
}

// PrivateFields are only shown to the user and admins
type PrivateFields struct {
	Email         string         `json:"email"`
	ContactNumber string         `json:"contact_number,omitempty"`
	Role          models.Role    `json:"role"`
	Groups        []models.Group `json:"groups"`
	Tickets       []TicketData   `json:"tickets"`
	CreatedAt     time.Time      `json:"created_at"`
}

// GetCurrentUser retrieves current authenticated user info
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	h.respondProfile(w, currentUser(r), currentUser(r))
}

// GetProfile shows a user's profile by username. Without a public attendee
// list only speakers with accepted talks are visible to others.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var user models.User
	if err := h.DB.Preload("Groups").Where("username = ?", username).First(&user).Error; err != nil {
		utils.RespondNotFound(w, "User")
		return
	}
	h.respondProfile(w, &user, currentUser(r))
}

func (h *Handler) respondProfile(w http.ResponseWriter, user, viewer *models.User) {
	privileged := viewer != nil && (viewer.ID == user.ID || viewer.IsAdmin())

	var talks []models.Talk
	err := h.DB.
		Joins("JOIN talk_authors ON talk_authors.talk_id = talks.id").
		Where("talk_authors.user_id = ?", user.ID).
		Preload("TalkType").Preload("Track").Preload("Authors").Preload("CorrespondingAuthor").
		Order("talks.created_at").
		Find(&talks).Error
	if err != nil {
		log.Printf("Failed to load talks of %s: %v", user.Username, err)
		utils.RespondInternalError(w)
		return
	}

	resp := ProfileResponse{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName(),
		Bio:            user.Bio,
		Homepage:       user.HomepageURL(),
		TwitterHandle:  user.TwitterHandle,
		GithubUsername: user.GithubUsername,
		AcceptedTalks:  []TalkSummary{},
	}
	for i := range talks {
		talk := &talks[i]
		switch {
		case talk.Status == models.TalkAccepted:
			resp.AcceptedTalks = append(resp.AcceptedTalks, summarizeTalk(talk))
		case privileged && talk.Status != models.TalkWithdrawn:
			resp.OtherTalks = append(resp.OtherTalks, summarizeTalk(talk))
		}
	}

	if !privileged && !h.Settings.PublicAttendeeList && len(resp.AcceptedTalks) == 0 {
		utils.RespondNotFound(w, "User")
		return
	}

	if privileged {
		var tickets []models.Ticket
		if err := h.DB.Preload("Type").Where("user_id = ?", user.ID).Find(&tickets).Error; err != nil {
			utils.RespondInternalError(w)
			return
		}
		resp.Private = &PrivateFields{
			Email:         user.Email,
			ContactNumber: user.ContactNumber,
			Role:          user.Role,
			Groups:        user.Groups,
			Tickets:       ticketData(tickets),
			CreatedAt:     user.CreatedAt,
		}
		if resp.Private.Groups == nil {
			resp.Private.Groups = []models.Group{}
		}
	}

	utils.RespondSuccess(w, http.StatusOK, resp, nil)
}

// UpdateProfile changes the profile fields of the current user
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req validators.ProfileRequest
	if !decode(w, r, &req) {
		return
	}

	updates := map[string]interface{}{}
	set := func(column string, value *string) {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}
	set("name", req.Name)
	set("contact_number", req.ContactNumber)
	set("bio", req.Bio)
	set("homepage", req.Homepage)
	set("github_username", req.GithubUsername)
	if req.TwitterHandle != nil {
		updates["twitter_handle"] = strings.TrimPrefix(strings.TrimSpace(*req.TwitterHandle), "@")
	}

	if len(updates) > 0 {
		if err := h.DB.Model(user).Updates(updates).Error; err != nil {
			utils.RespondInternalError(w)
			return
		}
	}

	var fresh models.User
	if err := h.DB.Preload("Groups").First(&fresh, "id = ?", user.ID).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "talks:*")
	h.respondProfile(w, &fresh, &fresh)
}

// GetUsers lists users, the attendee list. Admin only unless the attendee
// list is public.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	viewer := currentUser(r)
	if !h.Settings.PublicAttendeeList && !viewer.IsAdmin() {
		utils.RespondForbidden(w, "The attendee list is not public")
		return
	}

	page, limit, offset := pagination(r)

	var total int64
	if err := h.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	var users []models.User
	if err := h.DB.Order("username").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	type userEntry struct {
		ID          string      `json:"id"`
		Username    string      `json:"username"`
		DisplayName string      `json:"display_name"`
		Role        models.Role `json:"role,omitempty"`
	}
	entries := make([]userEntry, len(users))
	for i, u := range users {
		entries[i] = userEntry{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName()}
		if viewer.IsAdmin() {
			entries[i].Role = u.Role
		}
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"users": entries,
	}, utils.NewMeta(page, limit, total))
}

type RoleRequest struct {
	Role models.Role `json:"role"`
}

// SetUserRole changes a user's role (admin only)
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RoleRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.Role {
	case models.RoleAdmin, models.RoleReviewer, models.RoleUser:
	default:
		utils.RespondValidationError(w, map[string]string{"role": "Unknown role"})
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		utils.RespondNotFound(w, "User")
		return
	}
	if err := h.DB.Model(&user).Update("role", req.Role).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"id":   user.ID,
		"role": req.Role,
	}, nil)
}

// DeleteUser soft deletes a user (admin only)
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if viewer := currentUser(r); viewer.ID == id {
		utils.RespondBadRequest(w, "You cannot delete yourself")
		return
	}

	result := h.DB.Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		utils.RespondInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondNotFound(w, "User")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "User deleted successfully",
	}, nil)
}
