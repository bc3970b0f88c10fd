package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

// ListGroups lists groups with their members (admin only)
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	var groups []models.Group
	if err := h.DB.Order("name").Find(&groups).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	type groupEntry struct {
		models.Group
		Members []AuthorData `json:"members"`
	}
	entries := make([]groupEntry, len(groups))
	for i := range groups {
		var members []models.User
		err := h.DB.
			Joins("JOIN user_groups ON user_groups.user_id = users.id").
			Where("user_groups.group_id = ?", groups[i].ID).
			Order("users.username").
			Find(&members).Error
		if err != nil {
			utils.RespondInternalError(w)
			return
		}
		entries[i] = groupEntry{Group: groups[i], Members: make([]AuthorData, len(members))}
		for j := range members {
			entries[i].Members[j] = authorData(&members[j])
		}
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"groups": entries}, nil)
}

// CreateGroup adds a group (admin only)
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req validators.GroupRequest
	if !decode(w, r, &req) {
		return
	}

	group := models.Group{Name: req.Name}
	if err := h.DB.Create(&group).Error; err != nil {
		if isUniqueViolation(err) {
			utils.RespondConflict(w, "A group with that name already exists")
			return
		}
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, group, nil)
}

func (h *Handler) groupAndUser(w http.ResponseWriter, r *http.Request, userID string) (*models.Group, *models.User, bool) {
	var group models.Group
	if err := h.DB.First(&group, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		utils.RespondNotFound(w, "Group")
		return nil, nil, false
	}
	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.RespondNotFound(w, "User")
		return nil, nil, false
	}
	return &group, &user, true
}

// AddGroupMember puts a user in a group (admin only)
func (h *Handler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req validators.GroupMemberRequest
	if !decode(w, r, &req) {
		return
	}
	group, user, ok := h.groupAndUser(w, r, req.UserID)
	if !ok {
		return
	}

	if err := h.DB.Model(user).Association("Groups").Append(group); err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "User added to group",
	}, nil)
}

// RemoveGroupMember takes a user out of a group (admin only)
func (h *Handler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	group, user, ok := h.groupAndUser(w, r, mux.Vars(r)["userID"])
	if !ok {
		return
	}

	if err := h.DB.Model(user).Association("Groups").Delete(group); err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "User removed from group",
	}, nil)
}
