package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

// groupIDs of the user's groups. Admins get no special access to KV data.
func groupIDs(u *models.User) []string {
	ids := make([]string, len(u.Groups))
	for i, g := range u.Groups {
		ids[i] = g.ID
	}
	return ids
}

// loadKeyValue fetches the pair named by {id}. Pairs outside the user's
// groups are reported missing.
func (h *Handler) loadKeyValue(w http.ResponseWriter, r *http.Request) (*models.KeyValue, bool) {
	var kv models.KeyValue
	if err := h.DB.First(&kv, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		if isNotFound(err) {
			utils.RespondNotFound(w, "KeyValue")
		} else {
			utils.RespondInternalError(w)
		}
		return nil, false
	}
	if !currentUser(r).InGroup(kv.GroupID) {
		utils.RespondNotFound(w, "KeyValue")
		return nil, false
	}
	return &kv, true
}

// ListKeyValues lists the pairs owned by the user's groups, optionally
// filtered by key.
func (h *Handler) ListKeyValues(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	kvs := []models.KeyValue{}
	if ids := groupIDs(user); len(ids) > 0 {
		query := h.DB.Where("group_id IN ?", ids)
		if key := r.URL.Query().Get("key"); key != "" {
			query = query.Where("key = ?", key)
		}
		if err := query.Order("key, created_at").Find(&kvs).Error; err != nil {
			utils.RespondInternalError(w)
			return
		}
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"kv": kvs}, nil)
}

// CreateKeyValue stores a pair owned by one of the user's groups
func (h *Handler) CreateKeyValue(w http.ResponseWriter, r *http.Request) {
	var req validators.KeyValueRequest
	if !decode(w, r, &req) {
		return
	}
	if !currentUser(r).InGroup(req.Group) {
		utils.RespondForbidden(w, "You are not a member of that group")
		return
	}

	var value interface{}
	if err := json.Unmarshal(req.Value, &value); err != nil {
		utils.RespondValidationError(w, map[string]string{"value": "value must be valid JSON"})
		return
	}

	kv := models.KeyValue{GroupID: req.Group, Key: req.Key, Value: value}
	if err := h.DB.Create(&kv).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, kv, nil)
}

// GetKeyValue shows a single pair
func (h *Handler) GetKeyValue(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.loadKeyValue(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, kv, nil)
}

// UpdateKeyValue changes the key or value. The owning group is fixed.
func (h *Handler) UpdateKeyValue(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.loadKeyValue(w, r)
	if !ok {
		return
	}

	var req validators.KeyValueRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Group != kv.GroupID {
		utils.RespondValidationError(w, map[string]string{"group": "Cannot change the group owning this KeyValue pair"})
		return
	}

	var value interface{}
	if err := json.Unmarshal(req.Value, &value); err != nil {
		utils.RespondValidationError(w, map[string]string{"value": "value must be valid JSON"})
		return
	}

	kv.Key = req.Key
	kv.Value = value
	if err := h.DB.Save(kv).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, kv, nil)
}

// DeleteKeyValue removes a pair and its attachments to talks and users
func (h *Handler) DeleteKeyValue(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.loadKeyValue(w, r)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"talk_kv", "user_kv"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE key_value_id = ?", kv.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(kv).Error
	})
	if err != nil {
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "KeyValue deleted successfully",
	}, nil)
}

type attachKeyValueRequest struct {
	KeyValueID string `json:"kv_id"`
}

// TalkKeyValues lists the pairs attached to a talk that the user's groups
// own.
func (h *Handler) TalkKeyValues(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	user := currentUser(r)
	if !canSee(talk, user) {
		utils.RespondNotFound(w, "Talk")
		return
	}

	kvs := []models.KeyValue{}
	if ids := groupIDs(user); len(ids) > 0 {
		if err := h.DB.Model(talk).Where("group_id IN ?", ids).Association("KV").Find(&kvs); err != nil {
			utils.RespondInternalError(w)
			return
		}
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"kv": kvs}, nil)
}

// AttachTalkKeyValue attaches one of the user's group pairs to a talk
func (h *Handler) AttachTalkKeyValue(w http.ResponseWriter, r *http.Request) {
	talk, ok := h.loadTalk(w, r)
	if !ok {
		return
	}
	user := currentUser(r)
	if !canSee(talk, user) {
		utils.RespondNotFound(w, "Talk")
		return
	}

	var req attachKeyValueRequest
	if !decode(w, r, &req) {
		return
	}
	var kv models.KeyValue
	if err := h.DB.First(&kv, "id = ?", req.KeyValueID).Error; err != nil || !user.InGroup(kv.GroupID) {
		utils.RespondNotFound(w, "KeyValue")
		return
	}

	if err := h.DB.Model(talk).Association("KV").Append(&kv); err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, kv, nil)
}
