package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

type LoginData struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// Register creates a new user account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validators.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondInternalError(w)
		return
	}

	user := models.User{
		Username: req.Username,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: hashedPassword,
		Role:     models.RoleUser,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			utils.RespondConflict(w, "Username or email already registered")
			return
		}
		log.Printf("Failed to create user: %v", err)
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"email":    user.Email,
		"role":     user.Role,
	}, nil)
}

// Login authenticates by username or email and returns a JWT token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validators.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	var user models.User
	login := strings.TrimSpace(req.Username)
	if err := h.DB.Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error; err != nil {
		utils.RespondUnauthorized(w, "Invalid credentials")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		utils.RespondUnauthorized(w, "Invalid credentials")
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.Username, string(user.Role), h.Settings.JWTSecret)
	if err != nil {
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, LoginData{
		UserID:    user.ID,
		Username:  user.Username,
		Token:     token,
		ExpiresAt: time.Now().Add(utils.TokenTTL).Unix(),
	}, nil)
}
