package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"wafer-be/config"
	"wafer-be/markdown"
	"wafer-be/middleware"
	"wafer-be/models"
	"wafer-be/notify"
	"wafer-be/templates"
	"wafer-be/utils"
	"wafer-be/validators"
)

// Handler carries the dependencies shared by every endpoint
type Handler struct {
	DB       *gorm.DB
	Cache    *utils.Cache
	Settings config.Settings
	Markdown *markdown.Renderer
	Notifier *notify.Notifier
	Site     templates.SiteContext
}

func New(db *gorm.DB, cache *utils.Cache, settings config.Settings, renderer *markdown.Renderer, notifier *notify.Notifier) *Handler {
	return &Handler{
		DB:       db,
		Cache:    cache,
		Settings: settings,
		Markdown: renderer,
		Notifier: notifier,
		Site:     templates.NewSiteContext(settings),
	}
}

type validatable interface {
	Validate() error
}

// decode reads a JSON body into req and validates it. It writes the error
// response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		utils.RespondBadRequest(w, "Invalid request payload")
		return false
	}
	if v, ok := req.(validatable); ok {
		if err := v.Validate(); err != nil {
			utils.RespondValidationError(w, validators.Fields(err))
			return false
		}
	}
	return true
}

func currentUser(r *http.Request) *models.User {
	return middleware.CurrentUser(r.Context())
}

// pagination reads page and limit query parameters
func pagination(r *http.Request) (page, limit, offset int) {
	page, limit = 1, 25

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit, (page - 1) * limit
}

// renderMarkdown renders with the configured defaults, answering 500 on
// failure.
func (h *Handler) renderMarkdown(w http.ResponseWriter, text string) (string, bool) {
	out, err := h.Markdown.RenderDefault(text)
	if err != nil {
		log.Printf("Failed to render markdown: %v", err)
		utils.RespondInternalError(w)
		return "", false
	}
	return out, true
}

func (h *Handler) invalidate(r *http.Request, patterns ...string) {
	for _, pattern := range patterns {
		if err := h.Cache.DeletePattern(r.Context(), pattern); err != nil {
			log.Printf("Failed to invalidate cache %s: %v", pattern, err)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isUniqueViolation matches the unique constraint errors of postgres and
// sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
