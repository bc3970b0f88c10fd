package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/utils"
	"wafer-be/validators"
)

var (
	errUnknownPerson   = errors.New("unknown person")
	errUnknownPageFile = errors.New("unknown page file")
)

// PageSummary is a page as it appears in listings
type PageSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PageData is a page with its files and people
type PageData struct {
	models.Page
	People []AuthorData `json:"people"`
}

func pageData(p *models.Page, baseURL string) PageData {
	d := PageData{Page: *p, People: make([]AuthorData, len(p.People))}
	d.Files = make([]models.PageFile, len(p.Files))
	for i, f := range p.Files {
		f.URL = utils.PrependBaseURL(f.URL, baseURL)
		d.Files[i] = f
	}
	for i := range p.People {
		d.People[i] = authorData(&p.People[i])
	}
	return d
}

func (h *Handler) pageQuery() *gorm.DB {
	return h.DB.
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_files.name")
		}).
		Preload("People", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.username")
		})
}

func (h *Handler) loadPage(w http.ResponseWriter, r *http.Request) (*models.Page, bool) {
	var page models.Page
	if err := h.pageQuery().First(&page, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		if isNotFound(err) {
			utils.RespondNotFound(w, "Page")
		} else {
			utils.RespondInternalError(w)
		}
		return nil, false
	}
	return &page, true
}

// ListPages lists pages by name
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	cacheKey := utils.BuildCacheKey("pages", "list")
	var summaries []PageSummary
	if err := h.Cache.Get(r.Context(), cacheKey, &summaries); err != nil {
		var pages []models.Page
		if err := h.DB.Select("id", "name").Order("name").Find(&pages).Error; err != nil {
			utils.RespondInternalError(w)
			return
		}
		summaries = make([]PageSummary, len(pages))
		for i, p := range pages {
			summaries[i] = PageSummary{ID: p.ID, Name: p.Name}
		}
		if err := h.Cache.Set(r.Context(), cacheKey, summaries, utils.CacheTTLPagesList); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			log.Printf("Failed to cache pages: %v", err)
		}
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"pages": summaries}, nil)
}

// GetPage shows a page with its rendered content
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, pageData(page, h.Settings.BaseURL), nil)
}

func resolvePeople(db *gorm.DB, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) != len(uniqueIDs(ids)) {
		return nil, errUnknownPerson
	}
	return users, nil
}

func resolvePageFiles(db *gorm.DB, ids []string) ([]models.PageFile, error) {
	files := []models.PageFile{}
	if len(ids) == 0 {
		return files, nil
	}
	if err := db.Where("id IN ?", ids).Find(&files).Error; err != nil {
		return nil, err
	}
	if len(files) != len(uniqueIDs(ids)) {
		return nil, errUnknownPageFile
	}
	return files, nil
}

func uniqueIDs(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func respondPageRelationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnknownPerson):
		utils.RespondValidationError(w, map[string]string{"people": "Unknown user"})
	case errors.Is(err, errUnknownPageFile):
		utils.RespondValidationError(w, map[string]string{"files": "Unknown file"})
	default:
		log.Printf("Failed to save page: %v", err)
		utils.RespondInternalError(w)
	}
}

// CreatePage adds a page (admin only)
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req validators.PageRequest
	if !decode(w, r, &req) {
		return
	}

	contentHTML, ok := h.renderMarkdown(w, req.Content)
	if !ok {
		return
	}

	page := models.Page{Name: req.Name, Content: req.Content, ContentHTML: contentHTML}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		people, err := resolvePeople(tx, req.People)
		if err != nil {
			return err
		}
		files, err := resolvePageFiles(tx, req.Files)
		if err != nil {
			return err
		}
		page.People = people
		page.Files = files
		return tx.Omit("People.*", "Files.*").Create(&page).Error
	})
	if err != nil {
		respondPageRelationError(w, err)
		return
	}

	h.invalidate(r, "pages:*")

	r = mux.SetURLVars(r, map[string]string{"id": page.ID})
	created, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, pageData(created, h.Settings.BaseURL), nil)
}

// UpdatePage replaces a page's content, people and files (admin only)
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}

	var req validators.PageRequest
	if !decode(w, r, &req) {
		return
	}

	contentHTML, ok := h.renderMarkdown(w, req.Content)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		people, err := resolvePeople(tx, req.People)
		if err != nil {
			return err
		}
		files, err := resolvePageFiles(tx, req.Files)
		if err != nil {
			return err
		}
		if err := tx.Model(page).Updates(map[string]interface{}{
			"name":         req.Name,
			"content":      req.Content,
			"content_html": contentHTML,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(page).Association("People").Replace(people); err != nil {
			return err
		}
		return tx.Model(page).Association("Files").Replace(files)
	})
	if err != nil {
		respondPageRelationError(w, err)
		return
	}

	h.invalidate(r, "pages:*")

	updated, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, http.StatusOK, pageData(updated, h.Settings.BaseURL), nil)
}

// DeletePage removes a page and its links. Files stay for other pages.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"page_file_links", "page_people"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE page_id = ?", page.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(page).Error
	})
	if err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "pages:*")
	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "Page deleted successfully",
	}, nil)
}

// UploadPageFile stores a file and links it to the page (admin only).
// Multipart fields: file, name and description.
func (h *Handler) UploadPageFile(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(utils.MaxUploadSize); err != nil {
		utils.RespondBadRequest(w, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondBadRequest(w, "No file uploaded")
		return
	}
	defer file.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	result, err := utils.SaveUpload(file, header, "pages")
	if err != nil {
		if errors.Is(err, utils.ErrInvalidUpload) {
			utils.RespondError(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
			return
		}
		log.Printf("Failed to store page file: %v", err)
		utils.RespondInternalError(w)
		return
	}

	pageFile := models.PageFile{
		Name:        name,
		Description: r.FormValue("description"),
		URL:         result.URL,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pageFile).Error; err != nil {
			return err
		}
		return tx.Model(page).Association("Files").Append(&pageFile)
	})
	if err != nil {
		if delErr := utils.DeleteUpload(result.URL); delErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", result.URL, delErr)
		}
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "pages:*")

	pageFile.URL = utils.PrependBaseURL(pageFile.URL, h.Settings.BaseURL)
	utils.RespondSuccess(w, http.StatusCreated, pageFile, nil)
}
