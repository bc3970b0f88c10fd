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

var errUnknownPackage = errors.New("unknown sponsorship package")

// SponsorData adds the package symbols to a sponsor
type SponsorData struct {
	models.Sponsor
	Symbol  string `json:"symbol"`
	Symbols string `json:"symbols"`
}

func sponsorData(s *models.Sponsor, baseURL string) SponsorData {
	for i := range s.Files {
		s.Files[i].URL = utils.PrependBaseURL(s.Files[i].URL, baseURL)
	}
	return SponsorData{Sponsor: *s, Symbol: s.Symbol(), Symbols: s.Symbols()}
}

func (h *Handler) sponsorQuery() *gorm.DB {
	return h.DB.
		Preload("Packages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sponsorship_packages.sort_order, sponsorship_packages.name")
		}).
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at")
		})
}

// ListSponsors lists sponsors in display order
func (h *Handler) ListSponsors(w http.ResponseWriter, r *http.Request) {
	cacheKey := utils.BuildCacheKey("sponsors", "list")
	var cached []SponsorData
	if err := h.Cache.Get(r.Context(), cacheKey, &cached); err == nil {
		utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"sponsors": cached}, nil)
		return
	}

	var sponsors []models.Sponsor
	if err := h.sponsorQuery().Order("sort_order, name").Find(&sponsors).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	data := make([]SponsorData, len(sponsors))
	for i := range sponsors {
		data[i] = sponsorData(&sponsors[i], h.Settings.BaseURL)
	}

	if err := h.Cache.Set(r.Context(), cacheKey, data, utils.CacheTTLSponsorsList); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
		log.Printf("Failed to cache sponsors: %v", err)
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"sponsors": data}, nil)
}

// GetSponsor shows a single sponsor
func (h *Handler) GetSponsor(w http.ResponseWriter, r *http.Request) {
	var sponsor models.Sponsor
	if err := h.sponsorQuery().First(&sponsor, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		utils.RespondNotFound(w, "Sponsor")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, sponsorData(&sponsor, h.Settings.BaseURL), nil)
}

// ListPackages lists sponsorship packages in display order
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	cacheKey := utils.BuildCacheKey("sponsors", "packages")
	var packages []models.SponsorshipPackage
	if err := h.Cache.Get(r.Context(), cacheKey, &packages); err != nil {
		if err := h.DB.Order("sort_order, name").Find(&packages).Error; err != nil {
			utils.RespondInternalError(w)
			return
		}
		if err := h.Cache.Set(r.Context(), cacheKey, packages, utils.CacheTTLPackagesList); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			log.Printf("Failed to cache packages: %v", err)
		}
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"packages": packages}, nil)
}

// CreatePackage adds a sponsorship package (admin only)
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req validators.PackageRequest
	if !decode(w, r, &req) {
		return
	}

	descriptionHTML, ok := h.renderMarkdown(w, req.Description)
	if !ok {
		return
	}

	pkg := models.SponsorshipPackage{
		Order:            req.Order,
		Name:             req.Name,
		NumberAvailable:  req.NumberAvailable,
		Currency:         req.Currency,
		Price:            req.Price,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		DescriptionHTML:  descriptionHTML,
		Symbol:           req.Symbol,
	}
	if err := h.DB.Create(&pkg).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "sponsors:*")
	utils.RespondSuccess(w, http.StatusCreated, pkg, nil)
}

func resolvePackages(db *gorm.DB, ids []string) ([]models.SponsorshipPackage, error) {
	if len(ids) == 0 {
		return []models.SponsorshipPackage{}, nil
	}
	var packages []models.SponsorshipPackage
	if err := db.Where("id IN ?", ids).Find(&packages).Error; err != nil {
		return nil, err
	}
	if len(packages) != len(ids) {
		return nil, errUnknownPackage
	}
	return packages, nil
}

// CreateSponsor adds a sponsor (admin only)
func (h *Handler) CreateSponsor(w http.ResponseWriter, r *http.Request) {
	var req validators.SponsorRequest
	if !decode(w, r, &req) {
		return
	}

	packages, err := resolvePackages(h.DB, req.Packages)
	if err != nil {
		if errors.Is(err, errUnknownPackage) {
			utils.RespondValidationError(w, map[string]string{"packages": "Unknown sponsorship package"})
			return
		}
		utils.RespondInternalError(w)
		return
	}

	descriptionHTML, ok := h.renderMarkdown(w, req.Description)
	if !ok {
		return
	}

	sponsor := models.Sponsor{
		Order:           req.Order,
		Name:            req.Name,
		Description:     req.Description,
		DescriptionHTML: descriptionHTML,
		URL:             req.URL,
		Packages:        packages,
	}
	if err := h.DB.Omit("Packages.*").Create(&sponsor).Error; err != nil {
		log.Printf("Failed to create sponsor: %v", err)
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "sponsors:*")
	utils.RespondSuccess(w, http.StatusCreated, sponsorData(&sponsor, h.Settings.BaseURL), nil)
}

// UpdateSponsor replaces a sponsor's fields and packages (admin only)
func (h *Handler) UpdateSponsor(w http.ResponseWriter, r *http.Request) {
	var sponsor models.Sponsor
	if err := h.DB.First(&sponsor, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		utils.RespondNotFound(w, "Sponsor")
		return
	}

	var req validators.SponsorRequest
	if !decode(w, r, &req) {
		return
	}

	descriptionHTML, ok := h.renderMarkdown(w, req.Description)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		packages, err := resolvePackages(tx, req.Packages)
		if err != nil {
			return err
		}
		if err := tx.Model(&sponsor).Updates(map[string]interface{}{
			"sort_order":       req.Order,
			"name":             req.Name,
			"description":      req.Description,
			"description_html": descriptionHTML,
			"url":              req.URL,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&sponsor).Association("Packages").Replace(packages)
	})
	if err != nil {
		if errors.Is(err, errUnknownPackage) {
			utils.RespondValidationError(w, map[string]string{"packages": "Unknown sponsorship package"})
			return
		}
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "sponsors:*")

	if err := h.sponsorQuery().First(&sponsor, "id = ?", sponsor.ID).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, sponsorData(&sponsor, h.Settings.BaseURL), nil)
}

// DeleteSponsor soft deletes a sponsor (admin only)
func (h *Handler) DeleteSponsor(w http.ResponseWriter, r *http.Request) {
	result := h.DB.Delete(&models.Sponsor{}, "id = ?", mux.Vars(r)["id"])
	if result.Error != nil {
		utils.RespondInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondNotFound(w, "Sponsor")
		return
	}

	h.invalidate(r, "sponsors:*")
	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "Sponsor deleted successfully",
	}, nil)
}

// ReorderSponsors sets the display order from the position of each ID in
// the list (admin only)
func (h *Handler) ReorderSponsors(w http.ResponseWriter, r *http.Request) {
	var req validators.ReorderRequest
	if !decode(w, r, &req) {
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		utils.RespondInternalError(w)
		return
	}

	for i, id := range req.IDs {
		result := tx.Model(&models.Sponsor{}).Where("id = ?", id).Update("sort_order", i+1)
		if result.Error != nil {
			tx.Rollback()
			utils.RespondInternalError(w)
			return
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			utils.RespondValidationError(w, map[string]string{"ids": "Unknown sponsor " + id})
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "sponsors:*")
	utils.RespondSuccess(w, http.StatusOK, map[string]string{
		"message": "Sponsors reordered successfully",
	}, nil)
}

// UploadSponsorFile stores a logo or document for a sponsor (admin only).
// Multipart fields: file, name, description and an optional tag.
func (h *Handler) UploadSponsorFile(w http.ResponseWriter, r *http.Request) {
	var sponsor models.Sponsor
	if err := h.DB.First(&sponsor, "id = ?", mux.Vars(r)["id"]).Error; err != nil {
		utils.RespondNotFound(w, "Sponsor")
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
	tag := strings.TrimSpace(r.FormValue("tag"))
	if tag == "" {
		tag = utils.GenerateSlug(name)
	}

	result, err := utils.SaveUpload(file, header, "sponsors")
	if err != nil {
		if errors.Is(err, utils.ErrInvalidUpload) {
			utils.RespondError(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
			return
		}
		log.Printf("Failed to store sponsor file: %v", err)
		utils.RespondInternalError(w)
		return
	}

	sponsorFile := models.SponsorFile{
		SponsorID:   sponsor.ID,
		Tag:         tag,
		Name:        name,
		Description: r.FormValue("description"),
		URL:         result.URL,
	}
	if err := h.DB.Create(&sponsorFile).Error; err != nil {
		if delErr := utils.DeleteUpload(result.URL); delErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", result.URL, delErr)
		}
		utils.RespondInternalError(w)
		return
	}

	h.invalidate(r, "sponsors:*")

	sponsorFile.URL = utils.PrependBaseURL(sponsorFile.URL, h.Settings.BaseURL)
	utils.RespondSuccess(w, http.StatusCreated, sponsorFile, nil)
}
