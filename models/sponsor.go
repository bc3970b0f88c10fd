package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type SponsorshipPackage struct {
	ID               string  `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Order            int     `gorm:"column:sort_order" json:"order"`
	Name             string  `gorm:"type:varchar(255);not null" json:"name"`
	NumberAvailable  *int    `json:"number_available"`
	Currency         string  `gorm:"type:varchar(16);not null" json:"currency"`
	Price            float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	ShortDescription string  `gorm:"type:text" json:"short_description"`
	Description      string  `gorm:"type:text" json:"description"`
	DescriptionHTML  string  `gorm:"column:description_html;type:text" json:"description_html"`
	Symbol           string  `gorm:"type:varchar(1)" json:"symbol"`
}

// BeforeCreate hook to generate CUID
func (p *SponsorshipPackage) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	if p.Currency == "" {
		p.Currency = "$"
	}
	return nil
}

type Sponsor struct {
	ID              string         `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Order           int            `gorm:"column:sort_order" json:"order"`
	Name            string         `gorm:"type:varchar(255);not null" json:"name"`
	Description     string         `gorm:"type:text" json:"description"`
	DescriptionHTML string         `gorm:"column:description_html;type:text" json:"description_html"`
	URL             string         `gorm:"column:url;type:varchar(1024)" json:"url"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Packages []SponsorshipPackage `gorm:"many2many:sponsor_packages;" json:"packages,omitempty"`
	Files    []SponsorFile        `gorm:"foreignKey:SponsorID" json:"files,omitempty"`
}

// BeforeCreate hook to generate CUID
func (s *Sponsor) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}

// Symbols concatenates the symbols of every package taken. Packages must be
// preloaded in display order.
func (s *Sponsor) Symbols() string {
	var b strings.Builder
	for _, p := range s.Packages {
		b.WriteString(p.Symbol)
	}
	return b.String()
}

// Symbol of the highest level package the sponsor has taken
func (s *Sponsor) Symbol() string {
	if len(s.Packages) == 0 {
		return ""
	}
	return s.Packages[0].Symbol
}

// SponsorFile is an uploaded logo or document, tagged for use in the
// sponsor's description markdown.
type SponsorFile struct {
	ID          string    `gorm:"primaryKey;type:varchar(25)" json:"id"`
	SponsorID   string    `gorm:"type:varchar(25);not null;index" json:"sponsor_id"`
	Tag         string    `gorm:"type:varchar(255);not null" json:"tag"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `gorm:"column:url;type:varchar(1024);not null" json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook to generate CUID
func (f *SponsorFile) BeforeCreate(tx *gorm.DB) error {
	newID(&f.ID)
	return nil
}
