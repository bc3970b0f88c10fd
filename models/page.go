package models

import (
	"time"

	"gorm.io/gorm"
)

// Page is an extra page for the site with markdown content
type Page struct {
	ID          string    `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Content     string    `gorm:"type:text" json:"content"`
	ContentHTML string    `gorm:"column:content_html;type:text" json:"content_html"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Files are images and documents referenced from Content. People are
	// shown with the page, e.g. session chairs.
	Files  []PageFile `gorm:"many2many:page_file_links;" json:"files"`
	People []User     `gorm:"many2many:page_people;" json:"-"`
}

// BeforeCreate hook to generate CUID
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

// PageFile is an uploaded file for use in page markup. A file may be
// linked from several pages.
type PageFile struct {
	ID          string    `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `gorm:"column:url;type:varchar(1024);not null" json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook to generate CUID
func (f *PageFile) BeforeCreate(tx *gorm.DB) error {
	newID(&f.ID)
	return nil
}
