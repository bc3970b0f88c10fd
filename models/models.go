package models

import (
	"net/url"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleUser     Role = "user"
)

// newID fills an empty string primary key with a CUID
func newID(id *string) {
	if *id == "" {
		*id = cuid.New()
	}
}

type User struct {
	ID             string         `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Username       string         `gorm:"uniqueIndex;type:varchar(150);not null" json:"username"`
	Name           string         `gorm:"type:varchar(255)" json:"name"`
	Email          string         `gorm:"uniqueIndex;type:varchar(254);not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	Role           Role           `gorm:"type:varchar(20)" json:"role"`
	ContactNumber  string         `gorm:"type:varchar(16)" json:"contact_number,omitempty"`
	Bio            string         `gorm:"type:text" json:"bio,omitempty"`
	Homepage       string         `gorm:"type:varchar(256)" json:"homepage,omitempty"`
	TwitterHandle  string         `gorm:"type:varchar(15)" json:"twitter_handle,omitempty"`
	GithubUsername string         `gorm:"type:varchar(32)" json:"github_username,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Groups []Group    `gorm:"many2many:user_groups;" json:"groups,omitempty"`
	KV     []KeyValue `gorm:"many2many:user_kv;" json:"-"`
}

// BeforeCreate hook to generate CUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName is the full name when known, else the username
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// HomepageURL prepends http:// to a homepage stored without a scheme so
// templates never produce relative links.
func (u *User) HomepageURL() string {
	if u.Homepage == "" {
		return ""
	}
	if parsed, err := url.Parse(u.Homepage); err == nil && parsed.Scheme != "" {
		return u.Homepage
	}
	abs := "http://" + u.Homepage
	if parsed, err := url.Parse(abs); err == nil && parsed.Scheme == "http" && parsed.Host != "" {
		return abs
	}
	return u.Homepage
}

// InGroup reports membership by group ID. Groups must be preloaded.
func (u *User) InGroup(groupID string) bool {
	for _, g := range u.Groups {
		if g.ID == groupID {
			return true
		}
	}
	return false
}

type Group struct {
	ID        string    `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name      string    `gorm:"uniqueIndex;type:varchar(150);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook to generate CUID
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	newID(&g.ID)
	return nil
}
