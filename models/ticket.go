package models

import (
	"time"

	"gorm.io/gorm"
)

type TicketType struct {
	ID   string `gorm:"primaryKey;type:varchar(25)" json:"id"`
	Name string `gorm:"uniqueIndex;type:varchar(32);not null" json:"name"`
}

// BeforeCreate hook to generate CUID
func (tt *TicketType) BeforeCreate(tx *gorm.DB) error {
	newID(&tt.ID)
	return nil
}

// Ticket is identified by the barcode printed on it by the ticketing
// provider.
type Ticket struct {
	Barcode   int64     `gorm:"primaryKey;autoIncrement:false" json:"barcode"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	TypeID    string    `gorm:"type:varchar(25);not null;index" json:"type_id"`
	UserID    *string   `gorm:"type:varchar(25);index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Type TicketType `gorm:"foreignKey:TypeID" json:"type"`
	User *User      `gorm:"foreignKey:UserID" json:"-"`
}

func (t *Ticket) Claimed() bool {
	return t.UserID != nil
}
