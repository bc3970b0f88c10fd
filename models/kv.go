package models

import (
	"time"

	"gorm.io/gorm"
)

// KeyNameMaxLen bounds KeyValue.Key
const KeyNameMaxLen = 64

// KeyValue is a JSON value owned by a group. Only members of the group may
// read or change it.
type KeyValue struct {
	ID        string      `gorm:"primaryKey;type:varchar(25)" json:"id"`
	GroupID   string      `gorm:"type:varchar(25);not null;index" json:"group"`
	Key       string      `gorm:"type:varchar(64);not null;index" json:"key"`
	Value     interface{} `gorm:"serializer:json;type:text" json:"value"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

// BeforeCreate hook to generate CUID
func (kv *KeyValue) BeforeCreate(tx *gorm.DB) error {
	newID(&kv.ID)
	return nil
}
