package models

import "gorm.io/gorm"

// Document is a named workspace program in its serialized form.
type Document struct {
	gorm.Model
	Name    string `gorm:"uniqueIndex;not null" json:"name"`
	Content string `gorm:"not null" json:"content"`
}
