package models

import (
	"time"

	"gorm.io/gorm"
)

type Deck struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Questions []DeckQuestion `json:"questions,omitempty" gorm:"foreignKey:DeckID"`
}
