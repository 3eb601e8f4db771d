package models

import (
	"time"

	"gorm.io/gorm"
)

type DeckQuestion struct {
	ID         uint           `json:"-" gorm:"primaryKey"`
	DeckID     uint           `json:"-" gorm:"not null;index"`
	QuestionID string         `json:"id" gorm:"not null"`
	Text       string         `json:"text" gorm:"not null"`
	Answer     string         `json:"answer" gorm:"not null"`
	Fake       string         `json:"fake" gorm:"not null"`
	Image      *string        `json:"image"`
	Order      int            `json:"-" gorm:"not null"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Deck Deck `json:"-"`
}
