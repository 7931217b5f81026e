package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReplacementStatus beschreibt die menschliche Entscheidung über einen Vorschlag.
type ReplacementStatus string

const (
	ReplacementPending  ReplacementStatus = "pending"
	ReplacementApproved ReplacementStatus = "approved"
	ReplacementRejected ReplacementStatus = "rejected"
)

// LinkReplacement ist ein Ersatzvorschlag für einen defekten Link. Er wird nie automatisch angewendet.
type LinkReplacement struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LinkID       string            `json:"link_id" gorm:"type:uuid;index;not null"`
	BrokenURL    string            `json:"broken_url" gorm:"type:text"`
	SuggestedURL string            `json:"suggested_url" gorm:"type:text;not null"`
	Reason       string            `json:"reason,omitempty" gorm:"type:text"`
	Relevance    float64           `json:"relevance"`
	Rank         int               `json:"rank"`
	Status       ReplacementStatus `json:"status" gorm:"index;default:'pending'"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (LinkReplacement) TableName() string {
	return "link_replacements"
}

// BeforeCreate vergibt die ID.
func (r *LinkReplacement) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReplacementPending
	}
	return nil
}
