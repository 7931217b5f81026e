package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HealthStatus ist das Ergebnis der letzten Erreichbarkeitsprüfung eines Links.
type HealthStatus string

const (
	HealthPending  HealthStatus = "pending"
	HealthHealthy  HealthStatus = "healthy"
	HealthBroken   HealthStatus = "broken"
	HealthRedirect HealthStatus = "redirect"
	HealthTimeout  HealthStatus = "timeout"
	HealthSSLError HealthStatus = "ssl_error"

	// HealthReplacementSuggested wird nie gespeichert; die API meldet ihn für defekte Links mit offenen Vorschlägen.
	HealthReplacementSuggested HealthStatus = "replacement_suggested"
)

// HealthStatuses listet alle speicherbaren Zustände in Ausgabereihenfolge.
var HealthStatuses = []HealthStatus{HealthPending, HealthHealthy, HealthBroken, HealthRedirect, HealthTimeout, HealthSSLError}

// ExternalLink ist ein in einen Artikel eingefügter Link samt Gesundheitszustand.
type ExternalLink struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ArticleID      string `json:"article_id" gorm:"type:uuid;index;not null"`
	ArticleType    string `json:"article_type" gorm:"index;default:'qa'"`
	URL            string `json:"url" gorm:"type:text;not null"`
	AnchorText     string `json:"anchor_text"`
	ContextSnippet string `json:"context_snippet,omitempty" gorm:"type:text"`
	Domain         string `json:"domain" gorm:"index"`
	Category       string `json:"category,omitempty" gorm:"index"`

	HealthStatus   HealthStatus `json:"health_status" gorm:"index;default:'pending'"`
	StatusCode     int          `json:"status_code"`
	RedirectURL    *string      `json:"redirect_url,omitempty"`
	Verified       bool         `json:"verified" gorm:"default:false"`
	AuthorityScore int          `json:"authority_score"`
	LastCheckedAt  *time.Time   `json:"last_checked_at,omitempty"`
	CheckCount     int          `json:"check_count" gorm:"default:0"`
}

// TableName gibt explizit den Tabellennamen an.
func (ExternalLink) TableName() string {
	return "external_links"
}

// BeforeCreate vergibt die ID und setzt neue Links auf "pending".
func (l *ExternalLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.HealthStatus == "" {
		l.HealthStatus = HealthPending
	}
	if l.ArticleType == "" {
		l.ArticleType = "qa"
	}
	return nil
}
