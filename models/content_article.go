package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FunnelStage ordnet einen Artikel im Conversion-Funnel ein.
type FunnelStage string

const (
	FunnelTOFU FunnelStage = "TOFU"
	FunnelMOFU FunnelStage = "MOFU"
	FunnelBOFU FunnelStage = "BOFU"
)

// Article repräsentiert einen Content-Datensatz, dessen Text Links aufnimmt und der bewertet wird.
type Article struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string      `json:"slug" gorm:"index"`
	Title       string      `json:"title" gorm:"not null;default:''"`
	Content     string      `json:"content" gorm:"type:text"`
	Language    string      `json:"language" gorm:"index;default:'en'"`
	FunnelStage FunnelStage `json:"funnel_stage" gorm:"index;default:'TOFU'"`
	Topic       string      `json:"topic,omitempty" gorm:"index"`
	Published   bool        `json:"published"`

	// Speakable-Inhalte für Sprachassistenten
	SpeakableQuestions datatypes.JSON `json:"speakable_questions,omitempty" gorm:"type:jsonb"`
	SpeakableAnswer    string         `json:"speakable_answer,omitempty" gorm:"type:text"`

	// Geo-Koordinaten, nur gültig wenn beide gesetzt sind
	GeoLat *float64 `json:"geo_lat,omitempty"`
	GeoLng *float64 `json:"geo_lng,omitempty"`

	// Autor & Reviewer (E-E-A-T)
	AuthorID          *string `json:"author_id,omitempty"`
	AuthorName        string  `json:"author_name,omitempty"`
	AuthorCredentials string  `json:"author_credentials,omitempty"`
	ReviewerID        *string `json:"reviewer_id,omitempty"`
	ReviewerName      string  `json:"reviewer_name,omitempty"`

	// Abgeleitete Bewertung
	Score            *float64   `json:"score,omitempty" gorm:"index"`
	VoiceSearchReady bool       `json:"voice_search_ready" gorm:"default:false"`
	AIReady          bool       `json:"ai_ready" gorm:"default:false"`
	ScoredAt         *time.Time `json:"scored_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}

// BeforeCreate vergibt die ID und normalisiert optionale Felder an der Store-Grenze.
func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Normalize()
	return nil
}

// Normalize setzt validierte Defaults für Sprache, Funnel-Stufe und Speakable-Fragen.
func (a *Article) Normalize() {
	a.Language = strings.ToLower(strings.TrimSpace(a.Language))
	if a.Language == "" {
		a.Language = "en"
	}
	switch stage := FunnelStage(strings.ToUpper(strings.TrimSpace(string(a.FunnelStage)))); stage {
	case FunnelTOFU, FunnelMOFU, FunnelBOFU:
		a.FunnelStage = stage
	default:
		a.FunnelStage = FunnelTOFU
	}
	if len(a.SpeakableQuestions) > 0 {
		a.SetQuestions(a.Questions())
	}
}

// Questions dekodiert die Speakable-Fragen; ungültiges JSON zählt als leer.
func (a *Article) Questions() []string {
	if len(a.SpeakableQuestions) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(a.SpeakableQuestions, &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// SetQuestions speichert die Speakable-Fragen als JSON-Array.
func (a *Article) SetQuestions(questions []string) {
	clean := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			clean = append(clean, q)
		}
	}
	data, _ := json.Marshal(clean)
	a.SpeakableQuestions = datatypes.JSON(data)
}

// HasGeo meldet strukturell gültige Koordinaten (Lat und Lng vorhanden).
func (a *Article) HasGeo() bool {
	return a.GeoLat != nil && a.GeoLng != nil
}

// HasAuthor meldet einen Autor per ID oder inline.
func (a *Article) HasAuthor() bool {
	return (a.AuthorID != nil && *a.AuthorID != "") || strings.TrimSpace(a.AuthorName) != ""
}

// HasReviewer meldet einen Reviewer per ID oder inline.
func (a *Article) HasReviewer() bool {
	return (a.ReviewerID != nil && *a.ReviewerID != "") || strings.TrimSpace(a.ReviewerName) != ""
}
