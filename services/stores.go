package services

import (
	"context"
	"time"

	"content-pulse/models"
)

// ArticleStore ist der Teil der Artikel-Persistenz, den die Services brauchen.
type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	ListArticleIDs(ctx context.Context, filter ArticleFilter) ([]string, error)
	CountTranslations(ctx context.Context, slug, language string) (int, error)
	UpdateScore(ctx context.Context, id string, update ScoreUpdate) error
	ListLowScoring(ctx context.Context, below float64, limit int) ([]models.Article, error)
	ScoreValues(ctx context.Context) ([]float64, error)
}

// ArticleFilter wählt Artikel für Batch-Läufe aus. Leere Felder filtern nicht.
type ArticleFilter struct {
	IDs         []string `json:"ids,omitempty"`
	Language    string   `json:"language,omitempty"`
	FunnelStage string   `json:"funnel_stage,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	MaxScore    *float64 `json:"max_score,omitempty"`
	Unscored    bool     `json:"unscored,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// ScoreUpdate sind die abgeleiteten Felder, die nach einer Bewertung gespeichert werden.
type ScoreUpdate struct {
	Score            float64
	VoiceSearchReady bool
	AIReady          bool
	ScoredAt         time.Time
}

// LinkStore verwaltet ExternalLink-Zeilen.
type LinkStore interface {
	GetLink(ctx context.Context, id string) (*models.ExternalLink, error)
	ListLinks(ctx context.Context, filter LinkFilter) ([]models.ExternalLink, error)
	ListLinkIDs(ctx context.Context, filter LinkFilter) ([]string, error)
	CountVerified(ctx context.Context, articleID string) (int, error)
	UpdateHealth(ctx context.Context, id string, update HealthUpdate) error
	// ApplyInsertion speichert neuen Artikeltext und neue Links in einer Transaktion.
	ApplyInsertion(ctx context.Context, articleID, content string, links []models.ExternalLink) error
	// RemoveLink speichert den Text ohne den Link und löscht die Zeile in einer Transaktion.
	RemoveLink(ctx context.Context, linkID, articleID, content string) error
}

// LinkFilter wählt Links aus. Leere Felder filtern nicht.
type LinkFilter struct {
	IDs         []string              `json:"ids,omitempty"`
	ArticleID   string                `json:"article_id,omitempty"`
	ArticleType string                `json:"article_type,omitempty"`
	Statuses    []models.HealthStatus `json:"statuses,omitempty"`
	Limit       int                   `json:"limit,omitempty"`
}

// HealthUpdate ist das Ergebnis einer Prüfung, das der Health Monitor speichert.
type HealthUpdate struct {
	Status      models.HealthStatus
	StatusCode  int
	RedirectURL *string
	Domain      string
	Category    string
	CheckedAt   time.Time
}

// ReplacementStore verwaltet Ersatzvorschläge.
type ReplacementStore interface {
	CreateReplacements(ctx context.Context, proposals []models.LinkReplacement) error
	GetReplacement(ctx context.Context, id string) (*models.LinkReplacement, error)
	ListReplacements(ctx context.Context, filter ReplacementFilter) ([]models.LinkReplacement, error)
	PendingLinkIDs(ctx context.Context) (map[string]bool, error)
	RejectReplacement(ctx context.Context, id string, at time.Time) error
	// ApproveReplacement führt alle Änderungen einer Freigabe in einer Transaktion aus.
	ApproveReplacement(ctx context.Context, approval Approval) error
}

// ReplacementFilter wählt Vorschläge aus.
type ReplacementFilter struct {
	LinkID string                   `json:"link_id,omitempty"`
	Status models.ReplacementStatus `json:"status,omitempty"`
	Limit  int                      `json:"limit,omitempty"`
}

// Approval beschreibt eine freigegebene Ersetzung.
type Approval struct {
	ReplacementID string
	LinkID        string
	ArticleID     string
	Content       string
	NewURL        string
	Domain        string
	Category      string
	StatusCode    int
	DecidedAt     time.Time
}

// RunStore speichert Batch-Läufe für Pause und Fortsetzung.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.BatchRun) error
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)
	SaveRun(ctx context.Context, run *models.BatchRun) error
}
