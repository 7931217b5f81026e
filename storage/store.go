package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"content-pulse/models"
	"content-pulse/services"
)

// Store implementiert die Persistenz-Interfaces der Services auf Basis von gorm.
type Store struct {
	DB *gorm.DB
}

var (
	_ services.ArticleStore     = (*Store)(nil)
	_ services.LinkStore        = (*Store)(nil)
	_ services.ReplacementStore = (*Store)(nil)
	_ services.RunStore         = (*Store)(nil)
)

// NewStore erstellt einen Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func lookupErr(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, services.ErrNotFound)
	}
	return persistErr(err, "load "+what+" "+id)
}

func persistErr(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, services.ErrPersistence, err)
}

// ---- Artikel ----

// CreateArticle legt einen Artikel an; Defaults werden im Modell-Hook gesetzt.
func (s *Store) CreateArticle(ctx context.Context, a *models.Article) error {
	if err := s.DB.WithContext(ctx).Create(a).Error; err != nil {
		return persistErr(err, "create article")
	}
	return nil
}

// SaveArticle speichert einen bearbeiteten Artikel; updated_at wird dabei aktualisiert.
func (s *Store) SaveArticle(ctx context.Context, a *models.Article) error {
	a.Normalize()
	res := s.DB.WithContext(ctx).Model(a).Where("id = ?", a.ID).Select("*").Omit("id", "created_at", "score", "voice_search_ready", "ai_ready", "scored_at").Updates(a)
	if res.Error != nil {
		return persistErr(res.Error, "save article "+a.ID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %s: %w", a.ID, services.ErrNotFound)
	}
	return nil
}

// GetArticle lädt einen Artikel per ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	if err := s.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "article", id)
	}
	return &a, nil
}

func (s *Store) articleQuery(ctx context.Context, f services.ArticleFilter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&models.Article{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.Language != "" {
		q = q.Where("language = ?", f.Language)
	}
	if f.FunnelStage != "" {
		q = q.Where("funnel_stage = ?", f.FunnelStage)
	}
	if f.Topic != "" {
		q = q.Where("topic = ?", f.Topic)
	}
	if f.MaxScore != nil {
		q = q.Where("score IS NOT NULL AND score <= ?", *f.MaxScore)
	}
	if f.Unscored {
		q = q.Where("score IS NULL")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

// ListArticles lädt Artikel per Filter in Anlagereihenfolge.
func (s *Store) ListArticles(ctx context.Context, f services.ArticleFilter) ([]models.Article, error) {
	var out []models.Article
	if err := s.articleQuery(ctx, f).Order("created_at asc, id asc").Find(&out).Error; err != nil {
		return nil, persistErr(err, "list articles")
	}
	return out, nil
}

// ListArticleIDs liefert die IDs in stabiler Reihenfolge.
func (s *Store) ListArticleIDs(ctx context.Context, f services.ArticleFilter) ([]string, error) {
	var ids []string
	if err := s.articleQuery(ctx, f).Order("created_at asc, id asc").Pluck("id", &ids).Error; err != nil {
		return nil, persistErr(err, "list article ids")
	}
	return ids, nil
}

// CountTranslations zählt Artikel mit gleichem Slug in anderen Sprachen.
func (s *Store) CountTranslations(ctx context.Context, slug, language string) (int, error) {
	if slug == "" {
		return 0, nil
	}
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Article{}).
		Where("slug = ? AND language <> ?", slug, language).
		Count(&n).Error
	if err != nil {
		return 0, persistErr(err, "count translations")
	}
	return int(n), nil
}

// UpdateScore speichert die Bewertung ohne updated_at zu verändern, damit die Aktualität erhalten bleibt.
func (s *Store) UpdateScore(ctx context.Context, id string, u services.ScoreUpdate) error {
	res := s.DB.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"score":              u.Score,
		"voice_search_ready": u.VoiceSearchReady,
		"ai_ready":           u.AIReady,
		"scored_at":          u.ScoredAt,
	})
	if res.Error != nil {
		return persistErr(res.Error, "update score of article "+id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// ListLowScoring liefert bewertete Artikel unter der Schwelle, schlechteste zuerst.
func (s *Store) ListLowScoring(ctx context.Context, below float64, limit int) ([]models.Article, error) {
	var out []models.Article
	q := s.DB.WithContext(ctx).Where("score IS NOT NULL AND score < ?", below).Order("score asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, persistErr(err, "list low scoring articles")
	}
	return out, nil
}

// ScoreValues liefert alle gespeicherten Scores.
func (s *Store) ScoreValues(ctx context.Context) ([]float64, error) {
	var scores []float64
	if err := s.DB.WithContext(ctx).Model(&models.Article{}).Where("score IS NOT NULL").Pluck("score", &scores).Error; err != nil {
		return nil, persistErr(err, "load scores")
	}
	return scores, nil
}

func updateContent(tx *gorm.DB, articleID, content string) error {
	res := tx.Model(&models.Article{}).Where("id = ?", articleID).UpdateColumn("content", content)
	if res.Error != nil {
		return persistErr(res.Error, "update content of article "+articleID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %s: %w", articleID, services.ErrNotFound)
	}
	return nil
}

// ---- Links ----

// GetLink lädt einen Link per ID.
func (s *Store) GetLink(ctx context.Context, id string) (*models.ExternalLink, error) {
	var l models.ExternalLink
	if err := s.DB.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "link", id)
	}
	return &l, nil
}

func (s *Store) linkQuery(ctx context.Context, f services.LinkFilter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&models.ExternalLink{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.ArticleID != "" {
		q = q.Where("article_id = ?", f.ArticleID)
	}
	if f.ArticleType != "" {
		q = q.Where("article_type = ?", f.ArticleType)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("health_status IN ?", f.Statuses)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q.Order("created_at asc, id asc")
}

// ListLinks lädt Links per Filter.
func (s *Store) ListLinks(ctx context.Context, f services.LinkFilter) ([]models.ExternalLink, error) {
	var out []models.ExternalLink
	if err := s.linkQuery(ctx, f).Find(&out).Error; err != nil {
		return nil, persistErr(err, "list links")
	}
	return out, nil
}

// ListLinkIDs liefert die IDs der Links in stabiler Reihenfolge.
func (s *Store) ListLinkIDs(ctx context.Context, f services.LinkFilter) ([]string, error) {
	var ids []string
	if err := s.linkQuery(ctx, f).Pluck("id", &ids).Error; err != nil {
		return nil, persistErr(err, "list link ids")
	}
	return ids, nil
}

// CountVerified zählt verifizierte Links eines Artikels.
func (s *Store) CountVerified(ctx context.Context, articleID string) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ExternalLink{}).
		Where("article_id = ? AND verified = ?", articleID, true).
		Count(&n).Error
	if err != nil {
		return 0, persistErr(err, "count verified links")
	}
	return int(n), nil
}

// UpdateHealth speichert das Prüfergebnis und erhöht check_count.
func (s *Store) UpdateHealth(ctx context.Context, id string, u services.HealthUpdate) error {
	res := s.DB.WithContext(ctx).Model(&models.ExternalLink{}).Where("id = ?", id).Updates(map[string]interface{}{
		"health_status":   u.Status,
		"status_code":     u.StatusCode,
		"redirect_url":    u.RedirectURL,
		"domain":          u.Domain,
		"category":        u.Category,
		"last_checked_at": u.CheckedAt,
		"check_count":     gorm.Expr("check_count + 1"),
	})
	if res.Error != nil {
		return persistErr(res.Error, "update health of link "+id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("link %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// ApplyInsertion speichert neuen Text und neue Links atomar.
func (s *Store) ApplyInsertion(ctx context.Context, articleID, content string, links []models.ExternalLink) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateContent(tx, articleID, content); err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		if err := tx.Create(&links).Error; err != nil {
			return persistErr(err, "insert links")
		}
		return nil
	})
}

// RemoveLink speichert den Text ohne den Link und löscht Link samt Vorschlägen.
func (s *Store) RemoveLink(ctx context.Context, linkID, articleID, content string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateContent(tx, articleID, content); err != nil {
			return err
		}
		if err := tx.Where("link_id = ?", linkID).Delete(&models.LinkReplacement{}).Error; err != nil {
			return persistErr(err, "delete replacements of link "+linkID)
		}
		res := tx.Where("id = ?", linkID).Delete(&models.ExternalLink{})
		if res.Error != nil {
			return persistErr(res.Error, "delete link "+linkID)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link %s: %w", linkID, services.ErrNotFound)
		}
		return nil
	})
}

// ---- Ersatzvorschläge ----

// CreateReplacements speichert neue Vorschläge.
func (s *Store) CreateReplacements(ctx context.Context, proposals []models.LinkReplacement) error {
	if len(proposals) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&proposals).Error; err != nil {
		return persistErr(err, "create replacements")
	}
	return nil
}

// GetReplacement lädt einen Vorschlag per ID.
func (s *Store) GetReplacement(ctx context.Context, id string) (*models.LinkReplacement, error) {
	var r models.LinkReplacement
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "replacement", id)
	}
	return &r, nil
}

// ListReplacements lädt Vorschläge, nach Link und Rang sortiert.
func (s *Store) ListReplacements(ctx context.Context, f services.ReplacementFilter) ([]models.LinkReplacement, error) {
	q := s.DB.WithContext(ctx).Model(&models.LinkReplacement{})
	if f.LinkID != "" {
		q = q.Where("link_id = ?", f.LinkID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.LinkReplacement
	if err := q.Order("link_id asc, rank asc").Find(&out).Error; err != nil {
		return nil, persistErr(err, "list replacements")
	}
	return out, nil
}

// PendingLinkIDs liefert alle Links mit offenen Vorschlägen.
func (s *Store) PendingLinkIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.LinkReplacement{}).
		Where("status = ?", models.ReplacementPending).
		Distinct().Pluck("link_id", &ids).Error
	if err != nil {
		return nil, persistErr(err, "list pending link ids")
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// RejectReplacement lehnt einen offenen Vorschlag ab.
func (s *Store) RejectReplacement(ctx context.Context, id string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.LinkReplacement{}).
		Where("id = ? AND status = ?", id, models.ReplacementPending).
		Updates(map[string]interface{}{"status": models.ReplacementRejected, "decided_at": at})
	if res.Error != nil {
		return persistErr(res.Error, "reject replacement "+id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("replacement %s is not pending: %w", id, services.ErrValidation)
	}
	return nil
}

// ApproveReplacement ersetzt den Link in Text und Datenbank und schließt alle Vorschläge des Links.
func (s *Store) ApproveReplacement(ctx context.Context, a services.Approval) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.LinkReplacement{}).
			Where("id = ? AND status = ?", a.ReplacementID, models.ReplacementPending).
			Updates(map[string]interface{}{"status": models.ReplacementApproved, "decided_at": a.DecidedAt})
		if res.Error != nil {
			return persistErr(res.Error, "approve replacement "+a.ReplacementID)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("replacement %s is not pending: %w", a.ReplacementID, services.ErrValidation)
		}
		if err := tx.Model(&models.LinkReplacement{}).
			Where("link_id = ? AND id <> ? AND status = ?", a.LinkID, a.ReplacementID, models.ReplacementPending).
			Updates(map[string]interface{}{"status": models.ReplacementRejected, "decided_at": a.DecidedAt}).Error; err != nil {
			return persistErr(err, "reject sibling replacements")
		}
		if err := updateContent(tx, a.ArticleID, a.Content); err != nil {
			return err
		}
		res = tx.Model(&models.ExternalLink{}).Where("id = ?", a.LinkID).Updates(map[string]interface{}{
			"url":             a.NewURL,
			"domain":          a.Domain,
			"category":        a.Category,
			"health_status":   models.HealthHealthy,
			"status_code":     a.StatusCode,
			"redirect_url":    nil,
			"verified":        true,
			"last_checked_at": a.DecidedAt,
		})
		if res.Error != nil {
			return persistErr(res.Error, "update link "+a.LinkID)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link %s: %w", a.LinkID, services.ErrNotFound)
		}
		return nil
	})
}

// ---- Batch-Läufe ----

// CreateRun legt einen Lauf an.
func (s *Store) CreateRun(ctx context.Context, run *models.BatchRun) error {
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return persistErr(err, "create run")
	}
	return nil
}

// GetRun lädt einen Lauf per ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.BatchRun, error) {
	var run models.BatchRun
	if err := s.DB.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "run", id)
	}
	return &run, nil
}

// SaveRun speichert Fortschritt und Report eines Laufs.
func (s *Store) SaveRun(ctx context.Context, run *models.BatchRun) error {
	if err := s.DB.WithContext(ctx).Save(run).Error; err != nil {
		return persistErr(err, "save run "+run.ID)
	}
	return nil
}
