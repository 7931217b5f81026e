package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"content-pulse/models"
)

// Reviewer setzt menschliche Entscheidungen über Ersatzvorschläge um.
type Reviewer struct {
	Articles     ArticleStore
	Links        LinkStore
	Replacements ReplacementStore
	Prober       *Prober
	Whitelist    *Whitelist
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewReviewer erstellt einen Reviewer.
func NewReviewer(articles ArticleStore, links LinkStore, replacements ReplacementStore, prober *Prober, wl *Whitelist, logger *zap.Logger) *Reviewer {
	return &Reviewer{Articles: articles, Links: links, Replacements: replacements, Prober: prober, Whitelist: wl, Logger: logger, Now: time.Now}
}

func (r *Reviewer) pendingReplacement(ctx context.Context, id string) (*models.LinkReplacement, error) {
	rep, err := r.Replacements.GetReplacement(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != models.ReplacementPending {
		return nil, wrap(ErrValidation, "replacement "+id+" already "+string(rep.Status), nil)
	}
	return rep, nil
}

// Approve prüft die vorgeschlagene URL live und ersetzt den Link in Text und Datenbank.
// Geschwister-Vorschläge desselben Links werden abgelehnt.
func (r *Reviewer) Approve(ctx context.Context, replacementID string) (*models.ExternalLink, error) {
	rep, err := r.pendingReplacement(ctx, replacementID)
	if err != nil {
		return nil, err
	}
	if !r.Whitelist.IsApproved(rep.SuggestedURL) {
		return nil, wrap(ErrValidation, warnNotApproved+": "+rep.SuggestedURL, nil)
	}
	link, err := r.Links.GetLink(ctx, rep.LinkID)
	if err != nil {
		return nil, err
	}
	article, err := r.Articles.GetArticle(ctx, link.ArticleID)
	if err != nil {
		return nil, err
	}

	probe := r.Prober.Probe(ctx, rep.SuggestedURL)
	if !probe.Reachable() {
		return nil, wrap(ErrNetwork, "replacement "+rep.SuggestedURL+" is "+string(probe.Status), probe.Err)
	}

	content, n := ReplaceLinkURL(article.Content, link.URL, rep.SuggestedURL)
	if n == 0 {
		r.Logger.Warn("Link nicht mehr im Artikeltext gefunden", zap.String("link_id", link.ID), zap.String("url", link.URL))
	}
	approval := Approval{
		ReplacementID: rep.ID,
		LinkID:        link.ID,
		ArticleID:     article.ID,
		Content:       content,
		NewURL:        rep.SuggestedURL,
		Domain:        Hostname(rep.SuggestedURL),
		Category:      r.Whitelist.CategoryOf(rep.SuggestedURL),
		StatusCode:    probe.StatusCode,
		DecidedAt:     r.Now(),
	}
	if err := r.Replacements.ApproveReplacement(ctx, approval); err != nil {
		return nil, err
	}
	r.Logger.Info("Ersatz freigegeben", zap.String("link_id", link.ID), zap.String("old_url", link.URL), zap.String("new_url", rep.SuggestedURL))
	return r.Links.GetLink(ctx, link.ID)
}

// Reject lehnt einen offenen Vorschlag ab.
func (r *Reviewer) Reject(ctx context.Context, replacementID string) error {
	rep, err := r.pendingReplacement(ctx, replacementID)
	if err != nil {
		return err
	}
	return r.Replacements.RejectReplacement(ctx, rep.ID, r.Now())
}

// Remove entfernt einen Link aus dem Artikeltext und löscht die Zeile.
func (r *Reviewer) Remove(ctx context.Context, linkID string) error {
	link, err := r.Links.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	article, err := r.Articles.GetArticle(ctx, link.ArticleID)
	if err != nil {
		return err
	}
	content, n := Unlink(article.Content, link.URL)
	if err := r.Links.RemoveLink(ctx, link.ID, article.ID, content); err != nil {
		return err
	}
	r.Logger.Info("Link entfernt", zap.String("link_id", link.ID), zap.Int("occurrences", n))
	return nil
}

// DisplayStatus liefert den Zustand für die API: defekte Links mit offenen Vorschlägen melden replacement_suggested.
func DisplayStatus(link models.ExternalLink, hasPending bool) models.HealthStatus {
	if link.HealthStatus == models.HealthBroken && hasPending {
		return models.HealthReplacementSuggested
	}
	return link.HealthStatus
}
