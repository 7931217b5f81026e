package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"content-pulse/models"
)

// LinkCheck ist das Ergebnis der Prüfung eines einzelnen Links.
type LinkCheck struct {
	LinkID      string              `json:"link_id"`
	ArticleID   string              `json:"article_id"`
	URL         string              `json:"url"`
	Status      models.HealthStatus `json:"status"`
	StatusCode  int                 `json:"status_code"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Error       string              `json:"error,omitempty"`
	Persisted   bool                `json:"persisted"`
	Skipped     bool                `json:"skipped,omitempty"`
}

// HealthSummary fasst einen Sweep zusammen.
type HealthSummary struct {
	Total    int                         `json:"total"`
	ByStatus map[models.HealthStatus]int `json:"by_status"`
	Details  []LinkCheck                 `json:"details"`
	Elapsed  time.Duration               `json:"elapsed"`
}

// HealthMonitor prüft gespeicherte Links und aktualisiert deren Zustand.
type HealthMonitor struct {
	Links       LinkStore
	Whitelist   *Whitelist
	Prober      *Prober
	Logger      *zap.Logger
	Concurrency int
	Now         func() time.Time
}

// NewHealthMonitor erstellt einen HealthMonitor.
func NewHealthMonitor(links LinkStore, wl *Whitelist, prober *Prober, concurrency int, logger *zap.Logger) *HealthMonitor {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &HealthMonitor{Links: links, Whitelist: wl, Prober: prober, Logger: logger, Concurrency: concurrency, Now: time.Now}
}

// Sweep prüft alle Links, die der Filter auswählt. Fehler beim Laden brechen ab.
func (m *HealthMonitor) Sweep(ctx context.Context, filter LinkFilter) (*HealthSummary, error) {
	start := time.Now()
	links, err := m.Links.ListLinks(ctx, filter)
	if err != nil {
		return nil, err
	}
	m.Logger.Info("Starte Link-Health-Sweep", zap.Int("links", len(links)))
	checks := m.CheckLinks(ctx, links)
	summary := Summarize(checks)
	summary.Elapsed = time.Since(start)
	m.Logger.Info("Link-Health-Sweep abgeschlossen",
		zap.Int("total", summary.Total),
		zap.Any("by_status", summary.ByStatus),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// CheckLinks prüft die Links nebenläufig. Die Ergebnisse stehen in Eingabereihenfolge.
// Jeder Link ist isoliert: Fehler oder Timeouts einzelner Links beeinflussen die anderen nicht.
func (m *HealthMonitor) CheckLinks(ctx context.Context, links []models.ExternalLink) []LinkCheck {
	results := make([]LinkCheck, len(links))
	var g errgroup.Group
	g.SetLimit(m.Concurrency)
	for i := range links {
		i := i
		g.Go(func() error {
			results[i] = m.checkOne(ctx, &links[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *HealthMonitor) checkOne(ctx context.Context, link *models.ExternalLink) LinkCheck {
	logger := m.Logger.With(zap.String("link_id", link.ID), zap.String("url", link.URL))
	if IsInternalURL(link.URL) {
		logger.Debug("Interner Link, keine Prüfung")
		return LinkCheck{LinkID: link.ID, ArticleID: link.ArticleID, URL: link.URL, Status: link.HealthStatus, Skipped: true}
	}
	probe := m.Prober.Probe(ctx, link.URL)
	if probe.Canceled() {
		return LinkCheck{LinkID: link.ID, ArticleID: link.ArticleID, URL: link.URL, Error: "check canceled"}
	}

	check := LinkCheck{
		LinkID:     link.ID,
		ArticleID:  link.ArticleID,
		URL:        link.URL,
		Status:     probe.Status,
		StatusCode: probe.StatusCode,
	}
	if probe.Err != nil {
		check.Error = wrap(ErrNetwork, "check "+link.URL, probe.Err).Error()
	}

	update := HealthUpdate{
		Status:     probe.Status,
		StatusCode: probe.StatusCode,
		Domain:     Hostname(link.URL),
		Category:   m.Whitelist.CategoryOf(link.URL),
		CheckedAt:  m.Now(),
	}
	if probe.Redirected() {
		final := probe.FinalURL
		update.RedirectURL = &final
		check.RedirectURL = final
	}
	linkChecksCounter.WithLabelValues(string(probe.Status)).Inc()

	if err := m.Links.UpdateHealth(ctx, link.ID, update); err != nil {
		logger.Error("Fehler beim Speichern des Link-Status", zap.Error(err))
		check.Error = err.Error()
		return check
	}
	check.Persisted = true
	if probe.Status != models.HealthHealthy {
		logger.Info("Link nicht gesund", zap.String("status", string(probe.Status)), zap.Int("status_code", probe.StatusCode))
	}
	return check
}

// Summarize zählt die Ergebnisse pro Status.
func Summarize(checks []LinkCheck) *HealthSummary {
	s := &HealthSummary{Total: len(checks), ByStatus: make(map[models.HealthStatus]int), Details: checks}
	for _, c := range checks {
		if c.Skipped || c.Status == "" {
			continue
		}
		s.ByStatus[c.Status]++
	}
	return s
}
