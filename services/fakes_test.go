package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"content-pulse/models"
	"content-pulse/providers"
)

// memArticles hält Artikel im Speicher.
type memArticles struct {
	mu           sync.Mutex
	order        []string
	byID         map[string]*models.Article
	scores       map[string]ScoreUpdate
	translations int
	scoreValues  []float64
}

func newMemArticles(articles ...*models.Article) *memArticles {
	m := &memArticles{byID: map[string]*models.Article{}, scores: map[string]ScoreUpdate{}}
	for _, a := range articles {
		m.add(a)
	}
	return m
}

func (m *memArticles) add(a *models.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.order = append(m.order, a.ID)
	m.byID[a.ID] = a
}

func (m *memArticles) content(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Content
}

func (m *memArticles) GetArticle(_ context.Context, id string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memArticles) ListArticleIDs(_ context.Context, f ArticleFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.order {
		a := m.byID[id]
		if len(f.IDs) > 0 && !contains(f.IDs, id) {
			continue
		}
		if f.Language != "" && a.Language != f.Language {
			continue
		}
		if f.Topic != "" && a.Topic != f.Topic {
			continue
		}
		if f.Unscored && a.Score != nil {
			continue
		}
		out = append(out, id)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memArticles) CountTranslations(context.Context, string, string) (int, error) {
	return m.translations, nil
}

func (m *memArticles) UpdateScore(_ context.Context, id string, u ScoreUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	score := u.Score
	a.Score = &score
	m.scores[id] = u
	return nil
}

func (m *memArticles) ListLowScoring(_ context.Context, below float64, limit int) ([]models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Article
	for _, id := range m.order {
		a := m.byID[id]
		if a.Score != nil && *a.Score < below {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Score < *out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArticles) ScoreValues(context.Context) ([]float64, error) {
	return m.scoreValues, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// memLinks hält Links im Speicher und teilt sich die Artikel für Textänderungen.
type memLinks struct {
	mu       sync.Mutex
	articles *memArticles
	order    []string
	byID     map[string]*models.ExternalLink
	verified map[string]int
	health   map[string]HealthUpdate
}

func newMemLinks() *memLinks {
	return &memLinks{byID: map[string]*models.ExternalLink{}, verified: map[string]int{}, health: map[string]HealthUpdate{}}
}

func (m *memLinks) add(l *models.ExternalLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.HealthStatus == "" {
		l.HealthStatus = models.HealthPending
	}
	m.order = append(m.order, l.ID)
	m.byID[l.ID] = l
}

func (m *memLinks) GetLink(_ context.Context, id string) (*models.ExternalLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *memLinks) match(l *models.ExternalLink, f LinkFilter) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, l.ID) {
		return false
	}
	if f.ArticleID != "" && l.ArticleID != f.ArticleID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if l.HealthStatus == s {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (m *memLinks) ListLinks(_ context.Context, f LinkFilter) ([]models.ExternalLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExternalLink
	for _, id := range m.order {
		if l := m.byID[id]; m.match(l, f) {
			out = append(out, *l)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memLinks) ListLinkIDs(ctx context.Context, f LinkFilter) ([]string, error) {
	links, _ := m.ListLinks(ctx, f)
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ID
	}
	return ids, nil
}

func (m *memLinks) CountVerified(_ context.Context, articleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified[articleID], nil
}

func (m *memLinks) UpdateHealth(_ context.Context, id string, u HealthUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	l.HealthStatus = u.Status
	l.StatusCode = u.StatusCode
	l.RedirectURL = u.RedirectURL
	l.Domain = u.Domain
	l.Category = u.Category
	at := u.CheckedAt
	l.LastCheckedAt = &at
	l.CheckCount++
	m.health[id] = u
	return nil
}

func (m *memLinks) setContent(articleID, content string) error {
	if m.articles == nil {
		return nil
	}
	m.articles.mu.Lock()
	defer m.articles.mu.Unlock()
	a, ok := m.articles.byID[articleID]
	if !ok {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	a.Content = content
	return nil
}

func (m *memLinks) ApplyInsertion(_ context.Context, articleID, content string, links []models.ExternalLink) error {
	if err := m.setContent(articleID, content); err != nil {
		return err
	}
	for i := range links {
		l := links[i]
		m.add(&l)
	}
	return nil
}

func (m *memLinks) RemoveLink(_ context.Context, linkID, articleID, content string) error {
	if err := m.setContent(articleID, content); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[linkID]; !ok {
		return fmt.Errorf("link %s: %w", linkID, ErrNotFound)
	}
	delete(m.byID, linkID)
	for i, id := range m.order {
		if id == linkID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// memReplacements hält Ersatzvorschläge im Speicher.
type memReplacements struct {
	mu        sync.Mutex
	links     *memLinks
	items     []*models.LinkReplacement
	approvals []Approval
}

func newMemReplacements(links *memLinks) *memReplacements {
	return &memReplacements{links: links}
}

func (m *memReplacements) CreateReplacements(_ context.Context, proposals []models.LinkReplacement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range proposals {
		p := proposals[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Status == "" {
			p.Status = models.ReplacementPending
		}
		m.items = append(m.items, &p)
	}
	return nil
}

func (m *memReplacements) GetReplacement(_ context.Context, id string) (*models.LinkReplacement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("replacement %s: %w", id, ErrNotFound)
}

func (m *memReplacements) ListReplacements(_ context.Context, f ReplacementFilter) ([]models.LinkReplacement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LinkReplacement
	for _, p := range m.items {
		if f.LinkID != "" && p.LinkID != f.LinkID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memReplacements) PendingLinkIDs(context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, p := range m.items {
		if p.Status == models.ReplacementPending {
			out[p.LinkID] = true
		}
	}
	return out, nil
}

func (m *memReplacements) RejectReplacement(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ID == id {
			if p.Status != models.ReplacementPending {
				return fmt.Errorf("replacement %s: %w", id, ErrValidation)
			}
			p.Status = models.ReplacementRejected
			p.DecidedAt = &at
			return nil
		}
	}
	return fmt.Errorf("replacement %s: %w", id, ErrNotFound)
}

func (m *memReplacements) ApproveReplacement(_ context.Context, a Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.LinkID != a.LinkID || p.Status != models.ReplacementPending {
			continue
		}
		if p.ID == a.ReplacementID {
			p.Status = models.ReplacementApproved
		} else {
			p.Status = models.ReplacementRejected
		}
		at := a.DecidedAt
		p.DecidedAt = &at
	}
	m.approvals = append(m.approvals, a)
	if m.links == nil {
		return nil
	}
	if err := m.links.setContent(a.ArticleID, a.Content); err != nil {
		return err
	}
	m.links.mu.Lock()
	defer m.links.mu.Unlock()
	if l, ok := m.links.byID[a.LinkID]; ok {
		l.URL = a.NewURL
		l.Domain = a.Domain
		l.Category = a.Category
		l.HealthStatus = models.HealthHealthy
		l.StatusCode = a.StatusCode
		l.RedirectURL = nil
		l.Verified = true
	}
	return nil
}

// memRuns hält Batch-Läufe im Speicher.
type memRuns struct {
	mu    sync.Mutex
	runs  map[string]models.BatchRun
	saves int
}

func newMemRuns() *memRuns {
	return &memRuns{runs: map[string]models.BatchRun{}}
}

func (m *memRuns) CreateRun(_ context.Context, run *models.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*models.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return &run, nil
}

func (m *memRuns) SaveRun(_ context.Context, run *models.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	m.saves++
	return nil
}

// fakeGenerator liefert vorbereitete Antworten.
type fakeGenerator struct {
	mu          sync.Mutex
	candidates  []providers.CandidateLink
	suggestions []providers.Suggestion
	err         error
	calls       int
	requests    []providers.CandidateRequest
}

func (f *fakeGenerator) CandidateLinks(_ context.Context, req providers.CandidateRequest) ([]providers.CandidateLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	return f.candidates, f.err
}

func (f *fakeGenerator) SuggestReplacements(context.Context, providers.ReplacementRequest) ([]providers.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.suggestions, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }
