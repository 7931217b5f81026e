package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"content-pulse/models"
	"content-pulse/providers"
)

// Rejection ist ein verworfener Kandidat samt Grund.
type Rejection struct {
	AnchorText string `json:"anchor_text"`
	URL        string `json:"url"`
	Reason     string `json:"reason"`
}

// LinkGenResult fasst die Link-Generierung für einen Artikel zusammen.
type LinkGenResult struct {
	ArticleID     string           `json:"article_id"`
	Skipped       bool             `json:"skipped"`
	ExistingLinks int              `json:"existing_links"`
	Candidates    int              `json:"candidates"`
	Accepted      int              `json:"accepted"`
	Inserted      int              `json:"inserted"`
	Rejected      []Rejection      `json:"rejected,omitempty"`
	Log           []InsertLogEntry `json:"log,omitempty"`
}

// LinkGenerator verbindet Generator, Validator und Inserter und speichert das Ergebnis.
type LinkGenerator struct {
	Articles         ArticleStore
	Links            LinkStore
	Generator        providers.Generator
	Validator        *Validator
	Logger           *zap.Logger
	MaxPerDomain     int
	TargetPerArticle int
	ProbeConcurrency int
}

// NewLinkGenerator erstellt einen LinkGenerator.
func NewLinkGenerator(articles ArticleStore, links LinkStore, gen providers.Generator, v *Validator, maxPerDomain, target int, logger *zap.Logger) *LinkGenerator {
	return &LinkGenerator{
		Articles:         articles,
		Links:            links,
		Generator:        gen,
		Validator:        v,
		Logger:           logger,
		MaxPerDomain:     maxPerDomain,
		TargetPerArticle: target,
		ProbeConcurrency: 4,
	}
}

// targetLinks liefert die gewünschte Linkzahl: 2 pro 1000 Wörter, mindestens target, höchstens 4.
func targetLinks(words, target int) int {
	n := words / 1000 * 2
	if n > 4 {
		n = 4
	}
	if n < target {
		n = target
	}
	return n
}

// GenerateForArticle erzeugt, prüft und fügt Links in einen Artikel ein.
// Artikel mit ausreichend vorhandenen Links werden übersprungen.
func (g *LinkGenerator) GenerateForArticle(ctx context.Context, articleID string) (*LinkGenResult, error) {
	article, err := g.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	logger := g.Logger.With(zap.String("article_id", article.ID))
	res := &LinkGenResult{ArticleID: article.ID, ExistingLinks: CountContentLinks(article.Content).External}
	if res.ExistingLinks >= g.TargetPerArticle {
		res.Skipped = true
		logger.Debug("Artikel hat bereits genug Links", zap.Int("existing", res.ExistingLinks))
		return res, nil
	}
	if g.Generator == nil {
		return nil, wrap(ErrUpstream, "no generator configured", nil)
	}

	raw, err := g.Generator.CandidateLinks(ctx, providers.CandidateRequest{
		ArticleID: article.ID,
		Title:     article.Title,
		Content:   article.Content,
		Topic:     article.Topic,
		Language:  article.Language,
		Whitelist: g.Validator.Whitelist.PromptList(),
		Max:       targetLinks(CountWords(article.Content), g.TargetPerArticle),
	})
	if err != nil {
		return nil, wrap(ErrUpstream, "candidate links", err)
	}
	res.Candidates = len(raw)

	candidates := make([]Candidate, 0, len(raw))
	seen := make(map[string]bool)
	for _, c := range raw {
		if seen[c.URL] {
			res.Rejected = append(res.Rejected, Rejection{AnchorText: c.AnchorText, URL: c.URL, Reason: "duplicate url"})
			continue
		}
		seen[c.URL] = true
		candidates = append(candidates, Candidate{AnchorText: c.AnchorText, URL: c.URL, Reason: c.Reason, AuthorityScore: c.AuthorityScore})
	}

	checks := g.checkAll(ctx, candidates)
	accepted := make([]Candidate, 0, len(checks))
	byURL := make(map[string]CheckResult, len(checks))
	perDomain := make(map[string]int)
	for _, chk := range checks {
		c := chk.Candidate
		if !chk.Accepted {
			res.Rejected = append(res.Rejected, Rejection{AnchorText: c.AnchorText, URL: c.URL, Reason: chk.Reason})
			continue
		}
		if !c.Internal() {
			score := AuthorityScore(c.URL, g.Validator.Whitelist)
			if score < minAuthority {
				res.Rejected = append(res.Rejected, Rejection{AnchorText: c.AnchorText, URL: c.URL, Reason: "authority score too low"})
				continue
			}
			domain := Hostname(c.URL)
			if perDomain[domain] >= g.MaxPerDomain {
				res.Rejected = append(res.Rejected, Rejection{AnchorText: c.AnchorText, URL: c.URL, Reason: "domain limit reached"})
				continue
			}
			perDomain[domain]++
			c.AuthorityScore = score
			chk.Candidate = c
		}
		accepted = append(accepted, c)
		byURL[c.URL] = chk
	}
	res.Accepted = len(accepted)
	if len(accepted) == 0 {
		logger.Info("Keine Kandidaten akzeptiert", zap.Int("candidates", res.Candidates))
		return res, nil
	}

	ins := InsertLinks(article.Content, accepted)
	res.Log = ins.Log
	res.Inserted = ins.Inserted
	if ins.Inserted == 0 {
		return res, nil
	}

	// Interne Links stehen nur im Text, external_links enthält ausschließlich externe Ziele.
	rows := make([]models.ExternalLink, 0, ins.Inserted)
	for _, entry := range ins.Log {
		if entry.Outcome != OutcomeInserted || IsInternalURL(entry.URL) {
			continue
		}
		chk := byURL[entry.URL]
		rows = append(rows, g.linkRow(article, ins.Content, chk))
	}
	if err := g.Links.ApplyInsertion(ctx, article.ID, ins.Content, rows); err != nil {
		return nil, err
	}
	linksInsertedCounter.Add(float64(len(rows)))
	logger.Info("Links eingefügt", zap.Int("inserted", res.Inserted), zap.Int("rejected", len(res.Rejected)))
	return res, nil
}

// checkAll prüft alle Kandidaten nebenläufig; die Reihenfolge bleibt erhalten.
func (g *LinkGenerator) checkAll(ctx context.Context, candidates []Candidate) []CheckResult {
	results := make([]CheckResult, len(candidates))
	var eg errgroup.Group
	eg.SetLimit(g.ProbeConcurrency)
	for i := range candidates {
		i := i
		eg.Go(func() error {
			results[i] = g.Validator.Check(ctx, candidates[i])
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (g *LinkGenerator) linkRow(article *models.Article, content string, chk CheckResult) models.ExternalLink {
	c := chk.Candidate
	row := models.ExternalLink{
		ArticleID:      article.ID,
		ArticleType:    "qa",
		URL:            c.URL,
		AnchorText:     c.AnchorText,
		ContextSnippet: ContextSnippet(content, c.URL, contextRadius),
		AuthorityScore: c.AuthorityScore,
		HealthStatus:   models.HealthPending,
		Domain:         Hostname(c.URL),
		Category:       chk.Validation.Category,
		Verified:       chk.Probe.Reachable(),
		StatusCode:     chk.Probe.StatusCode,
	}
	return row
}
