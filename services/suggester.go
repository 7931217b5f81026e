package services

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"content-pulse/models"
	"content-pulse/providers"
)

const (
	maxSuggestions = 3
	contextRadius  = 200
)

// Suggester erzeugt Ersatzvorschläge für defekte Links. Artikeltext und Link bleiben unverändert.
type Suggester struct {
	Articles     ArticleStore
	Links        LinkStore
	Replacements ReplacementStore
	Generator    providers.Generator
	Whitelist    *Whitelist
	Logger       *zap.Logger
}

// NewSuggester erstellt einen Suggester.
func NewSuggester(articles ArticleStore, links LinkStore, replacements ReplacementStore, gen providers.Generator, wl *Whitelist, logger *zap.Logger) *Suggester {
	return &Suggester{Articles: articles, Links: links, Replacements: replacements, Generator: gen, Whitelist: wl, Logger: logger}
}

// SuggestForLink speichert bis zu drei freigegebene Vorschläge als offene Proposals.
// Hat der Link bereits offene Vorschläge, werden diese zurückgegeben.
func (s *Suggester) SuggestForLink(ctx context.Context, linkID string) ([]models.LinkReplacement, error) {
	link, err := s.Links.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.HealthStatus != models.HealthBroken {
		return nil, wrap(ErrValidation, "link "+linkID+" is "+string(link.HealthStatus)+", not broken", nil)
	}
	pending, err := s.Replacements.ListReplacements(ctx, ReplacementFilter{LinkID: linkID, Status: models.ReplacementPending})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return pending, nil
	}
	if s.Generator == nil {
		return nil, wrap(ErrUpstream, "no generator configured", nil)
	}

	article, err := s.Articles.GetArticle(ctx, link.ArticleID)
	if err != nil {
		return nil, err
	}
	snippet := ContextSnippet(article.Content, link.URL, contextRadius)
	if snippet == "" {
		snippet = link.ContextSnippet
	}
	if snippet == "" {
		snippet = link.AnchorText
	}

	logger := s.Logger.With(zap.String("link_id", link.ID), zap.String("broken_url", link.URL))
	suggestions, err := s.Generator.SuggestReplacements(ctx, providers.ReplacementRequest{
		BrokenURL:    link.URL,
		Context:      snippet,
		ArticleTitle: article.Title,
		Whitelist:    s.Whitelist.PromptList(),
	})
	if err != nil {
		return nil, wrap(ErrUpstream, "suggest replacements", err)
	}

	ranked := s.rank(link.URL, suggestions)
	if len(ranked) == 0 {
		logger.Info("Keine freigegebenen Vorschläge erhalten", zap.Int("raw", len(suggestions)))
		return nil, nil
	}

	proposals := make([]models.LinkReplacement, len(ranked))
	for i, sug := range ranked {
		proposals[i] = models.LinkReplacement{
			LinkID:       link.ID,
			BrokenURL:    link.URL,
			SuggestedURL: sug.URL,
			Reason:       sug.Reason,
			Relevance:    sug.Relevance,
			Rank:         i + 1,
			Status:       models.ReplacementPending,
		}
	}
	if err := s.Replacements.CreateReplacements(ctx, proposals); err != nil {
		return nil, err
	}
	logger.Info("Ersatzvorschläge gespeichert", zap.Int("count", len(proposals)))
	return proposals, nil
}

// rank verwirft nicht freigegebene Domains, begrenzt die Relevanz auf 0-10 und behält die besten drei.
func (s *Suggester) rank(brokenURL string, in []providers.Suggestion) []providers.Suggestion {
	seen := map[string]bool{brokenURL: true}
	var out []providers.Suggestion
	for _, sug := range in {
		if seen[sug.URL] || !s.Whitelist.IsApproved(sug.URL) {
			continue
		}
		seen[sug.URL] = true
		sug.Relevance = math.Max(0, math.Min(sug.Relevance, 10))
		out = append(out, sug)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
