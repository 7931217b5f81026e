package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"content-pulse/config"
	"content-pulse/models"
)

var (
	h1Pattern = regexp.MustCompile(`(?m)^# .+$`)
	h2Pattern = regexp.MustCompile(`(?m)^## .+$`)
)

// ScoreInput bündelt alles, was die Bewertung eines Artikels braucht.
type ScoreInput struct {
	Article       *models.Article
	VerifiedLinks int
	Translations  int
	Now           time.Time
}

// ScoreBreakdown enthält die sieben Teilwerte samt Hinweisen.
type ScoreBreakdown struct {
	ArticleID       string   `json:"article_id"`
	VoiceReadiness  float64  `json:"voice_readiness"`
	SchemaQuality   float64  `json:"schema_quality"`
	ExternalLinks   float64  `json:"external_links"`
	Headings        float64  `json:"heading_structure"`
	Multilingual    float64  `json:"multilingual_support"`
	Freshness       float64  `json:"freshness_signals"`
	EEAT            float64  `json:"eeat_signals"`
	Total           float64  `json:"total"`
	Issues          []string `json:"issues"`
	Suggestions     []string `json:"suggestions"`
	PassesThreshold bool     `json:"passes_threshold"`
}

// Subscores liefert die Teilwerte in fester Reihenfolge.
func (b ScoreBreakdown) Subscores() []float64 {
	return []float64{b.VoiceReadiness, b.SchemaQuality, b.ExternalLinks, b.Headings, b.Multilingual, b.Freshness, b.EEAT}
}

// CountWords zählt nicht-leere, durch Whitespace getrennte Tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

func clamp(v, limit float64) float64 {
	return math.Max(0, math.Min(v, limit))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreBucket ordnet einen Score einem Verteilungs-Bucket zu.
func ScoreBucket(score float64, cfg config.ScoreConfig) string {
	switch {
	case score >= cfg.Excellent:
		return "excellent"
	case score >= cfg.Good:
		return "good"
	case score >= cfg.NeedsWork:
		return "needs_work"
	default:
		return "critical"
	}
}

// ComputeScore bewertet einen Artikel ohne Seiteneffekte.
func ComputeScore(in ScoreInput, cfg config.ScoreConfig) ScoreBreakdown {
	a := in.Article
	b := ScoreBreakdown{ArticleID: a.ID, Issues: []string{}, Suggestions: []string{}}
	issue := func(format string, args ...interface{}) { b.Issues = append(b.Issues, fmt.Sprintf(format, args...)) }
	suggest := func(s string) { b.Suggestions = append(b.Suggestions, s) }

	// 1. Voice Readiness
	questions := a.Questions()
	window := fmt.Sprintf("%d-%d", cfg.SpeakableMinWords, cfg.SpeakableMaxWords)
	inWindow := func(n int) bool { return n >= cfg.SpeakableMinWords && n <= cfg.SpeakableMaxWords }
	half := cfg.VoiceCap / 2

	qWords := CountWords(strings.Join(questions, " "))
	switch {
	case inWindow(qWords):
		b.VoiceReadiness += half
	case qWords > 0:
		b.VoiceReadiness += half / 2
		issue("Speakable questions: %d words (need %s)", qWords, window)
		suggest("Optimize speakable questions to " + window + " words")
	default:
		issue("Missing speakable questions")
		suggest("Add 3-5 voice-optimized questions (" + window + " words total)")
	}

	aWords := CountWords(a.SpeakableAnswer)
	switch {
	case inWindow(aWords):
		b.VoiceReadiness += half
	case aWords > 0:
		b.VoiceReadiness += half / 2
		issue("Speakable answer: %d words (need %s)", aWords, window)
		suggest("Optimize speakable answer to " + window + " words")
	default:
		issue("Missing speakable answer")
		suggest("Add conversational answer (" + window + " words)")
	}
	b.VoiceReadiness = clamp(b.VoiceReadiness, cfg.VoiceCap)

	// 2. Schema
	if a.HasGeo() {
		b.SchemaQuality += 0.5
	} else {
		issue("Missing geo coordinates")
		suggest("Add geo coordinates (latitude and longitude)")
	}
	if len(questions) > 0 && strings.TrimSpace(a.SpeakableAnswer) != "" {
		b.SchemaQuality += 0.5
	}
	if a.HasAuthor() {
		b.SchemaQuality += 0.5
	} else {
		issue("Missing author data")
		suggest("Add author information for E-E-A-T signals")
	}
	b.SchemaQuality = clamp(b.SchemaQuality, cfg.SchemaCap)

	// 3. Externe Links
	words := CountWords(a.Content)
	perThousand := float64(in.VerifiedLinks) / math.Max(float64(words), 1) * 1000
	target := formatTier(cfg.LinksFullPer1000)
	switch {
	case perThousand >= cfg.LinksFullPer1000:
		b.ExternalLinks = cfg.LinksFullScore
	case perThousand >= cfg.LinksPartialPer1000:
		b.ExternalLinks = cfg.LinksPartialScore
		suggest(fmt.Sprintf("Add more external links (target: %s per 1000 words)", target))
	case perThousand > 0:
		b.ExternalLinks = cfg.LinksLowScore
		issue("Low external link density")
		suggest("Add trusted external sources (government, banking, tourism sites)")
	default:
		issue("No external links found")
		suggest(fmt.Sprintf("Add at least %s external links per 1000 words from trusted sources", target))
	}
	b.ExternalLinks = clamp(b.ExternalLinks, cfg.LinksCap)

	// 4. Überschriften
	h1 := len(h1Pattern.FindAllString(a.Content, -1))
	h2 := len(h2Pattern.FindAllString(a.Content, -1))
	switch {
	case h1 == 1:
		b.Headings += 0.5
	case h1 == 0:
		issue("No H1 heading found")
		suggest("Add exactly 1 H1 heading")
	default:
		issue("Multiple H1 headings (%d)", h1)
		suggest("Use only 1 H1 heading per article")
	}
	if h2 >= 3 {
		b.Headings += 0.5
	} else {
		issue("Only %d H2 headings (need 3+)", h2)
		suggest("Add more H2 subheadings for better structure")
	}
	// Ohne H3 unter einer H2 gibt es die Punkte trotzdem, sobald eine H2 existiert.
	if h2 > 0 {
		b.Headings += 0.5
	}
	if h2 > 3 && !h3AfterH2(a.Content) {
		suggest("Consider adding H3 sub-sections under H2 headings")
	}
	b.Headings = clamp(b.Headings, cfg.HeadingsCap)

	// 5. Mehrsprachigkeit
	switch t := in.Translations; {
	case t >= 5:
		b.Multilingual = 1.0
	case t >= 3:
		b.Multilingual = 0.7
		suggest(fmt.Sprintf("Add %d more translations (currently %d)", 5-t, t))
	case t >= 1:
		b.Multilingual = 0.3
		issue("Only %d translations available", t)
		suggest("Translate to at least 5 languages")
	default:
		issue("No translations available")
		suggest("Translate to EN, ES, DE, NL, FR for better reach")
	}
	b.Multilingual = clamp(b.Multilingual, cfg.I18nCap)

	// 6. Aktualität
	if a.UpdatedAt.IsZero() {
		b.Freshness = 0.3
		issue("Missing last update date")
		suggest("Update article with recent data and statistics")
	} else {
		days := int(in.Now.Sub(a.UpdatedAt).Hours() / 24)
		switch {
		case days < 30:
			b.Freshness = 1.0
		case days < 90:
			b.Freshness = 0.7
			suggest(fmt.Sprintf("Last updated %d days ago - consider refreshing content", days))
		default:
			b.Freshness = 0.3
			issue("Content is %d days old", days)
			suggest("Update article with recent data and statistics")
		}
	}
	b.Freshness = clamp(b.Freshness, cfg.FreshCap)

	// 7. E-E-A-T
	hasAuthor, hasReviewer := a.HasAuthor(), a.HasReviewer()
	hasCredentials := strings.TrimSpace(a.AuthorCredentials) != ""
	switch {
	case hasAuthor && hasReviewer && hasCredentials:
		b.EEAT = 1.0
	case hasAuthor && hasReviewer:
		b.EEAT = 0.7
		suggest("Add author credentials for stronger E-E-A-T")
	case hasAuthor:
		b.EEAT = 0.5
		issue("Missing reviewer")
		suggest("Add expert reviewer with credentials")
	default:
		issue("Missing author and reviewer")
		suggest("Add author + reviewer + credentials for E-E-A-T")
	}
	b.EEAT = clamp(b.EEAT, cfg.EEATCap)

	var sum float64
	for _, s := range b.Subscores() {
		sum += s
	}
	b.Total = round2(sum)
	b.PassesThreshold = b.Total >= cfg.Excellent
	return b
}

// h3AfterH2 meldet, ob eine H3-Überschrift nach einer H2-Überschrift folgt.
func h3AfterH2(content string) bool {
	seenH2 := false
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "## ") && len(line) > 3:
			seenH2 = true
		case strings.HasPrefix(line, "### ") && len(line) > 4 && seenH2:
			return true
		}
	}
	return false
}

// Scorer lädt Artikel, bewertet sie und speichert das Ergebnis.
type Scorer struct {
	Articles ArticleStore
	Links    LinkStore
	Config   config.ScoreConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewScorer erstellt einen Scorer mit der Systemzeit.
func NewScorer(articles ArticleStore, links LinkStore, cfg config.ScoreConfig, logger *zap.Logger) *Scorer {
	return &Scorer{Articles: articles, Links: links, Config: cfg, Logger: logger, Now: time.Now}
}

// Compute bewertet einen Artikel, ohne zu speichern.
func (s *Scorer) Compute(ctx context.Context, articleID string) (*ScoreBreakdown, error) {
	article, err := s.Articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	verified, err := s.Links.CountVerified(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	translations, err := s.Articles.CountTranslations(ctx, article.Slug, article.Language)
	if err != nil {
		return nil, err
	}
	b := ComputeScore(ScoreInput{Article: article, VerifiedLinks: verified, Translations: translations, Now: s.Now()}, s.Config)
	return &b, nil
}

// Recalculate bewertet einen Artikel und speichert Score und abgeleitete Flags.
func (s *Scorer) Recalculate(ctx context.Context, articleID string) (*ScoreBreakdown, error) {
	b, err := s.Compute(ctx, articleID)
	if err != nil {
		return nil, err
	}
	update := ScoreUpdate{
		Score:            b.Total,
		VoiceSearchReady: b.VoiceReadiness >= s.Config.VoiceCap,
		AIReady:          b.PassesThreshold,
		ScoredAt:         s.Now(),
	}
	if err := s.Articles.UpdateScore(ctx, articleID, update); err != nil {
		return nil, err
	}
	articlesScoredCounter.Inc()
	s.Logger.Debug("Artikel bewertet", zap.String("article_id", articleID), zap.Float64("score", b.Total))
	return b, nil
}

// ScoreStatistics fasst die gespeicherten Scores zusammen.
type ScoreStatistics struct {
	TotalArticles int            `json:"total_articles"`
	AvgScore      float64        `json:"avg_score"`
	ExcellentPct  float64        `json:"excellent_pct"`
	Distribution  map[string]int `json:"distribution"`
}

// Statistics berechnet Durchschnitt und Verteilung aller bewerteten Artikel.
func (s *Scorer) Statistics(ctx context.Context) (*ScoreStatistics, error) {
	scores, err := s.Articles.ScoreValues(ctx)
	if err != nil {
		return nil, err
	}
	stats := &ScoreStatistics{
		TotalArticles: len(scores),
		Distribution:  map[string]int{"excellent": 0, "good": 0, "needs_work": 0, "critical": 0},
	}
	if len(scores) == 0 {
		return stats, nil
	}
	var sum float64
	for _, v := range scores {
		sum += v
		stats.Distribution[ScoreBucket(v, s.Config)]++
	}
	stats.AvgScore = round2(sum / float64(len(scores)))
	stats.ExcellentPct = math.Round(float64(stats.Distribution["excellent"])/float64(len(scores))*1000) / 10
	return stats, nil
}

func formatTier(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
