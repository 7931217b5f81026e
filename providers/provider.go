package providers

import "context"

// Generator ist das Interface des generativen Dienstes, der Link-Kandidaten und Ersatzvorschläge liefert.
// Fehlerhafte Antworten ergeben leere Listen; nur Transportfehler werden als Fehler gemeldet.
type Generator interface {
	// CandidateLinks schlägt Ankertexte im Artikel und passende externe Quellen vor.
	CandidateLinks(ctx context.Context, req CandidateRequest) ([]CandidateLink, error)

	// SuggestReplacements schlägt Ersatz-URLs für einen defekten Link vor.
	SuggestReplacements(ctx context.Context, req ReplacementRequest) ([]Suggestion, error)

	// Name gibt den eindeutigen Namen des Generators zurück (z.B. "anthropic").
	Name() string
}

// CandidateRequest beschreibt einen Artikel, für den Links gesucht werden.
type CandidateRequest struct {
	ArticleID string
	Title     string
	Content   string
	Topic     string
	Language  string
	// Whitelist ist die für den Prompt gerenderte Domainliste.
	Whitelist string
	Max       int
}

// CandidateLink ist ein vorgeschlagener Link mit exaktem Ankertext aus dem Artikel.
type CandidateLink struct {
	AnchorText     string `json:"anchorText"`
	URL            string `json:"url"`
	Reason         string `json:"reason"`
	AuthorityScore int    `json:"authorityScore"`
}

// ReplacementRequest beschreibt einen defekten Link samt Umgebungstext.
type ReplacementRequest struct {
	BrokenURL    string
	Context      string
	ArticleTitle string
	Whitelist    string
}

// Suggestion ist ein Ersatzvorschlag mit Relevanz 0-10.
type Suggestion struct {
	URL       string  `json:"url"`
	Reason    string  `json:"reason"`
	Relevance float64 `json:"relevance"`
}
