package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic/agents"
	"go.uber.org/zap"

	"content-pulse/config"
	"content-pulse/providers"
)

const candidateSchema = `{
  "type": "object",
  "properties": {
    "candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "anchorText": {"type": "string"},
          "url": {"type": "string"},
          "reason": {"type": "string"},
          "authorityScore": {"type": "integer"}
        },
        "required": ["anchorText", "url", "reason", "authorityScore"],
        "additionalProperties": false
      }
    }
  },
  "required": ["candidates"],
  "additionalProperties": false
}`

const candidateSystemPrompt = `You are an expert content editor finding opportunities to add helpful external links that flow naturally within the text.

RULES:
1. ONLY use exact text that already exists in the article (2-5 words)
2. Prefer naturally linkable phrases: proper nouns, locations, statistics, official procedures
3. Every URL must be a specific page on one of the approved domains
4. Do not propose phrases that are already links
5. Return valid JSON only`

const replacementSystemPrompt = `You are a content editor for a real estate website in Spain. You replace broken links with real, working pages from approved domains only. Return ONLY valid JSON, no other text.`

// Generator spricht über llmkit mit Anthropic.
type Generator struct {
	Config *config.Config
	Logger *zap.Logger
	agent  *agents.ChatAgent
}

// NewGenerator erstellt einen Generator. Ohne API-Key schlägt die Erstellung fehl.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (*Generator, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	agent, err := agents.New(cfg.AnthropicAPIKey)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic agent: %w", err)
	}
	return &Generator{Config: cfg, Logger: logger, agent: agent}, nil
}

// Name gibt den Namen des Generators zurück.
func (g *Generator) Name() string {
	return "anthropic"
}

// CandidateLinks fragt Link-Kandidaten für einen Artikel an.
func (g *Generator) CandidateLinks(ctx context.Context, req providers.CandidateRequest) ([]providers.CandidateLink, error) {
	text, err := g.chat(ctx, CandidatePrompt(req), &agents.ChatOptions{
		SystemPrompt: candidateSystemPrompt,
		Schema:       candidateSchema,
		MaxTokens:    g.Config.LLMMaxTokens,
		Temperature:  g.Config.LLMTemperature,
	})
	if err != nil {
		return nil, err
	}
	candidates := providers.ParseCandidates(text)
	if len(candidates) == 0 {
		g.Logger.Warn("Keine verwertbaren Kandidaten in der Antwort", zap.String("article_id", req.ArticleID), zap.Int("response_len", len(text)))
	}
	return candidates, nil
}

// SuggestReplacements fragt Ersatz-URLs für einen defekten Link an.
func (g *Generator) SuggestReplacements(ctx context.Context, req providers.ReplacementRequest) ([]providers.Suggestion, error) {
	text, err := g.chat(ctx, ReplacementPrompt(req), &agents.ChatOptions{
		SystemPrompt: replacementSystemPrompt,
		MaxTokens:    g.Config.LLMMaxTokens,
		Temperature:  g.Config.LLMTemperature,
	})
	if err != nil {
		return nil, err
	}
	suggestions := providers.ParseSuggestions(text)
	if len(suggestions) == 0 {
		g.Logger.Warn("Keine verwertbaren Vorschläge in der Antwort", zap.String("broken_url", req.BrokenURL), zap.Int("response_len", len(text)))
	}
	return suggestions, nil
}

// chat führt den blockierenden Aufruf aus und bricht bei Kontext-Abbruch das Warten ab.
func (g *Generator) chat(ctx context.Context, prompt string, opts *agents.ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := g.agent.Chat(prompt, opts)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{text: resp.Text}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("anthropic chat: %w", r.err)
		}
		return r.text, nil
	}
}

// CandidatePrompt baut die Nutzeranfrage für Link-Kandidaten.
func CandidatePrompt(req providers.CandidateRequest) string {
	n := req.Max
	if n <= 0 {
		n = 2
	}
	title := req.Title
	if title == "" {
		title = req.Topic
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Find %d opportunities to add external links in this article.\n\n", n)
	fmt.Fprintf(&b, "TITLE: %s\nTOPIC: %s\nLANGUAGE: %s\n\n", title, req.Topic, req.Language)
	fmt.Fprintf(&b, "CONTENT:\n%s\n\n", req.Content)
	fmt.Fprintf(&b, "APPROVED DOMAINS (use ONLY these):\n%s\n", req.Whitelist)
	b.WriteString(`Return JSON in this exact format:
{"candidates": [{"anchorText": "exact phrase from content", "url": "https://approved-domain/page", "reason": "why this link adds value", "authorityScore": 85}]}

REQUIREMENTS:
- Anchor text must exist EXACTLY as written in the content
- Spread links throughout the article (avoid clustering)
- At most 2 links per domain`)
	return b.String()
}

// ReplacementPrompt baut die Nutzeranfrage für Ersatzvorschläge.
func ReplacementPrompt(req providers.ReplacementRequest) string {
	var b strings.Builder
	b.WriteString("TASK: Suggest 3 REAL, WORKING replacement links for a broken link in our article.\n\n")
	fmt.Fprintf(&b, "BROKEN LINK: %s\nARTICLE: %s\nCONTEXT: %s\n\n", req.BrokenURL, req.ArticleTitle, req.Context)
	fmt.Fprintf(&b, "APPROVED DOMAINS (use ONLY these):\n%s\n", req.Whitelist)
	b.WriteString(`REQUIREMENTS:
1. Suggest ONLY links from the approved domains above
2. Links must be REAL and RELEVANT to the context
3. Each suggestion must be a specific page/article, NOT just homepage
4. Return ONLY valid JSON, no other text

EXAMPLE RESPONSE:
[{"url": "https://www.boe.es/buscar/act.jsp?id=XXXXX", "reason": "Official Spanish legislation on property rights", "relevance": 9}]

Return ONLY the JSON array, nothing else.`)
	return b.String()
}
