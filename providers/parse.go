package providers

import (
	"encoding/json"
	"strings"
)

// extractJSON schneidet den ersten JSON-Wert (Objekt oder Array) aus einer Antwort,
// auch wenn er in Code-Fences oder Fließtext eingebettet ist.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	opening, closing := text[start], byte(']')
	if opening == '{' {
		closing = '}'
	}
	end := strings.LastIndexByte(text, closing)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

// decodeList dekodiert entweder ein Array oder ein Objekt mit dem Array unter einem der keys.
func decodeList[T any](text string, keys ...string) []T {
	raw := extractJSON(text)
	if raw == "" {
		return nil
	}
	var list []T
	if raw[0] == '[' {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil
		}
		return list
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return nil
	}
	for _, key := range keys {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil
		}
		return list
	}
	return nil
}

// ParseCandidates liest Kandidaten aus einer Antwort. Unbrauchbare Antworten ergeben nil.
func ParseCandidates(text string) []CandidateLink {
	var out []CandidateLink
	for _, c := range decodeList[CandidateLink](text, "candidates", "links") {
		c.AnchorText = strings.TrimSpace(c.AnchorText)
		c.URL = strings.TrimSpace(c.URL)
		if c.AnchorText == "" || c.URL == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseSuggestions liest Ersatzvorschläge aus einer Antwort. Unbrauchbare Antworten ergeben nil.
func ParseSuggestions(text string) []Suggestion {
	var out []Suggestion
	for _, s := range decodeList[Suggestion](text, "suggestions") {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
