package services

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// InsertOutcome beschreibt, was mit einem Kandidaten passiert ist.
type InsertOutcome string

const (
	OutcomeInserted      InsertOutcome = "inserted"
	OutcomeNotFound      InsertOutcome = "not_found"
	OutcomeAlreadyLinked InsertOutcome = "already_linked"
	OutcomeInsideLink    InsertOutcome = "inside_link"
)

// InsertLogEntry ist ein Eintrag im Einfüge-Protokoll.
type InsertLogEntry struct {
	AnchorText string        `json:"anchor_text"`
	URL        string        `json:"url"`
	Outcome    InsertOutcome `json:"outcome"`
	Position   int           `json:"position"`
}

// InsertResult enthält den neuen Text und das Protokoll.
type InsertResult struct {
	Content  string           `json:"content"`
	Log      []InsertLogEntry `json:"log"`
	Inserted int              `json:"inserted"`
}

// Span ist ein Abschnitt des Textes: entweder vorhandener Link oder Klartext.
type Span struct {
	Start int
	End   int
	Link  *ContentLink
}

// Tokenize zerlegt den Text in eine geordnete Folge aus Link- und Klartext-Abschnitten.
func Tokenize(content string) []Span {
	var spans []Span
	last := 0
	for _, l := range ExtractLinks(content) {
		l := l
		if l.Start > last {
			spans = append(spans, Span{Start: last, End: l.Start})
		}
		spans = append(spans, Span{Start: l.Start, End: l.End, Link: &l})
		last = l.End
	}
	if last < len(content) {
		spans = append(spans, Span{Start: last, End: len(content)})
	}
	return spans
}

// InsertLinks setzt Kandidaten als Markdown-Links in den Text. Längere Ankertexte zuerst.
// Treffer werden nur in Klartext-Abschnitten gesucht; vorhandene Links bleiben unangetastet.
func InsertLinks(content string, candidates []Candidate) InsertResult {
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i].AnchorText) > utf8.RuneCountInString(sorted[j].AnchorText)
	})

	res := InsertResult{Content: content, Log: make([]InsertLogEntry, 0, len(sorted))}
	for _, c := range sorted {
		entry := InsertLogEntry{AnchorText: c.AnchorText, URL: c.URL, Position: -1}
		res.Content, entry.Outcome, entry.Position = insertOne(res.Content, c.AnchorText, c.URL)
		if entry.Outcome == OutcomeInserted {
			res.Inserted++
		}
		res.Log = append(res.Log, entry)
	}
	return res
}

func insertOne(content, anchor, url string) (string, InsertOutcome, int) {
	if strings.TrimSpace(anchor) == "" {
		return content, OutcomeNotFound, -1
	}
	spans := Tokenize(content)

	exactLabel, insideLink := false, false
	for _, s := range spans {
		if s.Link == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s.Link.Text), anchor) {
			if s.Link.URL == url {
				return content, OutcomeAlreadyLinked, s.Start
			}
			exactLabel = true
			continue
		}
		if indexFold(content[s.Start:s.End], anchor, 0) >= 0 {
			insideLink = true
		}
	}

	boundaryHit := false
	for _, s := range spans {
		if s.Link != nil {
			continue
		}
		text := content[s.Start:s.End]
		for from := 0; from < len(text); {
			pos := indexFold(text, anchor, from)
			if pos < 0 {
				break
			}
			n := matchFold(text[pos:], anchor)
			abs := s.Start + pos
			if touchesLinkSyntax(content, abs, abs+n) {
				boundaryHit = true
				_, size := utf8.DecodeRuneInString(text[pos:])
				from = pos + size
				continue
			}
			original := content[abs : abs+n]
			return content[:abs] + "[" + original + "](" + url + ")" + content[abs+n:], OutcomeInserted, abs
		}
	}

	switch {
	case exactLabel || boundaryHit:
		return content, OutcomeAlreadyLinked, -1
	case insideLink:
		return content, OutcomeInsideLink, -1
	default:
		return content, OutcomeNotFound, -1
	}
}

func touchesLinkSyntax(content string, start, end int) bool {
	if start > 0 && (content[start-1] == '[' || content[start-1] == '!') {
		return true
	}
	return end < len(content) && (content[end] == ']' || content[end] == '(')
}

// indexFold sucht sub ab from ohne Beachtung der Groß-/Kleinschreibung, nur an Rune-Grenzen.
func indexFold(s, sub string, from int) int {
	for i := from; i < len(s); {
		if matchFold(s[i:], sub) > 0 {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

// matchFold liefert die Byte-Länge des Präfixes von s, das sub entspricht, sonst 0.
func matchFold(s, sub string) int {
	i := 0
	for _, want := range sub {
		if i >= len(s) {
			return 0
		}
		got, size := utf8.DecodeRuneInString(s[i:])
		if !strings.EqualFold(string(got), string(want)) {
			return 0
		}
		i += size
	}
	return i
}
