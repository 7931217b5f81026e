package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markdownLinkPattern = regexp.MustCompile(`!?\[([^\]]*)\]\(([^)\s]*)(?:\s+"[^"]*")?\)`)
	htmlAnchorPattern   = regexp.MustCompile(`(?is)<a\s[^>]*>.*?</a>`)
)

// ContentLink ist ein vorhandener Link im Artikeltext mit Byte-Position.
type ContentLink struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Image bool   `json:"image,omitempty"`
	HTML  bool   `json:"html,omitempty"`
}

// Raw liefert den Quelltext des Links.
func (l ContentLink) Raw(content string) string {
	return content[l.Start:l.End]
}

// ExtractLinks findet Markdown-Links, Bilder und Inline-HTML-Anker, sortiert nach Position.
// Überlappende Treffer werden zugunsten des früheren verworfen.
func ExtractLinks(content string) []ContentLink {
	var found []ContentLink
	for _, m := range markdownLinkPattern.FindAllStringSubmatchIndex(content, -1) {
		found = append(found, ContentLink{
			Start: m[0],
			End:   m[1],
			Text:  content[m[2]:m[3]],
			URL:   content[m[4]:m[5]],
			Image: content[m[0]] == '!',
		})
	}
	for _, m := range htmlAnchorPattern.FindAllStringIndex(content, -1) {
		text, href := parseAnchor(content[m[0]:m[1]])
		found = append(found, ContentLink{Start: m[0], End: m[1], Text: text, URL: href, HTML: true})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	out := found[:0]
	lastEnd := -1
	for _, l := range found {
		if l.Start < lastEnd {
			continue
		}
		out = append(out, l)
		lastEnd = l.End
	}
	return out
}

func parseAnchor(fragment string) (text, href string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", ""
	}
	a := doc.Find("a").First()
	href, _ = a.Attr("href")
	return strings.TrimSpace(a.Text()), strings.TrimSpace(href)
}

// LinkCounts zählt vorhandene Links im Text.
type LinkCounts struct {
	Total    int `json:"total"`
	Internal int `json:"internal"`
	External int `json:"external"`
}

// CountContentLinks zählt Links ohne Bilder, getrennt nach intern und extern.
func CountContentLinks(content string) LinkCounts {
	var c LinkCounts
	for _, l := range ExtractLinks(content) {
		if l.Image {
			continue
		}
		c.Total++
		if strings.HasPrefix(l.URL, "/") || strings.HasPrefix(l.URL, "#") {
			c.Internal++
		} else {
			c.External++
		}
	}
	return c
}

// ContextSnippet liefert bis zu radius Bytes Text um den ersten Link auf url, ohne UTF-8 zu zerschneiden.
func ContextSnippet(content, url string, radius int) string {
	for _, l := range ExtractLinks(content) {
		if l.URL != url {
			continue
		}
		start, end := l.Start-radius, l.End+radius
		if start < 0 {
			start = 0
		}
		if end > len(content) {
			end = len(content)
		}
		for start > 0 && !utf8Start(content[start]) {
			start--
		}
		for end < len(content) && !utf8Start(content[end]) {
			end++
		}
		return strings.TrimSpace(content[start:end])
	}
	return ""
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// ReplaceLinkURL ersetzt das Ziel aller Links auf oldURL. Liefert den neuen Text und die Anzahl Ersetzungen.
func ReplaceLinkURL(content, oldURL, newURL string) (string, int) {
	return rewriteLinks(content, oldURL, func(l ContentLink, raw string) string {
		if l.HTML {
			return strings.Replace(raw, oldURL, newURL, 1)
		}
		return strings.Replace(raw, "]("+oldURL, "]("+newURL, 1)
	})
}

// Unlink ersetzt alle Links auf url durch ihren Linktext.
func Unlink(content, url string) (string, int) {
	return rewriteLinks(content, url, func(l ContentLink, _ string) string {
		return l.Text
	})
}

func rewriteLinks(content, url string, fn func(ContentLink, string) string) (string, int) {
	var b strings.Builder
	last, n := 0, 0
	for _, l := range ExtractLinks(content) {
		if l.URL != url || l.Image {
			continue
		}
		b.WriteString(content[last:l.Start])
		b.WriteString(fn(l, l.Raw(content)))
		last = l.End
		n++
	}
	if n == 0 {
		return content, 0
	}
	b.WriteString(content[last:])
	return b.String(), n
}
