package services

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed whitelist.yaml
var defaultWhitelistYAML []byte

// WhitelistCategory ist eine benannte Gruppe freigegebener Domains.
type WhitelistCategory struct {
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
}

// Whitelist ist die unveränderliche Liste freigegebener Domains. Nach dem Laden nur lesend genutzt.
type Whitelist struct {
	categories []WhitelistCategory
}

// Validation ist das Ergebnis von Whitelist.Validate. Rein beratend.
type Validation struct {
	URL               string   `json:"url"`
	StructurallyValid bool     `json:"structurally_valid"`
	IsApproved        bool     `json:"is_approved"`
	Category          string   `json:"category,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

const (
	warnInvalidURL   = "invalid URL format"
	warnNotApproved  = "domain not in approved whitelist"
	warnInsecureHTTP = "URL should use HTTPS"
)

// DefaultWhitelist lädt die eingebettete Domainliste.
func DefaultWhitelist() *Whitelist {
	wl, err := ParseWhitelist(defaultWhitelistYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded whitelist is invalid: %v", err))
	}
	return wl
}

// LoadWhitelist lädt die Domainliste aus einer YAML-Datei; ein leerer Pfad liefert die eingebettete Liste.
func LoadWhitelist(path string) (*Whitelist, error) {
	if path == "" {
		return DefaultWhitelist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist %s: %w", path, err)
	}
	return ParseWhitelist(data)
}

// ParseWhitelist dekodiert das YAML-Format der Domainliste.
func ParseWhitelist(data []byte) (*Whitelist, error) {
	var doc struct {
		Categories []WhitelistCategory `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse whitelist: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("parse whitelist: no categories: %w", ErrValidation)
	}
	wl := &Whitelist{categories: make([]WhitelistCategory, 0, len(doc.Categories))}
	for _, c := range doc.Categories {
		cat := WhitelistCategory{Name: strings.TrimSpace(c.Name)}
		for _, d := range c.Domains {
			d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
			if d != "" {
				cat.Domains = append(cat.Domains, d)
			}
		}
		if cat.Name == "" {
			return nil, fmt.Errorf("parse whitelist: unnamed category: %w", ErrValidation)
		}
		wl.categories = append(wl.categories, cat)
	}
	return wl, nil
}

// Hostname liefert den normalisierten Host einer URL (klein, ohne "www."). Leer bei ungültiger URL.
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func domainMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// IsApproved meldet, ob der Host der URL einer freigegebenen Domain oder deren Subdomain entspricht.
func (w *Whitelist) IsApproved(raw string) bool {
	return w.CategoryOf(raw) != ""
}

// CategoryOf liefert die erste passende Kategorie in deklarierter Reihenfolge oder "".
func (w *Whitelist) CategoryOf(raw string) string {
	host := Hostname(raw)
	if host == "" {
		return ""
	}
	for _, c := range w.categories {
		for _, d := range c.Domains {
			if domainMatches(host, d) {
				return c.Name
			}
		}
	}
	return ""
}

// Validate prüft eine URL strukturell und gegen die Whitelist und sammelt Warnungen.
func (w *Whitelist) Validate(raw string) Validation {
	v := Validation{URL: raw}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.Warnings = append(v.Warnings, warnInvalidURL)
		return v
	}
	v.StructurallyValid = true
	v.Category = w.CategoryOf(raw)
	v.IsApproved = v.Category != ""
	if !v.IsApproved {
		v.Warnings = append(v.Warnings, warnNotApproved)
	}
	if u.Scheme != "https" {
		v.Warnings = append(v.Warnings, warnInsecureHTTP)
	}
	return v
}

// Categories liefert eine Kopie der Kategorien in deklarierter Reihenfolge.
func (w *Whitelist) Categories() []WhitelistCategory {
	out := make([]WhitelistCategory, len(w.categories))
	for i, c := range w.categories {
		out[i] = WhitelistCategory{Name: c.Name, Domains: append([]string(nil), c.Domains...)}
	}
	return out
}

// Domains liefert alle Domains ohne Duplikate.
func (w *Whitelist) Domains() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range w.categories {
		for _, d := range c.Domains {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// PromptList rendert die Liste für Prompts des generativen Dienstes.
func (w *Whitelist) PromptList() string {
	var b strings.Builder
	for _, c := range w.categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, strings.Join(c.Domains, ", "))
	}
	return b.String()
}
