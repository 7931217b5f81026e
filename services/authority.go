package services

import "strings"

// Bewertung je Whitelist-Kategorie (0-100).
var categoryAuthority = map[string]int{
	"government": 100,
	"statistics": 95,
	"tourism":    95,
	"legal":      90,
	"banking":    85,
	"news":       85,
	"realEstate": 80,
}

var blacklistedDomains = []string{
	"wikipedia.org", "facebook.com", "twitter.com", "instagram.com",
	"medium.com", "blogspot.com", "pinterest.com", "youtube.com",
}

const (
	defaultAuthority = 65
	minAuthority     = 70
)

// AuthorityScore bewertet die Vertrauenswürdigkeit der Domain einer URL.
// Gesperrte Domains und ungültige URLs ergeben 0, unbekannte Domains 65.
func AuthorityScore(rawURL string, wl *Whitelist) int {
	host := Hostname(rawURL)
	if host == "" {
		return 0
	}
	for _, d := range blacklistedDomains {
		if domainMatches(host, d) {
			return 0
		}
	}
	if score, ok := categoryAuthority[wl.CategoryOf(rawURL)]; ok {
		return score
	}
	if strings.HasSuffix(host, ".gob.es") || strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".europa.eu") {
		return 100
	}
	if strings.HasSuffix(host, ".edu") || strings.Contains(host, ".ac.") {
		return 88
	}
	return defaultAuthority
}
