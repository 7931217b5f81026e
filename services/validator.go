package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Candidate ist ein vorgeschlagener Link für einen Artikel.
type Candidate struct {
	AnchorText     string `json:"anchor_text"`
	URL            string `json:"url"`
	Reason         string `json:"reason,omitempty"`
	AuthorityScore int    `json:"authority_score,omitempty"`
}

// Internal meldet reine Pfad-URLs innerhalb der eigenen Seite.
func (c Candidate) Internal() bool {
	return IsInternalURL(c.URL)
}

// IsInternalURL meldet Pfad-URLs ohne Schema und Host.
func IsInternalURL(raw string) bool {
	return strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//")
}

// CheckResult ist die Entscheidung des Validators über einen Kandidaten.
type CheckResult struct {
	Candidate  Candidate   `json:"candidate"`
	Validation Validation  `json:"validation"`
	Probe      ProbeResult `json:"probe"`
	Accepted   bool        `json:"accepted"`
	Reason     string      `json:"reason,omitempty"`
}

// Validator prüft Kandidaten gegen Whitelist und Live-Erreichbarkeit.
type Validator struct {
	Whitelist        *Whitelist
	Prober           *Prober
	RequireWhitelist bool
	Logger           *zap.Logger
}

// NewValidator erstellt einen Validator.
func NewValidator(wl *Whitelist, prober *Prober, requireWhitelist bool, logger *zap.Logger) *Validator {
	return &Validator{Whitelist: wl, Prober: prober, RequireWhitelist: requireWhitelist, Logger: logger}
}

// Validate ist die rein beratende Prüfung ohne Netzwerkzugriff.
func (v *Validator) Validate(rawURL string) Validation {
	return v.Whitelist.Validate(rawURL)
}

// Check entscheidet, ob ein Kandidat eingefügt werden darf. Nur 2xx/3xx werden akzeptiert.
func (v *Validator) Check(ctx context.Context, c Candidate) CheckResult {
	res := CheckResult{Candidate: c}
	if strings.TrimSpace(c.AnchorText) == "" {
		res.Reason = "empty anchor text"
		return res
	}
	if c.Internal() {
		res.Validation = Validation{URL: c.URL, StructurallyValid: true}
		res.Accepted = true
		return res
	}

	res.Validation = v.Whitelist.Validate(c.URL)
	if !res.Validation.StructurallyValid {
		res.Reason = warnInvalidURL
		return res
	}
	if v.RequireWhitelist && !res.Validation.IsApproved {
		res.Reason = warnNotApproved
		return res
	}

	res.Probe = v.Prober.Probe(ctx, c.URL)
	if res.Probe.Canceled() {
		res.Reason = "check canceled"
		return res
	}
	if !res.Probe.Reachable() {
		res.Reason = "probe failed: " + string(res.Probe.Status)
		v.Logger.Debug("Kandidat nicht erreichbar",
			zap.String("url", c.URL),
			zap.String("status", string(res.Probe.Status)),
			zap.Int("status_code", res.Probe.StatusCode))
		return res
	}
	res.Accepted = true
	return res
}
