package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"content-pulse/models"
)

const maxRedirects = 10

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type CustomTransport struct {
	Transport http.RoundTripper
	UserAgent string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.UserAgent)
	return t.Transport.RoundTrip(req)
}

// ProbeResult ist das klassifizierte Ergebnis einer Erreichbarkeitsprüfung.
type ProbeResult struct {
	URL        string              `json:"url"`
	Status     models.HealthStatus `json:"status"`
	StatusCode int                 `json:"status_code"`
	FinalURL   string              `json:"final_url,omitempty"`
	Err        error               `json:"-"`
	Duration   time.Duration       `json:"duration"`
}

// Reachable meldet 2xx oder 3xx.
func (r ProbeResult) Reachable() bool {
	return r.Status == models.HealthHealthy || r.Status == models.HealthRedirect
}

// Canceled meldet, dass der Aufrufer die Prüfung abgebrochen hat. Das Ergebnis hat dann keinen Status.
func (r ProbeResult) Canceled() bool {
	return r.Err != nil && errors.Is(r.Err, context.Canceled)
}

// Redirected meldet, ob die aufgelöste URL von der geprüften abweicht.
func (r ProbeResult) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.URL
}

// Prober führt HEAD-Anfragen mit Redirect-Verfolgung und festem Timeout aus.
// Wird von Validator, Health Monitor und Review gemeinsam genutzt.
type Prober struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewProber erstellt einen Prober mit eigenem Client.
func NewProber(timeout time.Duration, userAgent string) *Prober {
	return &Prober{
		Client: &http.Client{
			Transport: &CustomTransport{Transport: http.DefaultTransport, UserAgent: userAgent},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		Timeout: timeout,
	}
}

// Probe prüft eine URL. Fehler werden klassifiziert, nie zurückgegeben.
func (p *Prober) Probe(ctx context.Context, rawURL string) ProbeResult {
	start := time.Now()
	res := ProbeResult{URL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	resp, err := p.do(ctx, http.MethodHead, rawURL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		resp, err = p.do(ctx, http.MethodGet, rawURL)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		if errors.Is(err, context.Canceled) {
			return res
		}
		res.Status = ClassifyError(err)
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	res.StatusCode = resp.StatusCode
	res.Status = ClassifyStatusCode(resp.StatusCode)
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	// Redirect-Kette verfolgt: abweichende Ziel-URL zählt als Weiterleitung.
	if res.Status == models.HealthHealthy && res.Redirected() {
		res.Status = models.HealthRedirect
	}
	return res
}

func (p *Prober) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return p.Client.Do(req)
}

// ClassifyStatusCode bildet einen HTTP-Status auf den Gesundheitszustand ab.
func ClassifyStatusCode(code int) models.HealthStatus {
	switch {
	case code >= 200 && code < 300:
		return models.HealthHealthy
	case code >= 300 && code < 400:
		return models.HealthRedirect
	default:
		return models.HealthBroken
	}
}

// ClassifyError bildet einen Transportfehler auf timeout, ssl_error oder broken ab.
func ClassifyError(err error) models.HealthStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.HealthTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.HealthTimeout
	}
	var (
		unknownAuth x509.UnknownAuthorityError
		hostname    x509.HostnameError
		invalid     x509.CertificateInvalidError
		verify      *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuth) || errors.As(err, &hostname) || errors.As(err, &invalid) ||
		errors.As(err, &verify) || errors.As(err, &recordErr) {
		return models.HealthSSLError
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "certificate") || strings.Contains(msg, "tls") || strings.Contains(msg, "x509") {
		return models.HealthSSLError
	}
	return models.HealthBroken
}
