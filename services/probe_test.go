package services

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"content-pulse/models"
)

func newLinkServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "TestBot/1.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProberProbe(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	p := NewProber(300*time.Millisecond, "TestBot/1.0")

	cases := []struct {
		path   string
		status models.HealthStatus
		code   int
	}{
		{"/ok", models.HealthHealthy, 200},
		{"/missing", models.HealthBroken, 404},
		{"/moved", models.HealthRedirect, 200},
		{"/nohead", models.HealthHealthy, 200},
		{"/slow", models.HealthTimeout, 0},
		{"/agent", models.HealthHealthy, 200},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			res := p.Probe(context.Background(), srv.URL+tc.path)
			if res.Status != tc.status || res.StatusCode != tc.code {
				t.Fatalf("probe %s = %s/%d (err %v), want %s/%d", tc.path, res.Status, res.StatusCode, res.Err, tc.status, tc.code)
			}
		})
	}
}

func TestProberRedirectFinalURL(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	res := NewProber(time.Second, "TestBot/1.0").Probe(context.Background(), srv.URL+"/moved")
	if !res.Redirected() || res.FinalURL != srv.URL+"/ok" {
		t.Fatalf("final url = %q", res.FinalURL)
	}
	if !res.Reachable() {
		t.Fatal("redirect should be reachable")
	}
}

func TestProberUnreachableHost(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewProber(time.Second, "TestBot/1.0").Probe(context.Background(), url)
	if res.Status != models.HealthBroken || res.Err == nil {
		t.Fatalf("probe closed server = %s (%v)", res.Status, res.Err)
	}
}

func TestProberTLSError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	res := NewProber(time.Second, "TestBot/1.0").Probe(context.Background(), srv.URL)
	if res.Status != models.HealthSSLError {
		t.Fatalf("status = %s (%v), want ssl_error", res.Status, res.Err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	if got := ClassifyStatusCode(204); got != models.HealthHealthy {
		t.Fatalf("204 = %s", got)
	}
	if got := ClassifyStatusCode(302); got != models.HealthRedirect {
		t.Fatalf("302 = %s", got)
	}
	if got := ClassifyStatusCode(503); got != models.HealthBroken {
		t.Fatalf("503 = %s", got)
	}
	if got := ClassifyError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)); got != models.HealthTimeout {
		t.Fatalf("deadline = %s", got)
	}
	if got := ClassifyError(x509.UnknownAuthorityError{}); got != models.HealthSSLError {
		t.Fatalf("x509 = %s", got)
	}
	if got := ClassifyError(errors.New("connection refused")); got != models.HealthBroken {
		t.Fatalf("refused = %s", got)
	}
}

func TestHealthMonitorCheckLinks(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	links := newMemLinks()
	rows := []*models.ExternalLink{
		{ID: "l-404", ArticleID: "a", URL: srv.URL + "/missing"},
		{ID: "l-slow", ArticleID: "a", URL: srv.URL + "/slow"},
		{ID: "l-ok", ArticleID: "a", URL: srv.URL + "/ok"},
		{ID: "l-moved", ArticleID: "a", URL: srv.URL + "/moved"},
	}
	for _, l := range rows {
		links.add(l)
	}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewHealthMonitor(links, DefaultWhitelist(), NewProber(500*time.Millisecond, "TestBot/1.0"), 10, zap.NewNop())
	m.Now = func() time.Time { return fixed }

	start := time.Now()
	summary, err := m.Sweep(context.Background(), LinkFilter{})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("sweep took %v, slow link delayed siblings", elapsed)
	}

	want := []struct {
		id     string
		status models.HealthStatus
		code   int
	}{
		{"l-404", models.HealthBroken, 404},
		{"l-slow", models.HealthTimeout, 0},
		{"l-ok", models.HealthHealthy, 200},
		{"l-moved", models.HealthRedirect, 200},
	}
	if summary.Total != len(want) {
		t.Fatalf("total = %d", summary.Total)
	}
	for i, w := range want {
		got := summary.Details[i]
		if got.LinkID != w.id || got.Status != w.status || got.StatusCode != w.code || !got.Persisted {
			t.Fatalf("detail %d = %+v, want %+v", i, got, w)
		}
		stored, _ := links.GetLink(context.Background(), w.id)
		if stored.HealthStatus != w.status || stored.CheckCount != 1 || stored.LastCheckedAt == nil || !stored.LastCheckedAt.Equal(fixed) {
			t.Fatalf("stored %s = %+v", w.id, stored)
		}
	}
	if summary.ByStatus[models.HealthBroken] != 1 || summary.ByStatus[models.HealthTimeout] != 1 {
		t.Fatalf("by status = %v", summary.ByStatus)
	}
	if summary.Details[3].RedirectURL != srv.URL+"/ok" {
		t.Fatalf("redirect url = %q", summary.Details[3].RedirectURL)
	}
}

func TestHealthMonitorPersistFailureIsIsolated(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	m := NewHealthMonitor(newMemLinks(), DefaultWhitelist(), NewProber(time.Second, "TestBot/1.0"), 2, zap.NewNop())

	// Links existieren nicht im Store, das Speichern schlägt fehl.
	checks := m.CheckLinks(context.Background(), []models.ExternalLink{
		{ID: "x", URL: srv.URL + "/ok"},
		{ID: "y", URL: srv.URL + "/missing"},
	})
	if len(checks) != 2 {
		t.Fatalf("checks = %d", len(checks))
	}
	for _, c := range checks {
		if c.Persisted || c.Error == "" {
			t.Fatalf("check = %+v, want persist error", c)
		}
	}
	if checks[1].Status != models.HealthBroken {
		t.Fatalf("status = %s", checks[1].Status)
	}
}

func TestHealthMonitorSkipsInternalLinks(t *testing.T) {
	t.Parallel()
	links := newMemLinks()
	links.add(&models.ExternalLink{ID: "internal", URL: "/guides/nie-number"})
	m := NewHealthMonitor(links, DefaultWhitelist(), NewProber(time.Second, "TestBot/1.0"), 2, zap.NewNop())

	summary, err := m.Sweep(context.Background(), LinkFilter{})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !summary.Details[0].Skipped || summary.Details[0].Persisted || len(summary.ByStatus) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	stored, _ := links.GetLink(context.Background(), "internal")
	if stored.HealthStatus != models.HealthPending || stored.CheckCount != 0 {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestCanceledCheckIsNotPersisted(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewProber(time.Second, "TestBot/1.0").Probe(ctx, srv.URL+"/ok")
	if !res.Canceled() || res.Status != "" || res.Reachable() {
		t.Fatalf("result = %+v", res)
	}

	links := newMemLinks()
	links.add(&models.ExternalLink{ID: "l1", URL: srv.URL + "/ok", HealthStatus: models.HealthHealthy})
	m := NewHealthMonitor(links, DefaultWhitelist(), NewProber(time.Second, "TestBot/1.0"), 2, zap.NewNop())
	checks := m.CheckLinks(ctx, []models.ExternalLink{{ID: "l1", URL: srv.URL + "/ok", HealthStatus: models.HealthHealthy}})
	if checks[0].Persisted || checks[0].Status != "" || checks[0].Error == "" {
		t.Fatalf("check = %+v", checks[0])
	}
	stored, _ := links.GetLink(context.Background(), "l1")
	if stored.HealthStatus != models.HealthHealthy || stored.CheckCount != 0 {
		t.Fatalf("stored = %+v", stored)
	}
}
