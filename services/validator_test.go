package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

// localWhitelist gibt dem Testserver die Kategorie government.
func localWhitelist(t *testing.T) *Whitelist {
	t.Helper()
	wl, err := ParseWhitelist([]byte("categories:\n  - name: government\n    domains: [127.0.0.1, boe.es]\n  - name: news\n    domains: [elpais.com]\n"))
	if err != nil {
		t.Fatal(err)
	}
	return wl
}

func TestValidatorCheck(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	prober := NewProber(300*time.Millisecond, "TestBot/1.0")

	cases := []struct {
		name     string
		require  bool
		c        Candidate
		accepted bool
		reason   string
	}{
		{"reachable approved", true, Candidate{AnchorText: "ok", URL: srv.URL + "/ok"}, true, ""},
		{"redirect accepted", true, Candidate{AnchorText: "moved", URL: srv.URL + "/moved"}, true, ""},
		{"broken rejected", true, Candidate{AnchorText: "gone", URL: srv.URL + "/missing"}, false, "probe failed: broken"},
		{"timeout rejected", true, Candidate{AnchorText: "slow", URL: srv.URL + "/slow"}, false, "probe failed: timeout"},
		{"not whitelisted", true, Candidate{AnchorText: "blog", URL: "https://random-blog.example/post"}, false, warnNotApproved},
		{"invalid url", true, Candidate{AnchorText: "bad", URL: "ftp://boe.es/x"}, false, warnInvalidURL},
		{"empty anchor", true, Candidate{AnchorText: "  ", URL: srv.URL + "/ok"}, false, "empty anchor text"},
		{"internal path", true, Candidate{AnchorText: "guide", URL: "/guides/nie"}, true, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := NewValidator(localWhitelist(t), prober, tc.require, zap.NewNop())
			res := v.Check(context.Background(), tc.c)
			if res.Accepted != tc.accepted || res.Reason != tc.reason {
				t.Fatalf("check = accepted %v reason %q, want %v %q", res.Accepted, res.Reason, tc.accepted, tc.reason)
			}
		})
	}
}

func TestValidatorWhitelistOptional(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	wl, err := ParseWhitelist([]byte("categories:\n  - name: news\n    domains: [elpais.com]\n"))
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator(wl, NewProber(time.Second, "TestBot/1.0"), false, zap.NewNop())
	res := v.Check(context.Background(), Candidate{AnchorText: "ok", URL: srv.URL + "/ok"})
	if !res.Accepted || res.Validation.IsApproved {
		t.Fatalf("check = %+v", res)
	}
	if len(res.Validation.Warnings) == 0 {
		t.Fatal("expected advisory warnings")
	}
}

func TestAuthorityScore(t *testing.T) {
	t.Parallel()
	wl := DefaultWhitelist()
	cases := []struct {
		url  string
		want int
	}{
		{"https://www.boe.es/diario", 100},
		{"https://en.wikipedia.org/wiki/Spain", 0},
		{"https://unknown-site.com", defaultAuthority},
		{"https://portal.juntadeandalucia.gob.es", 100},
		{"not a url", 0},
	}
	for _, tc := range cases {
		if got := AuthorityScore(tc.url, wl); got != tc.want {
			t.Errorf("AuthorityScore(%q) = %d, want %d", tc.url, got, tc.want)
		}
	}
}
