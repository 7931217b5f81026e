package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"content-pulse/models"
	"content-pulse/providers"
)

type reviewFixture struct {
	articles     *memArticles
	links        *memLinks
	replacements *memReplacements
	link         *models.ExternalLink
}

func newReviewFixture(brokenURL string, status models.HealthStatus) *reviewFixture {
	articles := newMemArticles(&models.Article{ID: "art-1", Title: "Residency", Content: "Apply at the [immigration office](" + brokenURL + ") early."})
	links := newMemLinks()
	links.articles = articles
	link := &models.ExternalLink{ID: "link-1", ArticleID: "art-1", URL: brokenURL, AnchorText: "immigration office", HealthStatus: status, StatusCode: 404}
	links.add(link)
	return &reviewFixture{articles: articles, links: links, replacements: newMemReplacements(links), link: link}
}

func TestSuggestForLinkRanksApprovedSuggestions(t *testing.T) {
	t.Parallel()
	f := newReviewFixture("https://old.boe.es/x", models.HealthBroken)
	gen := &fakeGenerator{suggestions: []providers.Suggestion{
		{URL: "https://random-blog.example/a", Relevance: 10},
		{URL: "https://www.inclusion.gob.es/extranjeria", Relevance: 7.5},
		{URL: "https://www.boe.es/new", Relevance: 12},
		{URL: "https://old.boe.es/x", Relevance: 9},
		{URL: "https://www.ine.es/residentes", Relevance: 3},
		{URL: "https://www.exteriores.gob.es", Relevance: 6},
		{URL: "https://www.boe.es/new", Relevance: 1},
	}}
	s := NewSuggester(f.articles, f.links, f.replacements, gen, DefaultWhitelist(), zap.NewNop())

	proposals, err := s.SuggestForLink(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	want := []struct {
		url       string
		relevance float64
	}{
		{"https://www.boe.es/new", 10},
		{"https://www.inclusion.gob.es/extranjeria", 7.5},
		{"https://www.exteriores.gob.es", 6},
	}
	if len(proposals) != len(want) {
		t.Fatalf("proposals = %+v", proposals)
	}
	for i, w := range want {
		p := proposals[i]
		if p.SuggestedURL != w.url || p.Relevance != w.relevance || p.Rank != i+1 || p.Status != models.ReplacementPending || p.BrokenURL != f.link.URL {
			t.Fatalf("proposal %d = %+v, want %+v", i, p, w)
		}
	}
	if f.articles.content("art-1") != "Apply at the [immigration office](https://old.boe.es/x) early." {
		t.Fatal("suggesting must not touch the article")
	}

	// Zweiter Aufruf liefert die offenen Vorschläge ohne neuen Generator-Aufruf.
	again, err := s.SuggestForLink(context.Background(), "link-1")
	if err != nil || len(again) != 3 || gen.calls != 1 {
		t.Fatalf("again = %d, %v, calls %d", len(again), err, gen.calls)
	}
}

func TestSuggestForLinkRequiresBrokenLink(t *testing.T) {
	t.Parallel()
	f := newReviewFixture("https://www.boe.es/x", models.HealthHealthy)
	s := NewSuggester(f.articles, f.links, f.replacements, &fakeGenerator{}, DefaultWhitelist(), zap.NewNop())

	if _, err := s.SuggestForLink(context.Background(), "link-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := s.SuggestForLink(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSuggestForLinkUpstreamError(t *testing.T) {
	t.Parallel()
	f := newReviewFixture("https://www.boe.es/x", models.HealthBroken)
	s := NewSuggester(f.articles, f.links, f.replacements, &fakeGenerator{err: errors.New("503")}, DefaultWhitelist(), zap.NewNop())

	if _, err := s.SuggestForLink(context.Background(), "link-1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if len(f.replacements.items) != 0 {
		t.Fatal("proposals stored after upstream error")
	}
}

func TestReviewerApprove(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	f := newReviewFixture("https://old.boe.es/x", models.HealthBroken)
	_ = f.replacements.CreateReplacements(context.Background(), []models.LinkReplacement{
		{ID: "r-1", LinkID: "link-1", BrokenURL: f.link.URL, SuggestedURL: srv.URL + "/ok", Rank: 1},
		{ID: "r-2", LinkID: "link-1", BrokenURL: f.link.URL, SuggestedURL: srv.URL + "/moved", Rank: 2},
	})
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	r := NewReviewer(f.articles, f.links, f.replacements, NewProber(time.Second, "TestBot/1.0"), localWhitelist(t), zap.NewNop())
	r.Now = func() time.Time { return fixed }

	link, err := r.Approve(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if link.URL != srv.URL+"/ok" || link.HealthStatus != models.HealthHealthy || !link.Verified {
		t.Fatalf("link = %+v", link)
	}
	if got := f.articles.content("art-1"); got != "Apply at the [immigration office]("+srv.URL+"/ok) early." {
		t.Fatalf("content = %q", got)
	}
	a := f.replacements.approvals[0]
	if a.Category != "government" || a.StatusCode != 200 || !a.DecidedAt.Equal(fixed) {
		t.Fatalf("approval = %+v", a)
	}
	sibling, _ := f.replacements.GetReplacement(context.Background(), "r-2")
	if sibling.Status != models.ReplacementRejected {
		t.Fatalf("sibling = %s", sibling.Status)
	}

	if _, err := r.Approve(context.Background(), "r-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("second approve err = %v, want ErrValidation", err)
	}
}

func TestReviewerApproveUnreachable(t *testing.T) {
	t.Parallel()
	srv := newLinkServer(t)
	f := newReviewFixture("https://old.boe.es/x", models.HealthBroken)
	_ = f.replacements.CreateReplacements(context.Background(), []models.LinkReplacement{
		{ID: "r-1", LinkID: "link-1", SuggestedURL: srv.URL + "/missing"},
		{ID: "r-2", LinkID: "link-1", SuggestedURL: "https://random-blog.example"},
	})
	r := NewReviewer(f.articles, f.links, f.replacements, NewProber(time.Second, "TestBot/1.0"), localWhitelist(t), zap.NewNop())

	if _, err := r.Approve(context.Background(), "r-1"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if _, err := r.Approve(context.Background(), "r-2"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(f.replacements.approvals) != 0 {
		t.Fatal("approval stored for failed probe")
	}
	rep, _ := f.replacements.GetReplacement(context.Background(), "r-1")
	if rep.Status != models.ReplacementPending {
		t.Fatalf("status = %s, want pending", rep.Status)
	}
}

func TestReviewerRejectAndRemove(t *testing.T) {
	t.Parallel()
	f := newReviewFixture("https://old.boe.es/x", models.HealthBroken)
	_ = f.replacements.CreateReplacements(context.Background(), []models.LinkReplacement{{ID: "r-1", LinkID: "link-1", SuggestedURL: "https://www.boe.es"}})
	r := NewReviewer(f.articles, f.links, f.replacements, NewProber(time.Second, "TestBot/1.0"), DefaultWhitelist(), zap.NewNop())

	if err := r.Reject(context.Background(), "r-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	rep, _ := f.replacements.GetReplacement(context.Background(), "r-1")
	if rep.Status != models.ReplacementRejected || rep.DecidedAt == nil {
		t.Fatalf("replacement = %+v", rep)
	}
	if err := r.Reject(context.Background(), "r-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("second reject err = %v", err)
	}

	if err := r.Remove(context.Background(), "link-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := f.articles.content("art-1"); got != "Apply at the immigration office early." {
		t.Fatalf("content = %q", got)
	}
	if _, err := f.links.GetLink(context.Background(), "link-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("link still present: %v", err)
	}
}
