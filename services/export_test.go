package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"content-pulse/models"
)

func TestWriteLinkHealthCSV(t *testing.T) {
	t.Parallel()
	checked := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	links := []models.ExternalLink{
		{ID: "1", ArticleID: "a", URL: "https://boe.es/x", AnchorText: `the "official" gazette`, HealthStatus: models.HealthBroken, StatusCode: 404, Domain: "boe.es", LastCheckedAt: &checked},
		{ID: "2", ArticleID: "a", URL: "https://ine.es", AnchorText: "line\nbreak", HealthStatus: models.HealthTimeout, Domain: "ine.es"},
		{ID: "3", ArticleID: "b", URL: "https://elpais.com", AnchorText: "news, daily", HealthStatus: models.HealthRedirect, StatusCode: 301, Domain: "elpais.com"},
	}
	var buf bytes.Buffer
	if err := WriteLinkHealthCSV(&buf, links); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ID,Article ID,URL,Anchor Text,Status,Status Code,Domain,Last Checked\n") {
		t.Fatalf("header = %q", out)
	}
	for _, row := range []string{
		`1,a,"https://boe.es/x","the ""official"" gazette",broken,404,"boe.es",2025-02-03T04:05:06Z` + "\n",
		"2,a,\"https://ine.es\",\"line\nbreak\",timeout,0,\"ine.es\",\n",
		`3,b,"https://elpais.com","news, daily",redirect,301,"elpais.com",` + "\n",
	} {
		if !strings.Contains(out, row) {
			t.Fatalf("missing row %q in:\n%s", row, out)
		}
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d", len(records))
	}
	if records[2][3] != "line\nbreak" || records[1][3] != `the "official" gazette` || records[3][3] != "news, daily" {
		t.Fatalf("anchor texts = %q, %q, %q", records[1][3], records[2][3], records[3][3])
	}
}

func TestWriteLowScoresCSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := WriteLowScoresCSV(&buf, []ScoreRow{{ID: "x", Title: "Guide", Score: 7.457, Issues: []string{"a", "b"}, Suggestions: []string{"c"}}})
	if err != nil {
		t.Fatal(err)
	}
	want := "ID,Title,Score,Issues,Suggestions\nx,\"Guide\",7.46,\"a; b\",\"c\"\n"
	if buf.String() != want {
		t.Fatalf("csv = %q", buf.String())
	}
}

type fakeUploader struct {
	names []string
	err   error
}

func (f *fakeUploader) UploadReport(_ context.Context, name string, _ []byte) (string, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example.com/reports/" + name, nil
}

func TestExporterExport(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC)
	low := 6.5
	high := 9.9
	articles := newMemArticles(
		&models.Article{ID: "low", Title: "Weak", Content: "short", UpdatedAt: now},
		&models.Article{ID: "high", Title: "Strong", Content: "long", UpdatedAt: now},
	)
	articles.byID["low"].Score = &low
	articles.byID["high"].Score = &high
	links := newMemLinks()
	links.add(&models.ExternalLink{ID: "l1", ArticleID: "low", URL: "https://boe.es", HealthStatus: models.HealthBroken})
	links.add(&models.ExternalLink{ID: "l2", ArticleID: "low", URL: "https://ine.es", HealthStatus: models.HealthHealthy})
	scorer := NewScorer(articles, links, testScoreConfig(), zap.NewNop())
	scorer.Now = func() time.Time { return now }

	dir := t.TempDir()
	up := &fakeUploader{}
	e := NewExporter(articles, links, newMemReplacements(links), scorer, dir, up, zap.NewNop())
	e.Now = func() time.Time { return now }

	res, err := e.Export(context.Background(), ExportLowScores, ExportOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Rows != 1 || res.Path != filepath.Join(dir, "low-scores-20250701-103000.csv") || res.URL == "" {
		t.Fatalf("result = %+v", res)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `low,"Weak",6.50,"`) {
		t.Fatalf("csv = %s", data)
	}

	up.err = errors.New("bucket missing")
	res, err = e.Export(context.Background(), ExportLinkHealth, ExportOptions{})
	if err != nil {
		t.Fatalf("upload failure must not fail export: %v", err)
	}
	if res.Rows != 1 || res.URL != "" {
		t.Fatalf("result = %+v", res)
	}

	if _, err := ParseExportKind("everything"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
