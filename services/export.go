package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"content-pulse/models"
)

// ExportKind benennt einen CSV-Report.
type ExportKind string

const (
	ExportLowScores    ExportKind = "low-scores"
	ExportLinkHealth   ExportKind = "link-health"
	ExportReplacements ExportKind = "replacements"
)

// ParseExportKind prüft den Namen eines Reports.
func ParseExportKind(s string) (ExportKind, error) {
	switch k := ExportKind(s); k {
	case ExportLowScores, ExportLinkHealth, ExportReplacements:
		return k, nil
	default:
		return "", wrap(ErrValidation, "unknown export kind "+strconv.Quote(s), nil)
	}
}

// csvWriter schreibt Freitext immer in Anführungszeichen und Zahlen ohne.
type csvWriter struct {
	w      *bufio.Writer
	fields int
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: bufio.NewWriter(w)}
}

func (c *csvWriter) sep() {
	if c.fields > 0 {
		c.w.WriteByte(',')
	}
	c.fields++
}

// quoted schreibt ein Freitextfeld; Anführungszeichen werden verdoppelt, Zeilenumbrüche bleiben im quotierten Feld erhalten.
func (c *csvWriter) quoted(s string) {
	c.sep()
	c.w.WriteByte('"')
	c.w.WriteString(strings.ReplaceAll(s, `"`, `""`))
	c.w.WriteByte('"')
}

func (c *csvWriter) bare(s string) {
	c.sep()
	c.w.WriteString(s)
}

func (c *csvWriter) endRow() {
	c.w.WriteByte('\n')
	c.fields = 0
}

func (c *csvWriter) header(cols ...string) {
	for _, col := range cols {
		c.bare(col)
	}
	c.endRow()
}

func (c *csvWriter) flush() error {
	return c.w.Flush()
}

// ScoreRow ist eine Zeile des Reports schwach bewerteter Artikel.
type ScoreRow struct {
	ID          string
	Title       string
	Score       float64
	Issues      []string
	Suggestions []string
}

// WriteLowScoresCSV schreibt den Report schwach bewerteter Artikel.
func WriteLowScoresCSV(w io.Writer, rows []ScoreRow) error {
	c := newCSVWriter(w)
	c.header("ID", "Title", "Score", "Issues", "Suggestions")
	for _, r := range rows {
		c.bare(r.ID)
		c.quoted(r.Title)
		c.bare(strconv.FormatFloat(r.Score, 'f', 2, 64))
		c.quoted(strings.Join(r.Issues, "; "))
		c.quoted(strings.Join(r.Suggestions, "; "))
		c.endRow()
	}
	return c.flush()
}

// WriteLinkHealthCSV schreibt den Link-Health-Report.
func WriteLinkHealthCSV(w io.Writer, links []models.ExternalLink) error {
	c := newCSVWriter(w)
	c.header("ID", "Article ID", "URL", "Anchor Text", "Status", "Status Code", "Domain", "Last Checked")
	for _, l := range links {
		c.bare(l.ID)
		c.bare(l.ArticleID)
		c.quoted(l.URL)
		c.quoted(l.AnchorText)
		c.bare(string(l.HealthStatus))
		c.bare(strconv.Itoa(l.StatusCode))
		c.quoted(l.Domain)
		if l.LastCheckedAt != nil {
			c.bare(l.LastCheckedAt.UTC().Format(time.RFC3339))
		} else {
			c.bare("")
		}
		c.endRow()
	}
	return c.flush()
}

// WriteReplacementsCSV schreibt den Report der Ersatzvorschläge.
func WriteReplacementsCSV(w io.Writer, proposals []models.LinkReplacement) error {
	c := newCSVWriter(w)
	c.header("Link ID", "Broken URL", "Suggested URL", "Reason", "Relevance", "Status")
	for _, p := range proposals {
		c.bare(p.LinkID)
		c.quoted(p.BrokenURL)
		c.quoted(p.SuggestedURL)
		c.quoted(p.Reason)
		c.bare(strconv.FormatFloat(p.Relevance, 'f', -1, 64))
		c.bare(string(p.Status))
		c.endRow()
	}
	return c.flush()
}

// ReportUploader legt fertige Reports zusätzlich extern ab.
type ReportUploader interface {
	UploadReport(ctx context.Context, name string, data []byte) (string, error)
}

// ExportOptions schränkt die exportierten Zeilen ein.
type ExportOptions struct {
	Statuses          []models.HealthStatus    `json:"statuses,omitempty"`
	ReplacementStatus models.ReplacementStatus `json:"replacement_status,omitempty"`
	Limit             int                      `json:"limit,omitempty"`
}

// ExportResult beschreibt einen geschriebenen Report.
type ExportResult struct {
	Kind ExportKind `json:"kind"`
	Path string     `json:"path"`
	URL  string     `json:"url,omitempty"`
	Rows int        `json:"rows"`
}

// Exporter schreibt CSV-Reports ins Report-Verzeichnis und optional nach S3.
type Exporter struct {
	Articles     ArticleStore
	Links        LinkStore
	Replacements ReplacementStore
	Scorer       *Scorer
	Dir          string
	Uploader     ReportUploader
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewExporter erstellt einen Exporter.
func NewExporter(articles ArticleStore, links LinkStore, replacements ReplacementStore, scorer *Scorer, dir string, uploader ReportUploader, logger *zap.Logger) *Exporter {
	return &Exporter{Articles: articles, Links: links, Replacements: replacements, Scorer: scorer, Dir: dir, Uploader: uploader, Logger: logger, Now: time.Now}
}

// Export erzeugt den Report. Einzelne Artikel, deren Bewertung fehlschlägt, werden ohne Hinweise exportiert.
func (e *Exporter) Export(ctx context.Context, kind ExportKind, opts ExportOptions) (*ExportResult, error) {
	var buf bytes.Buffer
	res := &ExportResult{Kind: kind}

	switch kind {
	case ExportLowScores:
		limit := opts.Limit
		if limit <= 0 {
			limit = 100
		}
		articles, err := e.Articles.ListLowScoring(ctx, e.Scorer.Config.Excellent, limit)
		if err != nil {
			return nil, err
		}
		rows := make([]ScoreRow, 0, len(articles))
		for _, a := range articles {
			row := ScoreRow{ID: a.ID, Title: a.Title}
			if a.Score != nil {
				row.Score = *a.Score
			}
			if b, err := e.Scorer.Compute(ctx, a.ID); err == nil {
				row.Issues, row.Suggestions = b.Issues, b.Suggestions
			} else {
				e.Logger.Warn("Bewertung für Export fehlgeschlagen", zap.String("article_id", a.ID), zap.Error(err))
			}
			rows = append(rows, row)
		}
		res.Rows = len(rows)
		if err := WriteLowScoresCSV(&buf, rows); err != nil {
			return nil, err
		}
	case ExportLinkHealth:
		statuses := opts.Statuses
		if len(statuses) == 0 {
			statuses = []models.HealthStatus{models.HealthBroken, models.HealthTimeout, models.HealthSSLError, models.HealthRedirect}
		}
		links, err := e.Links.ListLinks(ctx, LinkFilter{Statuses: statuses, Limit: opts.Limit})
		if err != nil {
			return nil, err
		}
		res.Rows = len(links)
		if err := WriteLinkHealthCSV(&buf, links); err != nil {
			return nil, err
		}
	case ExportReplacements:
		proposals, err := e.Replacements.ListReplacements(ctx, ReplacementFilter{Status: opts.ReplacementStatus, Limit: opts.Limit})
		if err != nil {
			return nil, err
		}
		res.Rows = len(proposals)
		if err := WriteReplacementsCSV(&buf, proposals); err != nil {
			return nil, err
		}
	default:
		return nil, wrap(ErrValidation, "unknown export kind "+string(kind), nil)
	}

	name := fmt.Sprintf("%s-%s.csv", kind, e.Now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, wrap(ErrPersistence, "create report dir", err)
	}
	res.Path = filepath.Join(e.Dir, name)
	if err := os.WriteFile(res.Path, buf.Bytes(), 0o644); err != nil {
		return nil, wrap(ErrPersistence, "write report", err)
	}

	if e.Uploader != nil {
		url, err := e.Uploader.UploadReport(ctx, name, buf.Bytes())
		if err != nil {
			e.Logger.Error("Report-Upload fehlgeschlagen", zap.String("report", name), zap.Error(err))
		} else {
			res.URL = url
		}
	}
	e.Logger.Info("Report geschrieben", zap.String("kind", string(kind)), zap.String("path", res.Path), zap.Int("rows", res.Rows))
	return res, nil
}
