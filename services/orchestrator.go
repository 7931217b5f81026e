package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"content-pulse/models"
)

// Operation benennt einen Batch-Lauf.
type Operation string

const (
	OpScores      Operation = "scores"
	OpLinks       Operation = "links"
	OpHealth      Operation = "health"
	OpSuggestions Operation = "suggestions"
)

// BatchSettings legt Batch-Größe und Pause zwischen Batches fest.
type BatchSettings struct {
	Size  int
	Delay time.Duration
}

// SelectorMode wählt die Zielmenge eines Laufs.
type SelectorMode string

const (
	SelectAll    SelectorMode = "all"
	SelectIDs    SelectorMode = "ids"
	SelectFilter SelectorMode = "filter"
)

// Selector beschreibt die Zielmenge. Für Artikel-Operationen gilt Filter, für Link-Operationen Statuses.
type Selector struct {
	Mode      SelectorMode          `json:"mode"`
	IDs       []string              `json:"ids,omitempty"`
	Filter    ArticleFilter         `json:"filter"`
	Statuses  []models.HealthStatus `json:"statuses,omitempty"`
	ArticleID string                `json:"article_id,omitempty"`
	Limit     int                   `json:"limit,omitempty"`
}

// Report ist der laufende Stand eines Batch-Laufs.
type Report struct {
	RunID         string                      `json:"run_id"`
	Operation     Operation                   `json:"operation"`
	Status        models.RunStatus            `json:"status"`
	Total         int                         `json:"total"`
	Processed     int                         `json:"processed"`
	Succeeded     int                         `json:"succeeded"`
	Failed        int                         `json:"failed"`
	Skipped       int                         `json:"skipped"`
	NextIndex     int                         `json:"next_index"`
	ScoreBuckets  map[string]int              `json:"score_buckets,omitempty"`
	LinkStatuses  map[models.HealthStatus]int `json:"link_statuses,omitempty"`
	LinksInserted int                         `json:"links_inserted"`
	Suggestions   int                         `json:"suggestions"`
	Errors        []string                    `json:"errors"`
	Elapsed       time.Duration               `json:"elapsed"`
	FilePath      string                      `json:"file_path,omitempty"`
}

func (r *Report) addError(msg string) {
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// itemResult ist das Ergebnis eines einzelnen Elements eines Batches.
type itemResult struct {
	id          string
	err         error
	skipped     bool
	bucket      string
	linkStatus  models.HealthStatus
	inserted    int
	suggestions int
}

// Orchestrator treibt Bewertung, Link-Generierung, Health-Sweeps und Vorschläge in festen Batches.
// Zwei gleichzeitige Läufe über dieselben Datensätze werden nicht koordiniert; der letzte Schreiber gewinnt.
type Orchestrator struct {
	Articles  ArticleStore
	Links     LinkStore
	Runs      RunStore
	Scorer    *Scorer
	LinkGen   *LinkGenerator
	Monitor   *HealthMonitor
	Suggester *Suggester
	Exporter  *Exporter
	Settings  map[Operation]BatchSettings
	Logger    *zap.Logger

	mu     sync.Mutex
	paused map[string]bool
}

// NewOrchestrator erstellt einen Orchestrator.
func NewOrchestrator(articles ArticleStore, links LinkStore, runs RunStore, settings map[Operation]BatchSettings, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Articles: articles,
		Links:    links,
		Runs:     runs,
		Settings: settings,
		Logger:   logger,
		paused:   make(map[string]bool),
	}
}

// ParseOperation prüft den Namen einer Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpScores, OpLinks, OpHealth, OpSuggestions:
		return op, nil
	default:
		return "", wrap(ErrValidation, "unknown operation "+s, nil)
	}
}

func (o *Orchestrator) settings(op Operation) BatchSettings {
	s := o.Settings[op]
	if s.Size <= 0 {
		s.Size = 10
	}
	return s
}

// Targets ermittelt die geordnete Zielmenge eines Laufs.
func (o *Orchestrator) Targets(ctx context.Context, op Operation, sel Selector) ([]string, error) {
	switch op {
	case OpScores, OpLinks:
		filter := ArticleFilter{}
		switch sel.Mode {
		case SelectIDs:
			if len(sel.IDs) == 0 {
				return nil, wrap(ErrValidation, "selector ids is empty", nil)
			}
			filter.IDs = sel.IDs
		case SelectFilter:
			filter = sel.Filter
		case SelectAll, "":
		default:
			return nil, wrap(ErrValidation, "unknown selector "+string(sel.Mode), nil)
		}
		if sel.Limit > 0 {
			filter.Limit = sel.Limit
		}
		return o.Articles.ListArticleIDs(ctx, filter)
	case OpHealth, OpSuggestions:
		filter := LinkFilter{Limit: sel.Limit}
		switch sel.Mode {
		case SelectIDs:
			if len(sel.IDs) == 0 {
				return nil, wrap(ErrValidation, "selector ids is empty", nil)
			}
			filter.IDs = sel.IDs
		case SelectFilter:
			filter.Statuses = sel.Statuses
			filter.ArticleID = sel.ArticleID
		case SelectAll, "":
		default:
			return nil, wrap(ErrValidation, "unknown selector "+string(sel.Mode), nil)
		}
		if op == OpSuggestions {
			filter.Statuses = []models.HealthStatus{models.HealthBroken}
		}
		return o.Links.ListLinkIDs(ctx, filter)
	default:
		return nil, wrap(ErrValidation, "unknown operation "+string(op), nil)
	}
}

// Run friert die Zielmenge ein, speichert den Lauf und arbeitet ihn ab.
// Fehler beim Ermitteln der Zielmenge brechen sofort ab.
func (o *Orchestrator) Run(ctx context.Context, op Operation, sel Selector) (*Report, error) {
	run, ids, report, err := o.prepare(ctx, op, sel)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, run, ids, report)
}

// Start legt den Lauf an und arbeitet ihn im Hintergrund ab. Zurück kommt der Anfangsstand mit Run-ID.
func (o *Orchestrator) Start(ctx context.Context, op Operation, sel Selector) (*Report, error) {
	run, ids, report, err := o.prepare(ctx, op, sel)
	if err != nil {
		return nil, err
	}
	initial := *report
	go func() {
		if _, err := o.execute(context.WithoutCancel(ctx), run, ids, report); err != nil {
			o.Logger.Error("Batch-Lauf fehlgeschlagen", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	initial.Status = models.RunRunning
	return &initial, nil
}

func (o *Orchestrator) prepare(ctx context.Context, op Operation, sel Selector) (*models.BatchRun, []string, *Report, error) {
	ids, err := o.Targets(ctx, op, sel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch targets: %w", err)
	}
	targets, _ := json.Marshal(ids)
	options, _ := json.Marshal(sel)
	run := &models.BatchRun{
		Operation: string(op),
		TargetIDs: datatypes.JSON(targets),
		Options:   datatypes.JSON(options),
		Status:    models.RunRunning,
	}
	if err := o.Runs.CreateRun(ctx, run); err != nil {
		return nil, nil, nil, err
	}
	return run, ids, &Report{RunID: run.ID, Operation: op, Total: len(ids), Errors: []string{}}, nil
}

// Resume setzt einen pausierten Lauf am ersten unbearbeiteten Index fort.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*Report, error) {
	run, err := o.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(run.TargetIDs, &ids); err != nil {
		return nil, wrap(ErrPersistence, "decode targets of run "+runID, err)
	}
	report := &Report{}
	if len(run.Report) > 0 {
		if err := json.Unmarshal(run.Report, report); err != nil {
			return nil, wrap(ErrPersistence, "decode report of run "+runID, err)
		}
	}
	report.RunID, report.Operation, report.Total = run.ID, Operation(run.Operation), len(ids)
	if run.Status == models.RunCompleted {
		report.Status = run.Status
		return report, nil
	}
	o.mu.Lock()
	delete(o.paused, runID)
	o.mu.Unlock()
	run.Status = models.RunRunning
	return o.execute(ctx, run, ids, report)
}

// Pause hält einen Lauf nach dem aktuellen Batch an.
func (o *Orchestrator) Pause(runID string) {
	o.mu.Lock()
	o.paused[runID] = true
	o.mu.Unlock()
}

func (o *Orchestrator) isPaused(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused[runID]
}

// Status liefert den gespeicherten Stand eines Laufs.
func (o *Orchestrator) Status(ctx context.Context, runID string) (*Report, error) {
	run, err := o.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if len(run.Report) > 0 {
		_ = json.Unmarshal(run.Report, report)
	}
	report.RunID, report.Operation, report.Status, report.NextIndex = run.ID, Operation(run.Operation), run.Status, run.NextIndex
	return report, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *models.BatchRun, ids []string, report *Report) (*Report, error) {
	op := Operation(run.Operation)
	cfg := o.settings(op)
	logger := o.Logger.With(zap.String("run_id", run.ID), zap.String("operation", run.Operation))
	start := time.Now()
	elapsedBefore := report.Elapsed
	// Ein begonnener Batch läuft zu Ende; Abbruch wirkt erst an der Batch-Grenze.
	batchCtx := context.WithoutCancel(ctx)

	logger.Info("Batch-Lauf gestartet", zap.Int("total", len(ids)), zap.Int("next_index", run.NextIndex), zap.Int("batch_size", cfg.Size))

	for run.NextIndex < len(ids) {
		if o.isPaused(run.ID) || ctx.Err() != nil {
			run.Status = models.RunPaused
			break
		}
		end := run.NextIndex + cfg.Size
		if end > len(ids) {
			end = len(ids)
		}
		results := o.processBatch(batchCtx, op, ids[run.NextIndex:end], cfg.Size)
		o.accumulate(report, op, results)

		run.NextIndex = end
		report.NextIndex = end
		report.Elapsed = elapsedBefore + time.Since(start)
		if err := o.save(batchCtx, run, report); err != nil {
			return report, err
		}
		logger.Info("Batch abgeschlossen",
			zap.Int("processed", report.Processed),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Any("score_buckets", report.ScoreBuckets),
			zap.Any("link_statuses", report.LinkStatuses),
			zap.Int("links_inserted", report.LinksInserted),
			zap.Int("next_index", run.NextIndex))

		if run.NextIndex < len(ids) && cfg.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.Delay):
			}
		}
	}
	if run.Status != models.RunPaused {
		run.Status = models.RunCompleted
	}
	report.Status = run.Status
	report.Elapsed = elapsedBefore + time.Since(start)
	if err := o.save(batchCtx, run, report); err != nil {
		return report, err
	}
	logger.Info("Batch-Lauf beendet", zap.String("status", string(run.Status)), zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (o *Orchestrator) save(ctx context.Context, run *models.BatchRun, report *Report) error {
	report.Status = run.Status
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	run.Report = datatypes.JSON(data)
	return o.Runs.SaveRun(ctx, run)
}

// processBatch verarbeitet einen Batch nebenläufig. Die Ergebnisse stehen in Eingabereihenfolge.
func (o *Orchestrator) processBatch(ctx context.Context, op Operation, ids []string, limit int) []itemResult {
	if op == OpHealth {
		return o.healthBatch(ctx, ids)
	}
	results := make([]itemResult, len(ids))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = o.processItem(ctx, op, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) processItem(ctx context.Context, op Operation, id string) itemResult {
	res := itemResult{id: id}
	switch op {
	case OpScores:
		b, err := o.Scorer.Recalculate(ctx, id)
		if err != nil {
			res.err = err
			return res
		}
		res.bucket = ScoreBucket(b.Total, o.Scorer.Config)
	case OpLinks:
		r, err := o.LinkGen.GenerateForArticle(ctx, id)
		if err != nil {
			res.err = err
			return res
		}
		res.skipped, res.inserted = r.Skipped, r.Inserted
	case OpSuggestions:
		proposals, err := o.Suggester.SuggestForLink(ctx, id)
		if err != nil {
			res.err = err
			return res
		}
		res.suggestions = len(proposals)
	}
	return res
}

// healthBatch lädt die Links eines Batches auf einmal und prüft sie über den Health Monitor.
func (o *Orchestrator) healthBatch(ctx context.Context, ids []string) []itemResult {
	results := make([]itemResult, len(ids))
	links, err := o.Links.ListLinks(ctx, LinkFilter{IDs: ids})
	if err != nil {
		for i, id := range ids {
			results[i] = itemResult{id: id, err: err}
		}
		return results
	}
	byID := make(map[string]models.ExternalLink, len(links))
	for _, l := range links {
		byID[l.ID] = l
	}
	ordered := make([]models.ExternalLink, 0, len(ids))
	index := make([]int, 0, len(ids))
	for i, id := range ids {
		l, ok := byID[id]
		if !ok {
			results[i] = itemResult{id: id, err: wrap(ErrNotFound, "link "+id, nil)}
			continue
		}
		ordered = append(ordered, l)
		index = append(index, i)
	}
	for j, check := range o.Monitor.CheckLinks(ctx, ordered) {
		r := itemResult{id: check.LinkID, linkStatus: check.Status}
		if check.Skipped {
			r = itemResult{id: check.LinkID, skipped: true}
		} else if !check.Persisted {
			r.err = fmt.Errorf("%s", check.Error)
		}
		results[index[j]] = r
	}
	return results
}

func (o *Orchestrator) accumulate(report *Report, op Operation, results []itemResult) {
	for _, r := range results {
		report.Processed++
		if r.err != nil {
			report.Failed++
			report.addError(r.id + ": " + r.err.Error())
			batchFailuresCounter.WithLabelValues(string(op)).Inc()
			continue
		}
		report.Succeeded++
		if r.skipped {
			report.Skipped++
		}
		if r.bucket != "" {
			if report.ScoreBuckets == nil {
				report.ScoreBuckets = make(map[string]int)
			}
			report.ScoreBuckets[r.bucket]++
		}
		if r.linkStatus != "" {
			if report.LinkStatuses == nil {
				report.LinkStatuses = make(map[models.HealthStatus]int)
			}
			report.LinkStatuses[r.linkStatus]++
		}
		report.LinksInserted += r.inserted
		report.Suggestions += r.suggestions
	}
}

// Export schreibt einen CSV-Report und liefert ihn als Report mit Dateipfad.
func (o *Orchestrator) Export(ctx context.Context, kind ExportKind, opts ExportOptions) (*Report, error) {
	start := time.Now()
	res, err := o.Exporter.Export(ctx, kind, opts)
	if err != nil {
		return nil, err
	}
	return &Report{
		Operation: Operation("export:" + string(kind)),
		Status:    models.RunCompleted,
		Total:     res.Rows,
		Processed: res.Rows,
		Succeeded: res.Rows,
		Errors:    []string{},
		Elapsed:   time.Since(start),
		FilePath:  res.Path,
	}, nil
}
