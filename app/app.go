// Package app verdrahtet Konfiguration, Datenbank und Services für Server und CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"content-pulse/config"
	"content-pulse/providers"
	"content-pulse/providers/anthropic"
	"content-pulse/services"
	"content-pulse/storage"
)

// App bündelt alle Services einer Instanz.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Store  *storage.Store

	Whitelist    *services.Whitelist
	Prober       *services.Prober
	Generator    providers.Generator
	Validator    *services.Validator
	Scorer       *services.Scorer
	LinkGen      *services.LinkGenerator
	Monitor      *services.HealthMonitor
	Suggester    *services.Suggester
	Reviewer     *services.Reviewer
	Exporter     *services.Exporter
	Orchestrator *services.Orchestrator
}

// New öffnet die Datenbank und baut alle Services. Ohne API-Key läuft die Instanz ohne Generator.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var gen providers.Generator
	if cfg.AnthropicAPIKey != "" {
		g, err := anthropic.NewGenerator(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		gen = g
	} else {
		logger.Warn("ANTHROPIC_API_KEY fehlt, Link-Generierung und Vorschläge sind deaktiviert")
	}

	var uploader services.ReportUploader
	if cfg.ReportS3Enabled() {
		rs, err := storage.NewReportStore(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create report store: %w", err)
		}
		uploader = rs
	}

	return Build(cfg, logger, db, gen, uploader)
}

// Build verdrahtet die Services auf einer offenen Datenbank.
func Build(cfg *config.Config, logger *zap.Logger, db *gorm.DB, gen providers.Generator, uploader services.ReportUploader) (*App, error) {
	wl, err := services.LoadWhitelist(cfg.WhitelistPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Whitelist geladen", zap.Int("domains", len(wl.Domains())))

	store := storage.NewStore(db)
	prober := services.NewProber(cfg.ProbeTimeout, cfg.ProbeUserAgent)
	validator := services.NewValidator(wl, prober, cfg.LinksRequireWhitelist, logger)
	scorer := services.NewScorer(store, store, cfg.Score, logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Store:     store,
		Whitelist: wl,
		Prober:    prober,
		Generator: gen,
		Validator: validator,
		Scorer:    scorer,
		LinkGen:   services.NewLinkGenerator(store, store, gen, validator, cfg.LinksMaxPerDomain, cfg.LinksTargetPerArticle, logger),
		Monitor:   services.NewHealthMonitor(store, wl, prober, cfg.HealthBatchSize, logger),
		Suggester: services.NewSuggester(store, store, store, gen, wl, logger),
		Reviewer:  services.NewReviewer(store, store, store, prober, wl, logger),
		Exporter:  services.NewExporter(store, store, store, scorer, cfg.ReportDir, uploader, logger),
	}

	o := services.NewOrchestrator(store, store, store, map[services.Operation]services.BatchSettings{
		services.OpScores:      {Size: cfg.ScoreBatchSize},
		services.OpLinks:       {Size: cfg.LinksBatchSize, Delay: cfg.LinksBatchDelay},
		services.OpHealth:      {Size: cfg.HealthBatchSize},
		services.OpSuggestions: {Size: cfg.SuggestBatchSize, Delay: cfg.SuggestBatchDelay},
	}, logger)
	o.Scorer = a.Scorer
	o.LinkGen = a.LinkGen
	o.Monitor = a.Monitor
	o.Suggester = a.Suggester
	o.Exporter = a.Exporter
	a.Orchestrator = o
	return a, nil
}
