package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"content-pulse/app"
	"content-pulse/config"
	"content-pulse/services"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	a, err := app.New(context.Background(), cfg, logging)
	if err != nil {
		logging.Fatal("Setup failed", zap.Error(err))
	}

	router := newRouter(a)

	// Setup Cron
	cronScheduler := cron.New()
	if err := scheduleJobs(cronScheduler, a); err != nil {
		logging.Fatal("Cron setup failed", zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// newRouter baut die gin-Engine mit allen Routen.
func newRouter(a *app.App) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(a.Config))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupArticleRoutes(router, a, a.Logger)
	setupScoreRoutes(router, a, a.Logger)
	setupLinkRoutes(router, a, a.Logger)
	setupReplacementRoutes(router, a, a.Logger)
	setupBatchRoutes(router, a, a.Logger)
	setupExportRoutes(router, a, a.Logger)
	return router
}

// scheduleJobs registriert Health-Sweep und Neubewertung; leere Zeitpläne deaktivieren den Job.
func scheduleJobs(c *cron.Cron, a *app.App) error {
	if a.Config.HealthCronSchedule != "" {
		if _, err := c.AddFunc(a.Config.HealthCronSchedule, func() {
			runScheduled(a, services.OpHealth)
		}); err != nil {
			return fmt.Errorf("invalid HEALTH_CRON_SCHEDULE %q: %w", a.Config.HealthCronSchedule, err)
		}
	}
	if a.Config.ScoreCronSchedule != "" {
		if _, err := c.AddFunc(a.Config.ScoreCronSchedule, func() {
			runScheduled(a, services.OpScores)
		}); err != nil {
			return fmt.Errorf("invalid CRON_SCHEDULE %q: %w", a.Config.ScoreCronSchedule, err)
		}
	}
	return nil
}

func runScheduled(a *app.App, op services.Operation) {
	a.Logger.Info("Running scheduled batch job...", zap.String("operation", string(op)))
	report, err := a.Orchestrator.Run(context.Background(), op, services.Selector{Mode: services.SelectAll})
	if err != nil {
		a.Logger.Error("Cron job failed", zap.String("operation", string(op)), zap.Error(err))
		return
	}
	a.Logger.Info("Cron job completed",
		zap.String("operation", string(op)),
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
}
