package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"content-pulse/app"
	"content-pulse/models"
	"content-pulse/services"
)

// respondError bildet die Fehlerarten der Services auf HTTP-Status ab.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUpstream):
		status = http.StatusBadGateway
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func queryStatuses(c *gin.Context) []models.HealthStatus {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	var out []models.HealthStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, models.HealthStatus(s))
		}
	}
	return out
}

// linkResponse überschreibt health_status mit dem abgeleiteten Anzeigezustand.
type linkResponse struct {
	models.ExternalLink
	HealthStatus models.HealthStatus `json:"health_status"`
	StoredStatus models.HealthStatus `json:"stored_status"`
}

func presentLinks(ctx context.Context, a *app.App, links []models.ExternalLink) ([]linkResponse, error) {
	pending, err := a.Store.PendingLinkIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]linkResponse, len(links))
	for i, l := range links {
		out[i] = linkResponse{ExternalLink: l, HealthStatus: services.DisplayStatus(l, pending[l.ID]), StoredStatus: l.HealthStatus}
	}
	return out, nil
}

func setupArticleRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/articles")

	// POST - Artikel anlegen
	rg.POST("/", func(c *gin.Context) {
		var article models.Article
		if err := c.ShouldBindJSON(&article); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		article.ID = ""
		if err := a.Store.CreateArticle(c.Request.Context(), &article); err != nil {
			respondError(c, log, err)
			return
		}
		log.Info("Article created successfully", zap.String("id", article.ID), zap.String("title", article.Title))
		c.JSON(http.StatusCreated, article)
	})

	// GET - Artikel mit optionalen Filtern
	rg.GET("/", func(c *gin.Context) {
		articles, err := a.Store.ListArticles(c.Request.Context(), services.ArticleFilter{
			Language:    c.Query("language"),
			FunnelStage: strings.ToUpper(c.Query("funnel_stage")),
			Topic:       c.Query("topic"),
			Limit:       queryInt(c, "limit"),
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, articles)
	})

	rg.GET("/:id", func(c *gin.Context) {
		article, err := a.Store.GetArticle(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, article)
	})

	// PUT - Artikel bearbeiten, abgeleitete Score-Felder bleiben unverändert
	rg.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")
		article, err := a.Store.GetArticle(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if err := c.ShouldBindJSON(article); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		article.ID = id
		if err := a.Store.SaveArticle(c.Request.Context(), article); err != nil {
			respondError(c, log, err)
			return
		}
		log.Info("Article updated successfully", zap.String("id", id))
		c.JSON(http.StatusOK, article)
	})

	// GET - Bewertung berechnen ohne zu speichern
	rg.GET("/:id/score", func(c *gin.Context) {
		b, err := a.Scorer.Compute(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, b)
	})

	// POST - Bewertung berechnen und speichern
	rg.POST("/:id/score", func(c *gin.Context) {
		b, err := a.Scorer.Recalculate(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, b)
	})

	rg.GET("/:id/links", func(c *gin.Context) {
		links, err := a.Store.ListLinks(c.Request.Context(), services.LinkFilter{ArticleID: c.Param("id")})
		if err != nil {
			respondError(c, log, err)
			return
		}
		out, err := presentLinks(c.Request.Context(), a, links)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	// POST - Links für einen einzelnen Artikel generieren und einfügen
	rg.POST("/:id/links", func(c *gin.Context) {
		res, err := a.LinkGen.GenerateForArticle(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

func setupScoreRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/scores")

	rg.GET("/statistics", func(c *gin.Context) {
		stats, err := a.Scorer.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}

func setupLinkRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/links")

	rg.GET("/", func(c *gin.Context) {
		links, err := a.Store.ListLinks(c.Request.Context(), services.LinkFilter{
			ArticleID:   c.Query("article_id"),
			ArticleType: c.Query("article_type"),
			Statuses:    queryStatuses(c),
			Limit:       queryInt(c, "limit"),
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		out, err := presentLinks(c.Request.Context(), a, links)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	// POST - Beratende Prüfung einer URL gegen die Whitelist
	rg.POST("/validate", func(c *gin.Context) {
		var req struct {
			URL string `json:"url" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		c.JSON(http.StatusOK, a.Validator.Validate(req.URL))
	})

	// POST - Einzelnen Link sofort prüfen
	rg.POST("/:id/check", func(c *gin.Context) {
		link, err := a.Store.GetLink(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		checks := a.Monitor.CheckLinks(c.Request.Context(), []models.ExternalLink{*link})
		c.JSON(http.StatusOK, checks[0])
	})

	rg.POST("/:id/suggestions", func(c *gin.Context) {
		proposals, err := a.Suggester.SuggestForLink(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		if proposals == nil {
			proposals = []models.LinkReplacement{}
		}
		c.JSON(http.StatusOK, proposals)
	})

	rg.GET("/:id/replacements", func(c *gin.Context) {
		proposals, err := a.Store.ListReplacements(c.Request.Context(), services.ReplacementFilter{LinkID: c.Param("id")})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, proposals)
	})

	// DELETE - Link aus Text und Datenbank entfernen
	rg.DELETE("/:id", func(c *gin.Context) {
		if err := a.Reviewer.Remove(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func setupReplacementRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/replacements")

	rg.GET("/", func(c *gin.Context) {
		proposals, err := a.Store.ListReplacements(c.Request.Context(), services.ReplacementFilter{
			Status: models.ReplacementStatus(c.Query("status")),
			Limit:  queryInt(c, "limit"),
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, proposals)
	})

	rg.POST("/:id/approve", func(c *gin.Context) {
		link, err := a.Reviewer.Approve(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, link)
	})

	rg.POST("/:id/reject", func(c *gin.Context) {
		if err := a.Reviewer.Reject(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": models.ReplacementRejected})
	})
}

func setupBatchRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/batches")

	for _, op := range []services.Operation{services.OpScores, services.OpLinks, services.OpHealth, services.OpSuggestions} {
		op := op
		rg.POST("/"+string(op), func(c *gin.Context) {
			var sel services.Selector
			if c.Request.ContentLength != 0 {
				if err := c.ShouldBindJSON(&sel); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
					return
				}
			}
			report, err := a.Orchestrator.Start(c.Request.Context(), op, sel)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusAccepted, report)
		})
	}

	rg.GET("/:id", func(c *gin.Context) {
		report, err := a.Orchestrator.Status(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/:id/pause", func(c *gin.Context) {
		id := c.Param("id")
		if _, err := a.Orchestrator.Status(c.Request.Context(), id); err != nil {
			respondError(c, log, err)
			return
		}
		a.Orchestrator.Pause(id)
		c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "pausing"})
	})

	rg.POST("/:id/resume", func(c *gin.Context) {
		id := c.Param("id")
		report, err := a.Orchestrator.Status(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if report.Status == models.RunCompleted {
			c.JSON(http.StatusOK, report)
			return
		}
		go func() {
			if _, err := a.Orchestrator.Resume(context.Background(), id); err != nil {
				log.Error("Resume failed", zap.String("run_id", id), zap.Error(err))
			}
		}()
		report.Status = models.RunRunning
		c.JSON(http.StatusAccepted, report)
	})
}

func setupExportRoutes(router *gin.Engine, a *app.App, log *zap.Logger) {
	rg := router.Group("/exports")

	rg.POST("/:kind", func(c *gin.Context) {
		kind, err := services.ParseExportKind(c.Param("kind"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		var opts services.ExportOptions
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&opts); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		report, err := a.Orchestrator.Export(c.Request.Context(), kind, opts)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}
