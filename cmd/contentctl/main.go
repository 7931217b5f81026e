package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"content-pulse/app"
	"content-pulse/config"
	"content-pulse/models"
	"content-pulse/services"
)

var (
	ids         []string
	language    string
	funnelStage string
	topic       string
	maxScore    float64
	unscored    bool
	statuses    []string
	articleID   string
	limit       int
	debugMode   bool
)

var rootCmd = &cobra.Command{
	Use:   "contentctl",
	Short: "Batch jobs for content scoring and external link maintenance",
	Long:  `Runs scoring, link generation, health checks, replacement suggestions and CSV exports against the content database.`,
}

// buildSelector übersetzt die Flags in eine Zielmenge.
func buildSelector() services.Selector {
	sel := services.Selector{Mode: services.SelectAll, ArticleID: articleID, Limit: limit}
	if len(ids) > 0 {
		sel.Mode = services.SelectIDs
		sel.IDs = ids
		return sel
	}
	sel.Filter = services.ArticleFilter{
		Language:    language,
		FunnelStage: strings.ToUpper(funnelStage),
		Topic:       topic,
		Unscored:    unscored,
		Limit:       limit,
	}
	if maxScore > 0 {
		sel.Filter.MaxScore = &maxScore
	}
	for _, s := range statuses {
		sel.Statuses = append(sel.Statuses, models.HealthStatus(s))
	}
	if language != "" || funnelStage != "" || topic != "" || maxScore > 0 || unscored ||
		len(sel.Statuses) > 0 || articleID != "" {
		sel.Mode = services.SelectFilter
	}
	return sel
}

func newLogger() (*zap.Logger, error) {
	if debugMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// withApp lädt Konfiguration und Services und bricht bei SIGINT/SIGTERM den Kontext ab.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

func printReport(report *services.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// batchCommand erzeugt einen Unterbefehl für eine Batch-Operation.
func batchCommand(use, short string, op services.Operation) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				report, err := a.Orchestrator.Run(ctx, op, buildSelector())
				if report != nil {
					if perr := printReport(report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a paused or interrupted batch run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			report, err := a.Orchestrator.Resume(ctx, args[0])
			if report != nil {
				if perr := printReport(report); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var exportCmd = &cobra.Command{
	Use:       "export <low-scores|link-health|replacements>",
	Short:     "Write a CSV report",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(services.ExportLowScores), string(services.ExportLinkHealth), string(services.ExportReplacements)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := services.ParseExportKind(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			opts := services.ExportOptions{Limit: limit}
			for _, s := range statuses {
				opts.Statuses = append(opts.Statuses, models.HealthStatus(s))
			}
			report, err := a.Orchestrator.Export(ctx, kind, opts)
			if err != nil {
				return err
			}
			return printReport(report)
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	pf.IntVar(&limit, "limit", 0, "Maximum number of items")

	for _, cmd := range []*cobra.Command{
		batchCommand("score", "Recalculate readiness scores", services.OpScores),
		batchCommand("links", "Generate and insert external links", services.OpLinks),
		batchCommand("health", "Check external links and persist their health", services.OpHealth),
		batchCommand("suggest", "Propose replacements for broken links", services.OpSuggestions),
	} {
		f := cmd.Flags()
		f.StringSliceVar(&ids, "ids", nil, "Explicit article or link IDs")
		f.StringVar(&language, "language", "", "Filter articles by language")
		f.StringVar(&funnelStage, "funnel-stage", "", "Filter articles by funnel stage (tofu, mofu, bofu)")
		f.StringVar(&topic, "topic", "", "Filter articles by topic")
		f.Float64Var(&maxScore, "max-score", 0, "Only articles scored at or below this value")
		f.BoolVar(&unscored, "unscored", false, "Only articles without a score")
		f.StringSliceVar(&statuses, "status", nil, "Link health statuses for link operations")
		f.StringVar(&articleID, "article", "", "Restrict link operations to one article")
		rootCmd.AddCommand(cmd)
	}

	exportCmd.Flags().StringSliceVar(&statuses, "status", nil, "Link health statuses for the link-health report")
	rootCmd.AddCommand(resumeCmd, exportCmd, backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
