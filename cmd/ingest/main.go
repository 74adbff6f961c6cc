package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"caselaw-explorer/config"
	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/repository"
	"caselaw-explorer/service"
	"caselaw-explorer/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type options struct {
	concurrency  int
	limit        int
	ensureSchema bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "ingest [source-key]",
		Short: "Summarize, tag and embed a case export, then store it",
		Long: `Reads a JSON array (or a single object) of raw cases from the configured
storage backend, runs each case through the summarization, topic and
embedding steps, and upserts it by citation.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "cases.json"
			if len(args) == 1 {
				source = args[0]
			}
			return run(cmd.Context(), source, opts)
		},
	}
	rootCmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 2, "cases processed in parallel")
	rootCmd.Flags().IntVar(&opts.limit, "limit", 0, "process only the first N cases (0 = all)")
	rootCmd.Flags().BoolVar(&opts.ensureSchema, "ensure-schema", false, "create missing tables and indexes first")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, source string, opts *options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if opts.ensureSchema {
		bootstrap, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		err = repository.EnsureSchema(ctx, bootstrap, cfg.LLM.Dimension)
		bootstrap.Close()
		if err != nil {
			return err
		}
	}

	db, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	defer provider.Close()

	body, err := store.Download(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	cases, err := service.DecodeRawCases(body)
	body.Close()
	if err != nil {
		return err
	}
	if opts.limit > 0 && opts.limit < len(cases) {
		cases = cases[:opts.limit]
	}

	ingestion := service.NewIngestionService(
		service.WithGenerator(provider),
		service.WithIngestEmbedder(provider),
		service.WithCaseWriter(repository.NewCaseRepository(db)),
		service.WithRunTracker(repository.NewIngestionRunRepository(db)),
		service.WithArchive(store),
		service.WithIngestMetrics(metrics.New()),
		service.WithIngestLogger(log.With("component", "ingestion")),
	)

	result, err := ingestion.Run(ctx, service.RunRequest{
		Source:      source,
		Cases:       cases,
		Concurrency: opts.concurrency,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s, %d/%d processed, %d failed, %d warnings\n",
		result.ID, result.Status, result.Processed, result.Total, result.Failed, result.Warnings)
	for _, e := range result.Errors {
		fmt.Printf("  %s: %s\n", e.Citation, e.Message)
	}
	if result.Failed > 0 || ctx.Err() != nil {
		return fmt.Errorf("%d of %d cases failed", result.Failed, result.Total)
	}
	return nil
}
