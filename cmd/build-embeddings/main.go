package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caselaw-explorer/config"
	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/repository"
	"caselaw-explorer/service"

	"github.com/spf13/cobra"
)

func main() {
	var req service.BackfillRequest

	rootCmd := &cobra.Command{
		Use:   "build-embeddings",
		Short: "Embed stored cases from their summaries",
		Long: `Computes vectors for cases that have none, or for every case with --all
(for example after switching EMBEDDING_MODEL). Summaries are not regenerated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), req)
		},
	}
	rootCmd.Flags().BoolVar(&req.All, "all", false, "re-embed every case, not only those without a vector")
	rootCmd.Flags().IntVar(&req.BatchSize, "batch", service.DefaultBackfillBatch, "cases read per page")
	rootCmd.Flags().DurationVar(&req.Delay, "delay", 2*time.Second, "pause between pages")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "build-embeddings:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, req service.BackfillRequest) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	defer provider.Close()

	backfill := service.NewEmbeddingBackfillService(
		service.WithBackfillEmbedder(provider),
		service.WithBackfillStore(repository.NewCaseRepository(db)),
		service.WithBackfillLogger(log.With("component", "backfill")),
	)

	result, err := backfill.Backfill(ctx, req)
	if result != nil {
		log.Info("Embedding build finished",
			"scanned", result.Scanned,
			"embedded", result.Embedded,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d cases could not be embedded", result.Failed)
	}
	return nil
}
