package main

import (
	"context"

	"caselaw-explorer/config"
	"caselaw-explorer/logger"
	"caselaw-explorer/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// plain pool: the vector type cannot be registered before the extension exists
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool, cfg.LLM.Dimension); err != nil {
		log.Fatal("Failed to create schema", "error", err)
	}

	log.Info("Schema is up to date",
		"tables", []string{"topics", "cases", "case_topics", "ingestion_runs"},
		"embedding_dimension", cfg.LLM.Dimension,
	)
}
