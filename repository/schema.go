package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs statements that return no rows. *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SchemaStatements returns the idempotent DDL for the case store.
// dimension fixes the size of the embedding column.
func SchemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS topics (
			id SERIAL PRIMARY KEY,
			name VARCHAR(200) NOT NULL UNIQUE,
			slug VARCHAR(200) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cases (
			id SERIAL PRIMARY KEY,
			case_name TEXT NOT NULL,
			citation VARCHAR(255) NOT NULL UNIQUE,
			year INTEGER NOT NULL,
			bench TEXT,
			full_text TEXT,
			facts TEXT,
			legal_issues TEXT,
			judgment TEXT,
			ratio_decidendi TEXT,
			key_principles JSONB NOT NULL DEFAULT '[]'::jsonb,
			embedding vector(%d),
			source_url TEXT,
			processed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),

		`CREATE INDEX IF NOT EXISTS idx_cases_year ON cases (year)`,

		// HNSW over cosine distance, matching the <=> operator used for ranking
		`CREATE INDEX IF NOT EXISTS idx_cases_embedding_hnsw ON cases
			USING hnsw (embedding vector_cosine_ops)`,

		`CREATE TABLE IF NOT EXISTS case_topics (
			id SERIAL PRIMARY KEY,
			case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			source_type VARCHAR(20) NOT NULL DEFAULT 'ai_suggested'
				CHECK (source_type IN ('manual', 'ai_suggested')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_case_topic UNIQUE (case_id, topic_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_case_topics_case_id ON case_topics (case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_case_topics_topic_id ON case_topics (topic_id)`,

		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			status VARCHAR(20) NOT NULL
				CHECK (status IN ('pending', 'in_progress', 'completed', 'failed')),
			total INTEGER NOT NULL DEFAULT 0,
			processed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			warnings INTEGER NOT NULL DEFAULT 0,
			errors JSONB NOT NULL DEFAULT '[]'::jsonb,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
	}
}

// EnsureSchema creates the extension, tables and indexes if they are missing
func EnsureSchema(ctx context.Context, db Execer, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}
	for _, stmt := range SchemaStatements(dimension) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
