package repository

import (
	"context"
	"errors"
	"fmt"

	"caselaw-explorer/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestionRunRepository handles database operations for ingestion runs
type IngestionRunRepository struct {
	db *pgxpool.Pool
}

// NewIngestionRunRepository creates a new ingestion run repository
func NewIngestionRunRepository(db *pgxpool.Pool) *IngestionRunRepository {
	return &IngestionRunRepository{db: db}
}

// Create creates a new ingestion run
func (r *IngestionRunRepository) Create(ctx context.Context, run *models.IngestionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}

	query := `
		INSERT INTO ingestion_runs (id, source, status, total, errors)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		run.ID,
		run.Source,
		run.Status,
		run.Total,
		run.Errors,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}

	return nil
}

// GetByID retrieves an ingestion run by ID
func (r *IngestionRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	run := &models.IngestionRun{}
	query := `
		SELECT id, source, status, total, processed, failed, warnings, errors,
			error_message, created_at, updated_at, completed_at
		FROM ingestion_runs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.Source,
		&run.Status,
		&run.Total,
		&run.Processed,
		&run.Failed,
		&run.Warnings,
		&run.Errors,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingestion run: %w", err)
	}

	return run, nil
}

// UpdateStatus sets the status of a run, stamping completed_at on terminal states
func (r *IngestionRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.IngestionRunStatus, errorMessage *string) error {
	query := `
		UPDATE ingestion_runs
		SET status = $2,
			error_message = $3,
			updated_at = NOW(),
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update ingestion run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCase adds one processed case to the run counters. runErr is nil for a stored case.
// Counters are incremented in SQL so concurrent workers never lose updates.
func (r *IngestionRunRepository) RecordCase(ctx context.Context, id uuid.UUID, warnings int, runErr *models.RunError) error {
	failed := 0
	appended := models.RunErrors{}
	if runErr != nil {
		failed = 1
		appended = append(appended, *runErr)
	}

	query := `
		UPDATE ingestion_runs
		SET processed = processed + 1,
			failed = failed + $2,
			warnings = warnings + $3,
			errors = errors || $4::jsonb,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, failed, warnings, appended)
	if err != nil {
		return fmt.Errorf("failed to record ingested case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
