package repository

import (
	"context"
	"errors"
	"fmt"

	"caselaw-explorer/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a row looked up by key does not exist
var ErrNotFound = errors.New("record not found")

// CaseRepository handles database operations for cases and their topic links
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

// Search runs a filtered ranking query and returns cases with their similarity
func (r *CaseRepository) Search(ctx context.Context, q CaseQuery) ([]models.CaseHit, error) {
	query, args := buildCaseQuery(q)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	hits := make([]models.CaseHit, 0)
	for rows.Next() {
		c := &models.Case{}
		var similarity *float64
		err := rows.Scan(
			&c.ID,
			&c.CaseName,
			&c.Citation,
			&c.Year,
			&c.Bench,
			&c.Facts,
			&c.LegalIssues,
			&c.Judgment,
			&c.RatioDecidendi,
			&c.KeyPrinciples,
			&c.SourceURL,
			&c.ProcessedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
			&similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		hits = append(hits, models.CaseHit{Case: c, Similarity: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return hits, nil
}

// GetByID retrieves a case by ID. The embedding is not loaded.
func (r *CaseRepository) GetByID(ctx context.Context, id int64) (*models.Case, error) {
	c := &models.Case{}
	query := `
		SELECT id, case_name, citation, year, bench, full_text,
			facts, legal_issues, judgment, ratio_decidendi, key_principles,
			source_url, processed_at, created_at, updated_at
		FROM cases
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.CaseName,
		&c.Citation,
		&c.Year,
		&c.Bench,
		&c.FullText,
		&c.Facts,
		&c.LegalIssues,
		&c.Judgment,
		&c.RatioDecidendi,
		&c.KeyPrinciples,
		&c.SourceURL,
		&c.ProcessedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// GetEmbedding returns the stored vector of a case.
// It returns ErrNotFound for an unknown id and (nil, nil) when the case has no embedding.
func (r *CaseRepository) GetEmbedding(ctx context.Context, id int64) (*pgvector.Vector, error) {
	var embedding *pgvector.Vector
	err := r.db.QueryRow(ctx, `SELECT embedding FROM cases WHERE id = $1`, id).Scan(&embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get case embedding: %w", err)
	}
	return embedding, nil
}

// TopicsForCase lists the topics linked to a case, ordered by name
func (r *CaseRepository) TopicsForCase(ctx context.Context, caseID int64) ([]models.TopicLink, error) {
	query := `
		SELECT t.id, t.name, t.slug, ct.source_type
		FROM case_topics ct
		JOIN topics t ON t.id = ct.topic_id
		WHERE ct.case_id = $1
		ORDER BY t.name ASC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query case topics: %w", err)
	}
	defer rows.Close()

	links := make([]models.TopicLink, 0)
	for rows.Next() {
		var link models.TopicLink
		if err := rows.Scan(&link.ID, &link.Name, &link.Slug, &link.SourceType); err != nil {
			return nil, fmt.Errorf("failed to scan case topic: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case topics: %w", err)
	}

	return links, nil
}

// UpsertWithTopics inserts or updates a case by citation and replaces all of its
// topic links with the given names, in one transaction. Names that slugify to
// nothing are skipped. It returns the topics the case ends up linked to, in
// slug order.
func (r *CaseRepository) UpsertWithTopics(ctx context.Context, c *models.Case, topicNames []string) ([]models.Topic, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO cases (
			case_name, citation, year, bench, full_text,
			facts, legal_issues, judgment, ratio_decidendi, key_principles,
			embedding, source_url, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::vector, $12, $13)
		ON CONFLICT (citation) DO UPDATE SET
			case_name = EXCLUDED.case_name,
			year = EXCLUDED.year,
			bench = EXCLUDED.bench,
			full_text = EXCLUDED.full_text,
			facts = EXCLUDED.facts,
			legal_issues = EXCLUDED.legal_issues,
			judgment = EXCLUDED.judgment,
			ratio_decidendi = EXCLUDED.ratio_decidendi,
			key_principles = EXCLUDED.key_principles,
			embedding = EXCLUDED.embedding,
			source_url = EXCLUDED.source_url,
			processed_at = EXCLUDED.processed_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(
		ctx, query,
		c.CaseName,
		c.Citation,
		c.Year,
		c.Bench,
		c.FullText,
		c.Facts,
		c.LegalIssues,
		c.Judgment,
		c.RatioDecidendi,
		c.KeyPrinciples,
		c.Embedding,
		c.SourceURL,
		c.ProcessedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert case: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM case_topics WHERE case_id = $1`, c.ID); err != nil {
		return nil, fmt.Errorf("failed to clear case topics: %w", err)
	}

	names := topicsInLockOrder(topicNames)
	topics := make([]models.Topic, 0, len(names))
	seen := make(map[int64]bool, len(names))
	for _, name := range names {
		topic, err := getOrCreateTopic(ctx, tx, name)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO case_topics (case_id, topic_id, source_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (case_id, topic_id) DO NOTHING`,
			c.ID, topic.ID, models.TopicSourceAISuggested)
		if err != nil {
			return nil, fmt.Errorf("failed to link topic %q: %w", name, err)
		}

		if !seen[topic.ID] {
			seen[topic.ID] = true
			topics = append(topics, *topic)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return topics, nil
}

// ListForEmbedding pages through cases in id order, starting after afterID.
// With missingOnly set, only cases without an embedding are returned.
func (r *CaseRepository) ListForEmbedding(ctx context.Context, afterID int64, limit int, missingOnly bool) ([]*models.Case, error) {
	query := `
		SELECT id, case_name, citation, facts, legal_issues, judgment,
			ratio_decidendi, key_principles
		FROM cases
		WHERE id > $1`
	if missingOnly {
		query += ` AND embedding IS NULL`
	}
	query += ` ORDER BY id ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases for embedding: %w", err)
	}
	defer rows.Close()

	cases := make([]*models.Case, 0, limit)
	for rows.Next() {
		c := &models.Case{}
		err := rows.Scan(
			&c.ID,
			&c.CaseName,
			&c.Citation,
			&c.Facts,
			&c.LegalIssues,
			&c.Judgment,
			&c.RatioDecidendi,
			&c.KeyPrinciples,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return cases, nil
}

// SetEmbedding replaces the stored vector of a case
func (r *CaseRepository) SetEmbedding(ctx context.Context, id int64, embedding *pgvector.Vector) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE cases SET embedding = $2::vector, updated_at = NOW()
		WHERE id = $1`, id, embedding)
	if err != nil {
		return fmt.Errorf("failed to update case embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
