package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"caselaw-explorer/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TopicRepository handles database operations for topics
type TopicRepository struct {
	db *pgxpool.Pool
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{db: db}
}

// List returns every topic ordered by name
func (r *TopicRepository) List(ctx context.Context) ([]models.Topic, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM topics ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	topics := make([]models.Topic, 0)
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, nil
}

// GetOrCreate returns the topic for name's slug, creating it when absent
func (r *TopicRepository) GetOrCreate(ctx context.Context, name string) (*models.Topic, error) {
	return getOrCreateTopic(ctx, r.db, name)
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type rowQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getOrCreateTopic resolves a topic by slug. An existing topic wins: the
// name it was first created with is kept even if name differs.
func getOrCreateTopic(ctx context.Context, q rowQuerier, name string) (*models.Topic, error) {
	slug := models.Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("topic name %q has an empty slug", name)
	}

	topic := &models.Topic{}
	selectQuery := `SELECT id, name, slug FROM topics WHERE slug = $1`

	err := q.QueryRow(ctx, selectQuery, slug).Scan(&topic.ID, &topic.Name, &topic.Slug)
	if err == nil {
		return topic, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up topic: %w", err)
	}

	// A concurrent insert of the same slug makes this a no-op; re-read afterwards.
	_, err = q.Exec(ctx, `INSERT INTO topics (name, slug) VALUES ($1, $2) ON CONFLICT DO NOTHING`, name, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	err = q.QueryRow(ctx, selectQuery, slug).Scan(&topic.ID, &topic.Name, &topic.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// name is taken by a topic with a different slug
			return nil, fmt.Errorf("topic name %q conflicts with an existing topic", name)
		}
		return nil, fmt.Errorf("failed to read topic: %w", err)
	}
	return topic, nil
}

// topicsInLockOrder drops names with an empty slug, keeps the first spelling
// of each slug and sorts by slug. Writers that create topics in this order
// acquire the slug index locks in the same sequence and cannot deadlock.
func topicsInLockOrder(names []string) []string {
	bySlug := make(map[string]string, len(names))
	slugs := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := models.Slugify(name)
		if slug == "" {
			continue
		}
		if _, ok := bySlug[slug]; ok {
			continue
		}
		bySlug[slug] = name
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	ordered := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		ordered = append(ordered, bySlug[slug])
	}
	return ordered
}
