package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/models"

	"github.com/pgvector/pgvector-go"
)

// DefaultBackfillBatch is the page size used when none is given
const DefaultBackfillBatch = 50

// CaseEmbeddingStore pages through stored cases and replaces their vectors
type CaseEmbeddingStore interface {
	ListForEmbedding(ctx context.Context, afterID int64, limit int, missingOnly bool) ([]*models.Case, error)
	SetEmbedding(ctx context.Context, id int64, embedding *pgvector.Vector) error
}

// EmbeddingBackfillService recomputes case vectors from stored summaries,
// without calling the generation model again.
type EmbeddingBackfillService struct {
	embedder Embedder
	cases    CaseEmbeddingStore
	metrics  *metrics.Metrics
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// EmbeddingBackfillOption is a functional option for EmbeddingBackfillService
type EmbeddingBackfillOption func(*EmbeddingBackfillService)

// WithBackfillEmbedder sets the embedding provider
func WithBackfillEmbedder(e Embedder) EmbeddingBackfillOption {
	return func(s *EmbeddingBackfillService) {
		s.embedder = e
	}
}

// WithBackfillStore sets the case store
func WithBackfillStore(st CaseEmbeddingStore) EmbeddingBackfillOption {
	return func(s *EmbeddingBackfillService) {
		s.cases = st
	}
}

// WithBackfillMetrics sets the metrics sink
func WithBackfillMetrics(m *metrics.Metrics) EmbeddingBackfillOption {
	return func(s *EmbeddingBackfillService) {
		s.metrics = m
	}
}

// WithBackfillLogger sets the logger
func WithBackfillLogger(l *logger.Logger) EmbeddingBackfillOption {
	return func(s *EmbeddingBackfillService) {
		s.log = l
	}
}

// NewEmbeddingBackfillService creates a new backfill service
func NewEmbeddingBackfillService(opts ...EmbeddingBackfillOption) *EmbeddingBackfillService {
	s := &EmbeddingBackfillService{
		log:   logger.NewNop(),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BackfillRequest selects which cases are re-embedded
type BackfillRequest struct {
	// All re-embeds every case instead of only those without a vector
	All       bool
	BatchSize int
	// Delay is waited between batches to stay under provider rate limits
	Delay time.Duration
}

// BackfillResult counts what a backfill did
type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Backfill walks the case table in id order and embeds each case's stored
// summary. Provider failures are counted and skipped; store failures abort.
func (s *EmbeddingBackfillService) Backfill(ctx context.Context, req BackfillRequest) (*BackfillResult, error) {
	if s.embedder == nil || s.cases == nil {
		return nil, errors.New("backfill service is missing a provider or case store")
	}

	batch := req.BatchSize
	if batch < 1 {
		batch = DefaultBackfillBatch
	}

	result := &BackfillResult{}
	var afterID int64
	for {
		cases, err := s.cases.ListForEmbedding(ctx, afterID, batch, !req.All)
		if err != nil {
			return result, err
		}
		if len(cases) == 0 {
			break
		}

		for _, c := range cases {
			afterID = c.ID
			result.Scanned++

			text := strings.TrimSpace(storedEmbeddingText(c))
			if text == "" {
				result.Skipped++
				s.log.Warn("Case has no summary text; skipping", "case_id", c.ID, "citation", c.Citation)
				continue
			}

			values, err := s.embedder.Embed(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.Failed++
				s.metrics.ProviderError("embed")
				s.log.Error("Failed to embed case", "case_id", c.ID, "citation", c.Citation, "error", err)
				continue
			}

			vec := pgvector.NewVector(values)
			if err := s.cases.SetEmbedding(ctx, c.ID, &vec); err != nil {
				return result, fmt.Errorf("failed to store embedding for %s: %w", c.Citation, err)
			}
			result.Embedded++
		}

		s.log.Info("Backfill progress", "scanned", result.Scanned, "embedded", result.Embedded, "failed", result.Failed)
		if len(cases) < batch {
			break
		}
		if req.Delay > 0 {
			if err := s.sleep(ctx, req.Delay); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// storedEmbeddingText rebuilds the ingestion-time embedding text from a stored case
func storedEmbeddingText(c *models.Case) string {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return CaseSummary{
		Facts:          deref(c.Facts),
		LegalIssues:    deref(c.LegalIssues),
		Judgment:       deref(c.Judgment),
		RatioDecidendi: deref(c.RatioDecidendi),
		KeyPrinciples:  c.KeyPrinciples,
	}.EmbeddingText()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
