package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/models"
	"caselaw-explorer/repository"

	"github.com/pgvector/pgvector-go"
)

// Pagination bounds
const (
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 100
	DefaultSimilarLimit = 5
	MaxSimilarLimit     = 20
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CaseFinder runs ranking queries against the case store
type CaseFinder interface {
	Search(ctx context.Context, q repository.CaseQuery) ([]models.CaseHit, error)
	GetEmbedding(ctx context.Context, id int64) (*pgvector.Vector, error)
}

// SearchService ranks cases by meaning and finds similar cases
type SearchService struct {
	embedder Embedder
	cases    CaseFinder
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// SearchServiceOption is a functional option for SearchService
type SearchServiceOption func(*SearchService)

// WithEmbedder sets the embedding provider
func WithEmbedder(e Embedder) SearchServiceOption {
	return func(s *SearchService) {
		s.embedder = e
	}
}

// WithCaseFinder sets the case store
func WithCaseFinder(f CaseFinder) SearchServiceOption {
	return func(s *SearchService) {
		s.cases = f
	}
}

// WithSearchMetrics sets the metrics sink
func WithSearchMetrics(m *metrics.Metrics) SearchServiceOption {
	return func(s *SearchService) {
		s.metrics = m
	}
}

// WithSearchLogger sets the logger
func WithSearchLogger(l *logger.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.log = l
	}
}

// NewSearchService creates a new search service
func NewSearchService(opts ...SearchServiceOption) *SearchService {
	s := &SearchService{log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchRequest represents a search or browse request.
// A blank Query selects browse mode.
type SearchRequest struct {
	Query    string
	TopicIDs []int64
	YearFrom *int
	YearTo   *int
	Limit    int
	Offset   int
}

// SearchResult represents ranked cases. Similarity is nil on every hit in browse mode.
type SearchResult struct {
	Hits []models.CaseHit
	Mode string
}

// Search embeds the query when present and returns matching cases in rank order.
// A failed embedding call fails the search; it never falls back to browse order.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if s.cases == nil {
		return nil, errors.New("case finder not set")
	}
	if err := validatePage(req.Limit, req.Offset, MaxSearchLimit); err != nil {
		return nil, err
	}
	if req.YearFrom != nil && req.YearTo != nil && *req.YearFrom > *req.YearTo {
		return nil, fmt.Errorf("%w: year_from %d is after year_to %d", ErrInvalidFilter, *req.YearFrom, *req.YearTo)
	}

	q := repository.CaseQuery{
		TopicIDs: req.TopicIDs,
		YearFrom: req.YearFrom,
		YearTo:   req.YearTo,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}

	mode := metrics.ModeBrowse
	if text := strings.TrimSpace(req.Query); text != "" {
		vec, err := s.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		q.Vector = vec
		mode = metrics.ModeSemantic
	}

	hits, err := s.cases.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search cases: %w", err)
	}

	s.metrics.SearchServed(mode)
	return &SearchResult{Hits: hits, Mode: mode}, nil
}

// SimilarRequest represents a request for cases similar to a stored case
type SimilarRequest struct {
	CaseID int64
	Limit  int
}

// Similar ranks other cases by distance to the stored embedding of CaseID.
// An unknown id or a case without an embedding yields an empty result.
func (s *SearchService) Similar(ctx context.Context, req SimilarRequest) (*SearchResult, error) {
	if s.cases == nil {
		return nil, errors.New("case finder not set")
	}
	if err := validatePage(req.Limit, 0, MaxSimilarLimit); err != nil {
		return nil, err
	}

	result := &SearchResult{Hits: []models.CaseHit{}, Mode: metrics.ModeSimilar}

	vec, err := s.cases.GetEmbedding(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to load case embedding: %w", err)
	}
	if vec == nil || len(vec.Slice()) == 0 {
		return result, nil
	}

	caseID := req.CaseID
	hits, err := s.cases.Search(ctx, repository.CaseQuery{
		Vector:    vec,
		ExcludeID: &caseID,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search similar cases: %w", err)
	}

	s.metrics.SearchServed(metrics.ModeSimilar)
	result.Hits = hits
	return result, nil
}

func (s *SearchService) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	if s.embedder == nil {
		return nil, &llm.ProviderError{Op: "embed", Err: errors.New("embedding provider not configured")}
	}

	values, err := s.embedder.Embed(ctx, text)
	if err == nil && len(values) == 0 {
		err = errors.New("provider returned an empty vector")
	}
	if err != nil {
		s.metrics.ProviderError("embed")
		s.log.Warn("Query embedding failed", "error", err)
		if llm.IsProviderError(err) {
			return nil, err
		}
		return nil, &llm.ProviderError{Op: "embed", Err: err}
	}

	vec := pgvector.NewVector(values)
	return &vec, nil
}

func validatePage(limit, offset, maxLimit int) error {
	if limit < 1 || limit > maxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilter, maxLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidFilter)
	}
	return nil
}
