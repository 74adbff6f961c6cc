package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/models"
	"caselaw-explorer/storage"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidCase is returned for raw case records missing required fields
var ErrInvalidCase = errors.New("invalid case record")

// Generator produces completions from a language model
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// CaseWriter stores a case and replaces its topic links atomically
type CaseWriter interface {
	UpsertWithTopics(ctx context.Context, c *models.Case, topicNames []string) ([]models.Topic, error)
}

// RunTracker persists ingestion run progress
type RunTracker interface {
	Create(ctx context.Context, run *models.IngestionRun) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.IngestionRunStatus, errorMessage *string) error
	RecordCase(ctx context.Context, id uuid.UUID, warnings int, runErr *models.RunError) error
}

// RawCase is one record of a case export
type RawCase struct {
	CaseName  string      `json:"case_name"`
	Citation  string      `json:"citation"`
	Year      json.Number `json:"year"`
	Bench     string      `json:"bench"`
	FullText  string      `json:"full_text"`
	SourceURL string      `json:"source_url"`
}

// DecodeRawCases reads either a JSON array of cases or a single case object
func DecodeRawCases(r io.Reader) ([]RawCase, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read case export: %w", err)
	}

	dec := json.NewDecoder(br)
	switch first {
	case '[':
		var cases []RawCase
		if err := dec.Decode(&cases); err != nil {
			return nil, fmt.Errorf("failed to decode case list: %w", err)
		}
		return cases, nil
	case '{':
		var c RawCase
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode case: %w", err)
		}
		return []RawCase{c}, nil
	default:
		return nil, fmt.Errorf("case export must be a JSON array or object, found %q", first)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != ' ' && b != '\t' && b != '\r' && b != '\n' {
			return b, br.UnreadByte()
		}
	}
}

// IngestionService summarizes, tags, embeds and stores cases
type IngestionService struct {
	generator Generator
	embedder  Embedder
	cases     CaseWriter
	runs      RunTracker
	archive   storage.Storage
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// IngestionServiceOption is a functional option for IngestionService
type IngestionServiceOption func(*IngestionService)

// WithGenerator sets the completion provider
func WithGenerator(g Generator) IngestionServiceOption {
	return func(s *IngestionService) {
		s.generator = g
	}
}

// WithIngestEmbedder sets the embedding provider
func WithIngestEmbedder(e Embedder) IngestionServiceOption {
	return func(s *IngestionService) {
		s.embedder = e
	}
}

// WithCaseWriter sets the case store
func WithCaseWriter(w CaseWriter) IngestionServiceOption {
	return func(s *IngestionService) {
		s.cases = w
	}
}

// WithRunTracker sets where run progress is persisted
func WithRunTracker(t RunTracker) IngestionServiceOption {
	return func(s *IngestionService) {
		s.runs = t
	}
}

// WithArchive sets the storage that receives unparseable model output
func WithArchive(st storage.Storage) IngestionServiceOption {
	return func(s *IngestionService) {
		s.archive = st
	}
}

// WithIngestMetrics sets the metrics sink
func WithIngestMetrics(m *metrics.Metrics) IngestionServiceOption {
	return func(s *IngestionService) {
		s.metrics = m
	}
}

// WithIngestLogger sets the logger
func WithIngestLogger(l *logger.Logger) IngestionServiceOption {
	return func(s *IngestionService) {
		s.log = l
	}
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(opts ...IngestionServiceOption) *IngestionService {
	s := &IngestionService{
		log: logger.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessCaseResult represents one stored case
type ProcessCaseResult struct {
	Case   *models.Case
	Topics []models.Topic

	// Warnings lists degraded steps: unparseable output or a missing embedding
	Warnings []string
}

// ProcessCase runs the full pipeline for one raw case and stores the result.
// Unparseable model output degrades to empty fields and is reported as a
// warning; provider and storage failures fail the case.
func (s *IngestionService) ProcessCase(ctx context.Context, raw RawCase) (*ProcessCaseResult, error) {
	if s.generator == nil || s.embedder == nil || s.cases == nil {
		return nil, errors.New("ingestion service is missing a provider or case store")
	}

	citation := strings.TrimSpace(raw.Citation)
	caseName := strings.TrimSpace(raw.CaseName)
	if citation == "" {
		return nil, fmt.Errorf("%w: citation is required", ErrInvalidCase)
	}
	if caseName == "" {
		return nil, fmt.Errorf("%w: case_name is required for %s", ErrInvalidCase, citation)
	}
	year, err := parseYear(raw.Year)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCase, citation, err)
	}

	log := s.log.With("citation", citation)
	result := &ProcessCaseResult{}

	fullText := strings.TrimSpace(raw.FullText)
	excerpt := ""
	if fullText != "" {
		excerpt = models.Truncate(fullText, fullTextExcerptLength)
	}

	summaryRaw, err := s.generator.Generate(ctx, buildSummaryPrompt(caseName, citation, year, excerpt), summarySystemPrompt)
	if err != nil {
		s.metrics.ProviderError("generate")
		return nil, fmt.Errorf("failed to summarize %s: %w", citation, err)
	}
	summary, outcome := ParseSummary(summaryRaw)
	s.recordParse(ctx, log, result, citation, "summary", summaryRaw, outcome)

	summaryExcerpt := models.Truncate(
		strings.Join([]string{summary.Facts, summary.LegalIssues, summary.RatioDecidendi}, " "),
		summaryExcerptLength,
	)
	topicsRaw, err := s.generator.Generate(ctx, buildTopicsPrompt(caseName, summaryExcerpt), summarySystemPrompt)
	if err != nil {
		s.metrics.ProviderError("generate")
		return nil, fmt.Errorf("failed to suggest topics for %s: %w", citation, err)
	}
	topicNames, outcome := ParseTopicList(topicsRaw)
	s.recordParse(ctx, log, result, citation, "topics", topicsRaw, outcome)

	var embedding *pgvector.Vector
	if text := strings.TrimSpace(summary.EmbeddingText()); text != "" {
		values, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.metrics.ProviderError("embed")
			return nil, fmt.Errorf("failed to embed %s: %w", citation, err)
		}
		vec := pgvector.NewVector(values)
		embedding = &vec
	} else {
		log.Warn("No summary text to embed; storing case without embedding")
		result.Warnings = append(result.Warnings, "embedding: no summary text")
	}

	processedAt := s.now().UTC()
	c := &models.Case{
		CaseName:       caseName,
		Citation:       citation,
		Year:           year,
		Bench:          optional(raw.Bench),
		FullText:       optional(fullText),
		Facts:          optional(summary.Facts),
		LegalIssues:    optional(summary.LegalIssues),
		Judgment:       optional(summary.Judgment),
		RatioDecidendi: optional(summary.RatioDecidendi),
		KeyPrinciples:  models.KeyPrinciples(summary.KeyPrinciples),
		SourceURL:      optional(raw.SourceURL),
		Embedding:      embedding,
		ProcessedAt:    &processedAt,
	}
	if c.KeyPrinciples == nil {
		c.KeyPrinciples = models.KeyPrinciples{}
	}

	topics, err := s.cases.UpsertWithTopics(ctx, c, topicNames)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", citation, err)
	}

	result.Case = c
	result.Topics = topics
	log.Info("Case ingested", "case_id", c.ID, "topics", len(topics), "warnings", len(result.Warnings))
	return result, nil
}

// recordParse makes a degraded parse observable and keeps the raw output for review
func (s *IngestionService) recordParse(ctx context.Context, log *logger.Logger, result *ProcessCaseResult, citation, kind, raw string, outcome ParseOutcome) {
	key := storage.ObjectKey("rejected", models.Slugify(citation), kind+".txt")

	if outcome.Parsed() {
		if outcome == ParseExtracted {
			log.Debug("Recovered JSON from surrounding text", "kind", kind)
		}
		if s.archive != nil {
			if err := s.archive.Delete(ctx, key); err != nil {
				log.Warn("Failed to clear archived model output", "key", key, "error", err)
			}
		}
		return
	}

	result.Warnings = append(result.Warnings, kind+": unparseable model output")
	log.Warn("Model output could not be parsed; continuing with empty values", "kind", kind, "length", len(raw))

	if s.archive == nil {
		return
	}
	if _, err := s.archive.Upload(ctx, key, strings.NewReader(raw)); err != nil {
		log.Warn("Failed to archive model output", "key", key, "error", err)
	}
}

// RunRequest represents a batch of raw cases to ingest
type RunRequest struct {
	Source      string
	Cases       []RawCase
	Concurrency int
}

// Run ingests a batch with bounded concurrency. A failing case is recorded
// on the run and never stops the others; cancelling ctx stops scheduling new
// cases and marks the run failed.
func (s *IngestionService) Run(ctx context.Context, req RunRequest) (*models.IngestionRun, error) {
	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	run := &models.IngestionRun{
		ID:     uuid.New(),
		Source: req.Source,
		Status: models.RunStatusInProgress,
		Total:  len(req.Cases),
		Errors: models.RunErrors{},
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create ingestion run: %w", err)
		}
	}
	log := s.log.With("run_id", run.ID.String(), "source", req.Source)
	log.Info("Ingestion started", "total", run.Total, "concurrency", concurrency)

	// progress writes must land even after ctx is cancelled
	bookkeeping := context.WithoutCancel(ctx)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(concurrency)

	for _, raw := range req.Cases {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.ProcessCase(ctx, raw)

			var runErr *models.RunError
			warnings := 0
			outcome := "stored"
			if err != nil {
				runErr = &models.RunError{Citation: raw.Citation, Message: err.Error()}
				outcome = "failed"
				log.Error("Case ingestion failed", "citation", raw.Citation, "error", err)
			} else if len(res.Warnings) > 0 {
				warnings = len(res.Warnings)
				outcome = "partial"
			}
			s.metrics.CaseIngested(outcome)

			mu.Lock()
			run.Processed++
			run.Warnings += warnings
			if runErr != nil {
				run.Failed++
				run.Errors = append(run.Errors, *runErr)
			}
			mu.Unlock()

			if s.runs != nil {
				if err := s.runs.RecordCase(bookkeeping, run.ID, warnings, runErr); err != nil {
					log.Warn("Failed to record case progress", "citation", raw.Citation, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var errorMessage *string
	run.Status = models.RunStatusCompleted
	if err := ctx.Err(); err != nil {
		msg := fmt.Sprintf("interrupted after %d of %d cases: %v", run.Processed, run.Total, err)
		errorMessage = &msg
		run.Status = models.RunStatusFailed
		run.ErrorMessage = errorMessage
	}
	completedAt := s.now().UTC()
	run.CompletedAt = &completedAt

	if s.runs != nil {
		if err := s.runs.UpdateStatus(bookkeeping, run.ID, run.Status, errorMessage); err != nil {
			log.Warn("Failed to finalize ingestion run", "error", err)
		}
	}

	log.Info("Ingestion finished",
		"status", run.Status,
		"processed", run.Processed,
		"failed", run.Failed,
		"warnings", run.Warnings,
	)
	return run, nil
}

func parseYear(n json.Number) (int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return year, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
