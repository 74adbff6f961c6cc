package service

import (
	"context"
	"errors"
	"fmt"

	"caselaw-explorer/models"
	"caselaw-explorer/repository"

	"github.com/google/uuid"
)

// CaseReader loads single cases and their topic links
type CaseReader interface {
	GetByID(ctx context.Context, id int64) (*models.Case, error)
	TopicsForCase(ctx context.Context, caseID int64) ([]models.TopicLink, error)
}

// TopicLister lists topics
type TopicLister interface {
	List(ctx context.Context) ([]models.Topic, error)
}

// RunReader loads ingestion runs
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error)
}

// CatalogService serves case details, topics and ingestion run status
type CatalogService struct {
	cases  CaseReader
	topics TopicLister
	runs   RunReader
}

// CatalogServiceOption is a functional option for CatalogService
type CatalogServiceOption func(*CatalogService)

// WithCaseReader sets the case repository
func WithCaseReader(r CaseReader) CatalogServiceOption {
	return func(s *CatalogService) {
		s.cases = r
	}
}

// WithTopicLister sets the topic repository
func WithTopicLister(r TopicLister) CatalogServiceOption {
	return func(s *CatalogService) {
		s.topics = r
	}
}

// WithRunReader sets the ingestion run repository
func WithRunReader(r RunReader) CatalogServiceOption {
	return func(s *CatalogService) {
		s.runs = r
	}
}

// NewCatalogService creates a new catalog service
func NewCatalogService(opts ...CatalogServiceOption) *CatalogService {
	s := &CatalogService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCaseResult represents a case with the topics linked to it
type GetCaseResult struct {
	Case   *models.Case
	Topics []models.TopicLink
}

// GetCase retrieves a case and its topics
func (s *CatalogService) GetCase(ctx context.Context, id int64) (*GetCaseResult, error) {
	if s.cases == nil {
		return nil, errors.New("case repository not set")
	}

	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	topics, err := s.cases.TopicsForCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics for case %d: %w", id, err)
	}

	return &GetCaseResult{Case: c, Topics: topics}, nil
}

// ListTopics returns all topics ordered by name
func (s *CatalogService) ListTopics(ctx context.Context) ([]models.Topic, error) {
	if s.topics == nil {
		return nil, errors.New("topic repository not set")
	}
	return s.topics.List(ctx)
}

// GetIngestionRun retrieves an ingestion run by ID
func (s *CatalogService) GetIngestionRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	if s.runs == nil {
		return nil, errors.New("ingestion run repository not set")
	}

	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIngestionRunNotFound
		}
		return nil, err
	}
	return run, nil
}
