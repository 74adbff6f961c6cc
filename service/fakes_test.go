package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"caselaw-explorer/models"
	"caselaw-explorer/repository"
	"caselaw-explorer/storage"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  []string
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCaseFinder struct {
	queries    []repository.CaseQuery
	hits       []models.CaseHit
	embeddings map[int64]*pgvector.Vector
	searchErr  error
}

func (f *fakeCaseFinder) Search(ctx context.Context, q repository.CaseQuery) ([]models.CaseHit, error) {
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeCaseFinder) GetEmbedding(ctx context.Context, id int64) (*pgvector.Vector, error) {
	vec, ok := f.embeddings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return vec, nil
}

// fakeGenerator answers prompts by matching a marker in the prompt text
type fakeGenerator struct {
	mu       sync.Mutex
	summary  string
	topics   string
	err      error
	failWhen string
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.failWhen != "" && strings.Contains(prompt, f.failWhen) {
		return "", errors.New("model crashed")
	}
	if strings.HasPrefix(prompt, "Suggest") {
		return f.topics, nil
	}
	return f.summary, nil
}

type fakeCaseWriter struct {
	mu     sync.Mutex
	stored map[string]*models.Case
	topics map[string][]string
	nextID int64
	err    error
}

func newFakeCaseWriter() *fakeCaseWriter {
	return &fakeCaseWriter{stored: map[string]*models.Case{}, topics: map[string][]string{}}
}

func (f *fakeCaseWriter) UpsertWithTopics(ctx context.Context, c *models.Case, topicNames []string) ([]models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if existing, ok := f.stored[c.Citation]; ok {
		c.ID = existing.ID
	} else {
		f.nextID++
		c.ID = f.nextID
	}
	f.stored[c.Citation] = c
	f.topics[c.Citation] = topicNames

	topics := make([]models.Topic, 0, len(topicNames))
	for i, name := range topicNames {
		topics = append(topics, models.Topic{ID: int64(i + 1), Name: name, Slug: models.Slugify(name)})
	}
	return topics, nil
}

type fakeRunTracker struct {
	mu       sync.Mutex
	created  *models.IngestionRun
	recorded int
	failures []models.RunError
	status   models.IngestionRunStatus
	message  *string
}

func (f *fakeRunTracker) Create(ctx context.Context, run *models.IngestionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *run
	f.created = &copied
	return nil
}

func (f *fakeRunTracker) UpdateStatus(ctx context.Context, id uuid.UUID, status models.IngestionRunStatus, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.message = errorMessage
	return nil
}

func (f *fakeRunTracker) RecordCase(ctx context.Context, id uuid.UUID, warnings int, runErr *models.RunError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded++
	if runErr != nil {
		f.failures = append(f.failures, *runErr)
	}
	return nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]string{}}
}

func (m *memoryStorage) Upload(ctx context.Context, key string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(b)
	return key, nil
}

func (m *memoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
