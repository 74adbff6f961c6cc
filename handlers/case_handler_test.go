package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/middleware"
	"caselaw-explorer/models"
	"caselaw-explorer/repository"
	"caselaw-explorer/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

// memoryStore serves a fixed set of cases; Search honours semantic vs browse mode only
type memoryStore struct {
	cases      []*models.Case
	similarity map[int64]float64
	topics     []models.Topic
	links      map[int64][]models.TopicLink
	runs       map[uuid.UUID]*models.IngestionRun
	queries    []repository.CaseQuery
	err        error
}

func (m *memoryStore) Search(ctx context.Context, q repository.CaseQuery) ([]models.CaseHit, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	hits := make([]models.CaseHit, 0)
	for _, c := range m.cases {
		if q.ExcludeID != nil && c.ID == *q.ExcludeID {
			continue
		}
		hit := models.CaseHit{Case: c}
		if q.Vector != nil {
			if !c.HasEmbedding() {
				continue
			}
			s := m.similarity[c.ID]
			hit.Similarity = &s
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (m *memoryStore) GetEmbedding(ctx context.Context, id int64) (*pgvector.Vector, error) {
	for _, c := range m.cases {
		if c.ID == id {
			return c.Embedding, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetByID(ctx context.Context, id int64) (*models.Case, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.cases {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) TopicsForCase(ctx context.Context, caseID int64) ([]models.TopicLink, error) {
	links := m.links[caseID]
	if links == nil {
		links = []models.TopicLink{}
	}
	return links, nil
}

func (m *memoryStore) List(ctx context.Context) ([]models.Topic, error) {
	return m.topics, nil
}

type runStore struct{ runs map[uuid.UUID]*models.IngestionRun }

func (r runStore) GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return run, nil
}

func strPtr(s string) *string { return &s }

func vec(v ...float32) *pgvector.Vector {
	out := pgvector.NewVector(v)
	return &out
}

func fixtureStore() *memoryStore {
	return &memoryStore{
		cases: []*models.Case{
			{ID: 1, CaseName: "Puttaswamy", Citation: "(2017) 10 SCC 1", Year: 2017,
				RatioDecidendi: strPtr("Privacy is a fundamental right."), Embedding: vec(1, 0, 0),
				FullText: strPtr("very long text"), KeyPrinciples: models.KeyPrinciples{"Privacy"}},
			{ID: 2, CaseName: "Maneka Gandhi", Citation: "AIR 1978 SC 597", Year: 1978,
				Facts: strPtr("Passport impounded."), Embedding: vec(0.8, 0.6, 0)},
			{ID: 3, CaseName: "Unprocessed", Citation: "AIR 2020 SC 1", Year: 2020},
		},
		similarity: map[int64]float64{1: 0.95, 2: 0.71},
		topics:     []models.Topic{{ID: 1, Name: "Equality", Slug: "equality"}, {ID: 2, Name: "Right to Privacy", Slug: "right-to-privacy"}},
		links: map[int64][]models.TopicLink{1: {
			{Topic: models.Topic{ID: 2, Name: "Right to Privacy", Slug: "right-to-privacy"}, SourceType: models.TopicSourceAISuggested},
		}},
	}
}

type testEnv struct {
	router   *gin.Engine
	store    *memoryStore
	embedder *stubEmbedder
}

func newTestEnv(t *testing.T, store *memoryStore, embedder *stubEmbedder, auth middleware.APIKeyConfig) *testEnv {
	t.Helper()
	return newTestEnvWith(t, store, embedder, func(cfg *RouterConfig) { cfg.Auth = auth })
}

func newTestEnvWith(t *testing.T, store *memoryStore, embedder *stubEmbedder, configure func(*RouterConfig)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	m := metrics.New()

	search := service.NewSearchService(
		service.WithEmbedder(embedder),
		service.WithCaseFinder(store),
		service.WithSearchMetrics(m),
		service.WithSearchLogger(log),
	)
	runID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	catalog := service.NewCatalogService(
		service.WithCaseReader(store),
		service.WithTopicLister(store),
		service.WithRunReader(runStore{runs: map[uuid.UUID]*models.IngestionRun{
			runID: {ID: runID, Source: "cases.json", Status: models.RunStatusCompleted, Total: 3, Processed: 3},
		}}),
	)

	cfg := RouterConfig{
		Cases:     NewCaseHandler(search, catalog, log),
		Ingestion: NewIngestionHandler(catalog, log),
		Metrics:   m,
		Log:       log,
	}
	configure(&cfg)
	router := NewRouter(cfg)
	return &testEnv{router: router, store: store, embedder: embedder}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) get(t *testing.T, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestSearch_Semantic(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/search?q=privacy&topic_ids=2,&year_from=1950&year_to=2020&limit=10&offset=0")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)

	var hits []SearchHit
	require.NoError(t, json.Unmarshal(body.Data, &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].Case.ID)
	require.NotNil(t, hits[0].Similarity)
	assert.Equal(t, 0.95, *hits[0].Similarity)
	assert.Equal(t, "Privacy is a fundamental right.", *hits[0].Case.Snippet)
	assert.Equal(t, "Passport impounded.", *hits[1].Case.Snippet)

	assert.Equal(t, 1, env.embedder.calls)
	q := env.store.queries[0]
	assert.Equal(t, []int64{2}, q.TopicIDs)
	assert.Equal(t, 1950, *q.YearFrom)
	assert.Equal(t, 2020, *q.YearTo)
	assert.Equal(t, 10, q.Limit)
}

func TestSearch_BlankQueryBrowses(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/search?q=%20%20")
	require.Equal(t, http.StatusOK, code)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &raw))
	require.Len(t, raw, 3)
	for _, hit := range raw {
		v, present := hit["similarity"]
		assert.True(t, present)
		assert.Nil(t, v)
	}
	assert.Equal(t, 0, env.embedder.calls)
	assert.Equal(t, service.DefaultSearchLimit, env.store.queries[0].Limit)
}

func TestSearch_BadParameters(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	tests := []struct {
		path string
		code string
	}{
		{"/api/search?q=x&topic_ids=1,abc", "INVALID_PARAMETER"},
		{"/api/search?year_from=soon", "INVALID_PARAMETER"},
		{"/api/search?limit=0", "INVALID_FILTER"},
		{"/api/search?limit=101", "INVALID_FILTER"},
		{"/api/search?offset=-1", "INVALID_FILTER"},
		{"/api/cases?limit=ten", "INVALID_PARAMETER"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := env.get(t, tt.path)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
	assert.Equal(t, 0, env.embedder.calls)
}

func TestSearch_ProviderFailureIsBadGateway(t *testing.T) {
	embedder := &stubEmbedder{err: &llm.ProviderError{Op: "embed", StatusCode: 500, Err: errors.New("model not loaded")}}
	env := newTestEnv(t, fixtureStore(), embedder, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/search?q=privacy")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "EMBEDDING_PROVIDER_ERROR", body.Error.Code)
	assert.Empty(t, env.store.queries)
}

func TestSearch_StoreFailureIsInternal(t *testing.T) {
	store := fixtureStore()
	store.err = errors.New("connection reset")
	env := newTestEnv(t, store, &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/cases")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection reset")
}

func TestListCases_BareSummaries(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/cases?q=ignored&year_from=2000")
	require.Equal(t, http.StatusOK, code)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &raw))
	require.Len(t, raw, 3)
	_, hasSimilarity := raw[0]["similarity"]
	assert.False(t, hasSimilarity)
	assert.Equal(t, 0, env.embedder.calls)
	assert.Nil(t, env.store.queries[0].Vector)
}

func TestGetCase(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/cases/1")
	require.Equal(t, http.StatusOK, code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &raw))
	assert.Equal(t, "Puttaswamy", raw["case_name"])
	assert.Equal(t, []interface{}{"Privacy"}, raw["key_principles"])
	assert.NotContains(t, raw, "full_text")
	assert.NotContains(t, raw, "embedding")
	topics := raw["topics"].([]interface{})
	require.Len(t, topics, 1)
	assert.Equal(t, "right-to-privacy", topics[0].(map[string]interface{})["slug"])

	code, body = env.get(t, "/api/cases/999")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	code, body = env.get(t, "/api/cases/abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CASE_ID", body.Error.Code)
}

func TestSimilarCases(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/cases/1/similar?limit=3")
	require.Equal(t, http.StatusOK, code)

	var hits []SearchHit
	require.NoError(t, json.Unmarshal(body.Data, &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Case.ID)
	require.NotNil(t, hits[0].Similarity)
	assert.Equal(t, 0, env.embedder.calls)

	for _, path := range []string{"/api/cases/3/similar", "/api/cases/404/similar"} {
		code, body = env.get(t, path)
		require.Equal(t, http.StatusOK, code, path)
		assert.JSONEq(t, `[]`, string(body.Data))
	}

	code, _ = env.get(t, "/api/cases/1/similar?limit=50")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListTopics(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/topics")
	require.Equal(t, http.StatusOK, code)

	var topics []models.Topic
	require.NoError(t, json.Unmarshal(body.Data, &topics))
	assert.Equal(t, []string{"Equality", "Right to Privacy"}, []string{topics[0].Name, topics[1].Name})
}

func TestGetIngestionRun(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{})

	code, body := env.get(t, "/api/ingestion-runs/11111111-2222-3333-4444-555555555555")
	require.Equal(t, http.StatusOK, code)
	var run models.IngestionRun
	require.NoError(t, json.Unmarshal(body.Data, &run))
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	code, _ = env.get(t, "/api/ingestion-runs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.get(t, "/api/ingestion-runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_APIKeyGuardsAPIOnly(t *testing.T) {
	env := newTestEnv(t, fixtureStore(), &stubEmbedder{}, middleware.APIKeyConfig{Key: "k"})

	code, body := env.get(t, "/api/topics")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	code, _ = env.get(t, "/api/topics?api_key=k")
	assert.Equal(t, http.StatusOK, code)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("down") }

func TestHealth_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(failingPinger{}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// throttledCount sends n requests from one TCP peer, each with its own
// X-Forwarded-For, and counts the 429 responses.
func throttledCount(router *gin.Engine, n int) int {
	throttled := 0
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	return throttled
}

func TestRouter_RateLimitIgnoresForwardedForByDefault(t *testing.T) {
	env := newTestEnvWith(t, fixtureStore(), &stubEmbedder{}, func(cfg *RouterConfig) {
		cfg.Limiter = middleware.NewIPRateLimiter(0.001, 1)
	})

	assert.Equal(t, 19, throttledCount(env.router, 20))
}

func TestRouter_RateLimitHonorsTrustedProxy(t *testing.T) {
	env := newTestEnvWith(t, fixtureStore(), &stubEmbedder{}, func(cfg *RouterConfig) {
		cfg.Limiter = middleware.NewIPRateLimiter(0.001, 1)
		cfg.TrustedProxies = []string{"203.0.113.0/24"}
	})

	assert.Equal(t, 0, throttledCount(env.router, 20))
}
