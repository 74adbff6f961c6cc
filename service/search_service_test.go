package service

import (
	"context"
	"errors"
	"testing"

	"caselaw-explorer/llm"
	"caselaw-explorer/metrics"
	"caselaw-explorer/models"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestSearch_BlankQueryNeverEmbeds(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		embedder := &fakeEmbedder{vector: []float32{1, 0}}
		finder := &fakeCaseFinder{hits: []models.CaseHit{{Case: &models.Case{ID: 1}}}}
		svc := NewSearchService(WithEmbedder(embedder), WithCaseFinder(finder))

		res, err := svc.Search(context.Background(), SearchRequest{Query: q, Limit: 20})
		require.NoError(t, err)

		assert.Equal(t, 0, embedder.callCount())
		assert.Equal(t, metrics.ModeBrowse, res.Mode)
		require.Len(t, finder.queries, 1)
		assert.Nil(t, finder.queries[0].Vector)
	}
}

func TestSearch_SemanticPassesVectorAndFilters(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	finder := &fakeCaseFinder{hits: []models.CaseHit{
		{Case: &models.Case{ID: 1}, Similarity: floatPtr(0.9)},
		{Case: &models.Case{ID: 2}, Similarity: floatPtr(0.7)},
	}}
	svc := NewSearchService(WithEmbedder(embedder), WithCaseFinder(finder), WithSearchMetrics(metrics.New()))

	res, err := svc.Search(context.Background(), SearchRequest{
		Query:    "  right to privacy  ",
		TopicIDs: []int64{4, 9},
		YearFrom: intPtr(1990),
		YearTo:   intPtr(2020),
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)

	assert.Equal(t, metrics.ModeSemantic, res.Mode)
	assert.Equal(t, []string{"right to privacy"}, embedder.calls)
	require.Len(t, finder.queries, 1)

	q := finder.queries[0]
	require.NotNil(t, q.Vector)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, q.Vector.Slice())
	assert.Equal(t, []int64{4, 9}, q.TopicIDs)
	assert.Equal(t, 1990, *q.YearFrom)
	assert.Equal(t, 2020, *q.YearTo)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
	assert.Nil(t, q.ExcludeID)
	assert.Len(t, res.Hits, 2)
}

func TestSearch_ProviderErrorAbortsWithoutFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"provider error", &llm.ProviderError{Op: "embed", StatusCode: 500, Err: errors.New("down")}},
		{"plain error is wrapped", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &fakeCaseFinder{}
			svc := NewSearchService(WithEmbedder(&fakeEmbedder{err: tt.err}), WithCaseFinder(finder))

			res, err := svc.Search(context.Background(), SearchRequest{Query: "privacy", Limit: 20})
			assert.Nil(t, res)
			assert.True(t, llm.IsProviderError(err))
			assert.Empty(t, finder.queries)
		})
	}
}

func TestSearch_EmptyVectorIsProviderError(t *testing.T) {
	finder := &fakeCaseFinder{}
	svc := NewSearchService(WithEmbedder(&fakeEmbedder{vector: []float32{}}), WithCaseFinder(finder))

	_, err := svc.Search(context.Background(), SearchRequest{Query: "privacy", Limit: 20})
	assert.True(t, llm.IsProviderError(err))
	assert.Empty(t, finder.queries)
}

func TestSearch_ValidatesPaging(t *testing.T) {
	tests := []struct {
		name string
		req  SearchRequest
	}{
		{"zero limit", SearchRequest{Limit: 0}},
		{"limit above max", SearchRequest{Limit: MaxSearchLimit + 1}},
		{"negative offset", SearchRequest{Limit: 10, Offset: -1}},
		{"inverted years", SearchRequest{Limit: 10, YearFrom: intPtr(2020), YearTo: intPtr(2000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSearchService(WithCaseFinder(&fakeCaseFinder{}))
			_, err := svc.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestSearch_StoreErrorPropagates(t *testing.T) {
	svc := NewSearchService(WithCaseFinder(&fakeCaseFinder{searchErr: errors.New("db down")}))

	_, err := svc.Search(context.Background(), SearchRequest{Limit: 20})
	require.Error(t, err)
	assert.False(t, llm.IsProviderError(err))
}

func TestSimilar_UsesStoredVectorAndExcludesSelf(t *testing.T) {
	vec := pgvector.NewVector([]float32{1, 0, 0})
	embedder := &fakeEmbedder{}
	finder := &fakeCaseFinder{
		embeddings: map[int64]*pgvector.Vector{7: &vec},
		hits:       []models.CaseHit{{Case: &models.Case{ID: 3}, Similarity: floatPtr(0.8)}},
	}
	svc := NewSearchService(WithEmbedder(embedder), WithCaseFinder(finder))

	res, err := svc.Similar(context.Background(), SimilarRequest{CaseID: 7, Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, 0, embedder.callCount())
	assert.Equal(t, metrics.ModeSimilar, res.Mode)
	require.Len(t, finder.queries, 1)
	q := finder.queries[0]
	require.NotNil(t, q.ExcludeID)
	assert.Equal(t, int64(7), *q.ExcludeID)
	assert.Equal(t, &vec, q.Vector)
	assert.Equal(t, 5, q.Limit)
	assert.Empty(t, q.TopicIDs)
	assert.Len(t, res.Hits, 1)
}

func TestSimilar_EmptyForMissingCaseOrEmbedding(t *testing.T) {
	finder := &fakeCaseFinder{embeddings: map[int64]*pgvector.Vector{2: nil}}
	svc := NewSearchService(WithCaseFinder(finder))

	for _, id := range []int64{2, 404} {
		res, err := svc.Similar(context.Background(), SimilarRequest{CaseID: id, Limit: 5})
		require.NoError(t, err)
		assert.NotNil(t, res.Hits)
		assert.Empty(t, res.Hits)
	}
	assert.Empty(t, finder.queries)
}

func TestSimilar_ValidatesLimit(t *testing.T) {
	svc := NewSearchService(WithCaseFinder(&fakeCaseFinder{}))

	_, err := svc.Similar(context.Background(), SimilarRequest{CaseID: 1, Limit: MaxSimilarLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
