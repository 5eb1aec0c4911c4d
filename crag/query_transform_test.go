package crag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransformer() *QueryTransformer {
	return NewQueryTransformer(DefaultTransformerConfig(), nil, nil, nil)
}

func TestAnalyzeClassification(t *testing.T) {
	tr := newTestTransformer()

	tests := []struct {
		name  string
		query string
		want  QueryType
	}{
		{"factual english", "What is the capital of France", QueryFactual},
		{"factual turkish", "Fotosentez nedir", QueryFactual},
		{"comparative", "PostgreSQL versus MySQL performance", QueryComparative},
		{"comparative wins over factual", "What is the difference between TCP and UDP", QueryComparative},
		{"analytical", "Explain the causes of inflation", QueryAnalytical},
		{"advisory", "Should I use microservices for a small team", QueryAdvisory},
		{"general", "planetary orbits", QueryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Analyze(tt.query)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.query, got.Original)
		})
	}
}

func TestAnalyzeConcepts(t *testing.T) {
	tr := newTestTransformer()

	analysis := tr.Analyze("What is the role of mitochondria in cellular respiration")
	assert.Equal(t, []string{"role", "mitochondria", "cellular", "respiration"}, analysis.KeyConcepts)
	assert.Equal(t, 0.2, analysis.Ambiguity)

	// Short tokens and stop words fall away; fewer than 2 concepts raises ambiguity.
	analysis = tr.Analyze("what is it")
	assert.Empty(t, analysis.KeyConcepts)
	assert.Equal(t, 0.5, analysis.Ambiguity)
}

func TestAnalyzeConceptCap(t *testing.T) {
	tr := newTestTransformer()

	analysis := tr.Analyze("alpha beta gamma delta epsilon zeta eta theta")
	assert.Len(t, analysis.KeyConcepts, 5)
}

func TestAnalyzeEntities(t *testing.T) {
	tr := newTestTransformer()

	analysis := tr.Analyze("Compare Kubernetes and Nomad for batch workloads")
	assert.Contains(t, analysis.Entities, "Kubernetes")
	assert.Contains(t, analysis.Entities, "Nomad")
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	tr := newTestTransformer()
	q := "How does garbage collection work in Go"

	first := tr.Analyze(q)
	second := tr.Analyze(q)
	assert.Equal(t, first, second)
}

func TestReformulateHeuristicFactual(t *testing.T) {
	tr := newTestTransformer()
	analysis := tr.Analyze("What is photosynthesis")

	result := tr.Reformulate(context.Background(), "What is photosynthesis", analysis, "low relevance")
	require.NotNil(t, result)
	assert.Equal(t, "definition of photosynthesis", result.Reformulated)
	assert.Contains(t, result.Alternatives, "photosynthesis explained")
	assert.Equal(t, analysis.KeyConcepts, result.ExpansionTerms)
}

func TestReformulateHeuristicNoConcepts(t *testing.T) {
	tr := newTestTransformer()
	analysis := tr.Analyze("it is")

	result := tr.Reformulate(context.Background(), "it is", analysis, "")
	assert.Equal(t, "it is", result.Reformulated)
}

type stubReformulator struct {
	result *ReformulatedQuery
	err    error
	calls  int
}

func (s *stubReformulator) Reformulate(ctx context.Context, req ReformulationRequest) (*ReformulatedQuery, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestReformulateModelBacked(t *testing.T) {
	stub := &stubReformulator{result: &ReformulatedQuery{
		Original:     "q",
		Reformulated: "model rewrite",
		Alternatives: []string{"a", "b", "c", "d"},
	}}
	tr := NewQueryTransformer(DefaultTransformerConfig(), nil, stub, nil)
	analysis := tr.Analyze("What is photosynthesis")

	result := tr.Reformulate(context.Background(), "What is photosynthesis", analysis, "low relevance")
	assert.Equal(t, "model rewrite", result.Reformulated)
	assert.Len(t, result.Alternatives, 3, "alternatives are capped")
	assert.Equal(t, 1, stub.calls)
}

func TestReformulateModelFailureFallsBack(t *testing.T) {
	stub := &stubReformulator{err: errors.New("model unavailable")}
	tr := NewQueryTransformer(DefaultTransformerConfig(), nil, stub, nil)
	analysis := tr.Analyze("What is photosynthesis")

	result := tr.Reformulate(context.Background(), "What is photosynthesis", analysis, "low relevance")
	assert.Equal(t, "definition of photosynthesis", result.Reformulated)
	assert.Equal(t, 1, stub.calls)
}

func TestDecomposeConjunctions(t *testing.T) {
	tr := newTestTransformer()
	query := "history of Rome and geography of Italy"
	analysis := tr.Analyze(query)

	subs := tr.Decompose(query, analysis)
	require.GreaterOrEqual(t, len(subs), 3)
	assert.Equal(t, query, subs[0], "original query comes first")
	assert.Contains(t, subs, "history of rome")
	assert.Contains(t, subs, "geography of italy")
}

func TestDecomposeComparative(t *testing.T) {
	tr := newTestTransformer()
	query := "compare solar power versus wind power"
	analysis := tr.Analyze(query)
	require.Equal(t, QueryComparative, analysis.Type)
	require.GreaterOrEqual(t, len(analysis.KeyConcepts), 2)

	subs := tr.Decompose(query, analysis)
	assert.Contains(t, subs, "What is "+analysis.KeyConcepts[0]+"?")
	assert.Contains(t, subs, "What is "+analysis.KeyConcepts[1]+"?")
	assert.LessOrEqual(t, len(subs), 5)
}

func TestDecomposeDeduplicates(t *testing.T) {
	tr := newTestTransformer()
	query := "cats and cats and cats"
	analysis := tr.Analyze(query)

	subs := tr.Decompose(query, analysis)
	seen := make(map[string]bool)
	for _, s := range subs {
		key := normalizeQuery(s)
		assert.False(t, seen[key], "duplicate sub-query %q", s)
		seen[key] = true
	}
}

func TestDecomposeSimpleQuery(t *testing.T) {
	tr := newTestTransformer()
	query := "quantum entanglement"
	analysis := tr.Analyze(query)

	subs := tr.Decompose(query, analysis)
	assert.Equal(t, []string{query}, subs)
}

func TestExpand(t *testing.T) {
	tr := newTestTransformer()

	analysis := tr.Analyze("How does photosynthesis work")
	expanded := tr.Expand("How does photosynthesis work", analysis)
	assert.Equal(t, "How does photosynthesis work (photosynthesis, work)", expanded)

	empty := tr.Analyze("it is")
	assert.Equal(t, "it is", tr.Expand("it is", empty), "no concepts leaves the query unchanged")
}
