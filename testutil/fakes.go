package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/cragflow/crag"
)

// Doc builds a RawDocument with the standard field names.
func Doc(content, source string) crag.RawDocument {
	return crag.RawDocument{"content": content, "source": source}
}

// ScriptedRetriever returns one scripted batch of documents per call, in
// order; calls past the last batch return the last batch again. It records
// every query it was asked.
type ScriptedRetriever struct {
	mu      sync.Mutex
	batches [][]crag.RawDocument
	calls   int
	queries []string
}

// NewScriptedRetriever creates a retriever scripted with the given batches.
func NewScriptedRetriever(batches ...[]crag.RawDocument) *ScriptedRetriever {
	return &ScriptedRetriever{batches: batches}
}

// Retrieve implements crag.RetrieverFunc.
func (r *ScriptedRetriever) Retrieve(ctx context.Context, query string) ([]crag.RawDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queries = append(r.queries, query)
	if len(r.batches) == 0 {
		r.calls++
		return nil, nil
	}
	idx := r.calls
	if idx >= len(r.batches) {
		idx = len(r.batches) - 1
	}
	r.calls++
	return r.batches[idx], nil
}

// Calls returns how many times the retriever was invoked.
func (r *ScriptedRetriever) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Queries returns the recorded queries in call order.
func (r *ScriptedRetriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	return out
}

// FailingRetriever always returns err.
func FailingRetriever(err error) crag.RetrieverFunc {
	return func(ctx context.Context, query string) ([]crag.RawDocument, error) {
		return nil, err
	}
}

// CorpusRetriever is a keyword retriever over a static in-memory corpus,
// scoring documents by how many query words they contain.
type CorpusRetriever struct {
	docs map[string]string // source -> content
	topK int
}

// NewCorpusRetriever creates a corpus retriever returning at most topK
// documents per query.
func NewCorpusRetriever(docs map[string]string, topK int) *CorpusRetriever {
	if topK <= 0 {
		topK = 5
	}
	return &CorpusRetriever{docs: docs, topK: topK}
}

// Retrieve implements crag.RetrieverFunc.
func (r *CorpusRetriever) Retrieve(ctx context.Context, query string) ([]crag.RawDocument, error) {
	words := strings.Fields(strings.ToLower(query))

	type scored struct {
		source string
		hits   int
	}
	var ranked []scored
	for source, content := range r.docs {
		lower := strings.ToLower(content)
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > 0 {
			ranked = append(ranked, scored{source, hits})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].hits != ranked[j].hits {
			return ranked[i].hits > ranked[j].hits
		}
		return ranked[i].source < ranked[j].source
	})

	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}
	results := make([]crag.RawDocument, len(ranked))
	for i, s := range ranked {
		results[i] = Doc(r.docs[s.source], s.source)
	}
	return results, nil
}

// StaticGenerator always returns answer.
func StaticGenerator(answer string) crag.GeneratorFunc {
	return func(ctx context.Context, query, contextText string) (string, error) {
		return answer, nil
	}
}

// ExtractiveGenerator produces an answer by quoting the first sentences of
// the assembled context. It is a stand-in for a real language model.
func ExtractiveGenerator(maxSentences int) crag.GeneratorFunc {
	return func(ctx context.Context, query, contextText string) (string, error) {
		if strings.TrimSpace(contextText) == "" {
			return fmt.Sprintf("No supporting material was found for: %s", query), nil
		}
		var sentences []string
		for _, line := range strings.Split(contextText, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "[Source:") {
				continue
			}
			for _, s := range strings.SplitAfter(line, ". ") {
				if s = strings.TrimSpace(s); s != "" {
					sentences = append(sentences, s)
				}
				if len(sentences) >= maxSentences {
					break
				}
			}
			if len(sentences) >= maxSentences {
				break
			}
		}
		return strings.Join(sentences, " "), nil
	}
}

// FailingGenerator always returns err.
func FailingGenerator(err error) crag.GeneratorFunc {
	return func(ctx context.Context, query, contextText string) (string, error) {
		return "", err
	}
}

// FixedScorer is a crag.RelevanceScorer returning a fixed score, or an
// error when Err is set.
type FixedScorer struct {
	Score float64
	Err   error
}

// ScoreRelevance implements crag.RelevanceScorer.
func (s FixedScorer) ScoreRelevance(ctx context.Context, query, content string) (float64, error) {
	return s.Score, s.Err
}

// FixedAuditor is a crag.AnswerAuditor returning fixed concerns, or an
// error when Err is set.
type FixedAuditor struct {
	Concerns []string
	Err      error
}

// AuditAnswer implements crag.AnswerAuditor.
func (a FixedAuditor) AuditAnswer(ctx context.Context, answer string, sources []string, query string) ([]string, error) {
	return a.Concerns, a.Err
}

// FixedReformulator is a crag.Reformulator returning a fixed reformulation,
// or an error when Err is set.
type FixedReformulator struct {
	Result *crag.ReformulatedQuery
	Err    error
}

// Reformulate implements crag.Reformulator.
func (r FixedReformulator) Reformulate(ctx context.Context, req crag.ReformulationRequest) (*crag.ReformulatedQuery, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Result, nil
}
