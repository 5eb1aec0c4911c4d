package crag

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// TransformerConfig configures the query transformer.
type TransformerConfig struct {
	// MaxConcepts caps the number of key concepts kept per analysis.
	MaxConcepts int `json:"max_concepts"`
	// MaxSubQueries caps the number of sub-queries returned by Decompose,
	// the original included.
	MaxSubQueries int `json:"max_sub_queries"`
	// MaxAlternatives caps the alternative phrasings in a reformulation.
	MaxAlternatives int `json:"max_alternatives"`
}

// DefaultTransformerConfig returns the default transformer configuration.
func DefaultTransformerConfig() TransformerConfig {
	return TransformerConfig{
		MaxConcepts:     5,
		MaxSubQueries:   5,
		MaxAlternatives: 3,
	}
}

// wordToken strips everything but letters and digits.
var wordToken = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// QueryTransformer analyzes queries and produces reformulated, decomposed,
// or expanded variants on demand. Analysis is deterministic and heuristic;
// reformulation may delegate to an optional model-backed Reformulator and
// falls back to heuristics when it fails.
type QueryTransformer struct {
	config       TransformerConfig
	lexicon      *Lexicon
	reformulator Reformulator
	stopWords    map[string]bool
	logger       *zap.Logger
}

// NewQueryTransformer creates a query transformer. The reformulator may be
// nil, in which case reformulation is always heuristic. A nil lexicon uses
// DefaultLexicon.
func NewQueryTransformer(
	config TransformerConfig,
	lexicon *Lexicon,
	reformulator Reformulator,
	logger *zap.Logger,
) *QueryTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}

	return &QueryTransformer{
		config:       config,
		lexicon:      lexicon,
		reformulator: reformulator,
		stopWords:    wordSet(lexicon.StopWords),
		logger:       logger.With(zap.String("component", "query_transformer")),
	}
}

// Analyze classifies a query's intent and extracts its key concepts.
// It has no failure path and always returns a result.
func (t *QueryTransformer) Analyze(query string) *QueryAnalysis {
	analysis := &QueryAnalysis{
		Original:    query,
		Type:        t.classify(query),
		KeyConcepts: t.extractConcepts(query),
		Entities:    t.extractEntities(query),
	}

	if len(analysis.KeyConcepts) < 2 {
		analysis.Ambiguity = 0.5
	} else {
		analysis.Ambiguity = 0.2
	}

	return analysis
}

// classify detects the query type by marker-word presence. Comparative and
// advisory markers win over the broader factual/analytical lists.
// Single-word markers must match a whole token; short markers like the
// Turkish "ne" would otherwise fire inside unrelated English words.
func (t *QueryTransformer) classify(query string) QueryType {
	lower := strings.ToLower(query)
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(lower) {
		tokens[wordToken.ReplaceAllString(word, "")] = true
	}

	markers := []struct {
		queryType QueryType
		words     []string
	}{
		{QueryComparative, t.lexicon.ComparativeMarkers},
		{QueryAdvisory, t.lexicon.AdvisoryMarkers},
		{QueryAnalytical, t.lexicon.AnalyticalMarkers},
		{QueryFactual, t.lexicon.FactualMarkers},
	}

	for _, m := range markers {
		for _, word := range m.words {
			word = strings.ToLower(word)
			if strings.Contains(word, " ") {
				if strings.Contains(lower, word) {
					return m.queryType
				}
			} else if tokens[word] {
				return m.queryType
			}
		}
	}

	return QueryGeneral
}

// extractConcepts tokenizes on whitespace, strips stop words and
// punctuation, and keeps up to MaxConcepts tokens longer than 2 characters.
func (t *QueryTransformer) extractConcepts(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	concepts := make([]string, 0, t.config.MaxConcepts)
	seen := make(map[string]bool)

	for _, word := range words {
		word = wordToken.ReplaceAllString(word, "")
		if word == "" || seen[word] || t.stopWords[word] || len([]rune(word)) <= 2 {
			continue
		}
		seen[word] = true
		concepts = append(concepts, word)
		if len(concepts) >= t.config.MaxConcepts {
			break
		}
	}

	return concepts
}

// extractEntities keeps capitalized non-initial words as entity candidates.
func (t *QueryTransformer) extractEntities(query string) []string {
	words := strings.Fields(query)
	var entities []string

	for i, word := range words {
		if i == 0 {
			continue
		}
		runes := []rune(word)
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			continue
		}
		word = strings.TrimRight(word, ".,;:!?")
		if len([]rune(word)) > 1 {
			entities = append(entities, word)
		}
	}

	return entities
}


// Reformulate produces a reformulated query, preferring the model-backed
// reformulator when one is configured. The feedback string describes why the
// previous retrieval failed and may be empty.
func (t *QueryTransformer) Reformulate(
	ctx context.Context,
	query string,
	analysis *QueryAnalysis,
	feedback string,
) *ReformulatedQuery {
	if t.reformulator != nil {
		result, err := t.reformulator.Reformulate(ctx, ReformulationRequest{
			Query:     query,
			QueryType: analysis.Type,
			Concepts:  analysis.KeyConcepts,
			Feedback:  feedback,
		})
		if err != nil {
			t.logger.Warn("model reformulation failed, using heuristic fallback",
				zap.String("query", truncateStr(query, 80)),
				zap.Error(err))
		} else {
			if len(result.Alternatives) > t.config.MaxAlternatives {
				result.Alternatives = result.Alternatives[:t.config.MaxAlternatives]
			}
			return result
		}
	}

	return t.reformulateWithRules(query, analysis)
}

// reformulateWithRules is the heuristic fallback: factual queries get
// "definition of ..." / "... explained" variants from the joined concepts,
// other types get a keyword-only rewrite.
func (t *QueryTransformer) reformulateWithRules(query string, analysis *QueryAnalysis) *ReformulatedQuery {
	result := &ReformulatedQuery{
		Original:       query,
		Reformulated:   query,
		ExpansionTerms: analysis.KeyConcepts,
		Rationale:      "heuristic reformulation",
	}

	if len(analysis.KeyConcepts) == 0 {
		return result
	}

	joined := strings.Join(analysis.KeyConcepts, " ")
	if analysis.Type == QueryFactual {
		result.Alternatives = []string{
			fmt.Sprintf("definition of %s", joined),
			fmt.Sprintf("%s explained", joined),
		}
		result.Reformulated = result.Alternatives[0]
	} else {
		result.Reformulated = joined
	}

	if len(result.Alternatives) > t.config.MaxAlternatives {
		result.Alternatives = result.Alternatives[:t.config.MaxAlternatives]
	}

	return result
}

// Decompose splits a query into sub-queries. The original query is always
// first, the result is de-duplicated and capped to MaxSubQueries.
func (t *QueryTransformer) Decompose(query string, analysis *QueryAnalysis) []string {
	subQueries := []string{query}
	seen := map[string]bool{normalizeQuery(query): true}

	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || len(subQueries) >= t.config.MaxSubQueries {
			return
		}
		key := normalizeQuery(q)
		if seen[key] {
			return
		}
		seen[key] = true
		subQueries = append(subQueries, q)
	}

	// Split on conjunction words. Sub-queries are retrieval-only, so the
	// lowercased form is good enough.
	parts := []string{strings.ToLower(query)}
	for _, conj := range t.lexicon.Conjunctions {
		sep := " " + strings.ToLower(conj) + " "
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, sep)...)
		}
		parts = next
	}
	if len(parts) > 1 {
		for _, part := range parts {
			add(part)
		}
	}

	// Comparative queries get a lookup sub-query per compared concept.
	if analysis.Type == QueryComparative && len(analysis.KeyConcepts) >= 2 {
		for _, concept := range analysis.KeyConcepts[:2] {
			add(fmt.Sprintf("What is %s?", concept))
		}
	}

	return subQueries
}

// Expand appends the parenthesized key-concept list to the query. Queries
// without concepts are returned unchanged.
func (t *QueryTransformer) Expand(query string, analysis *QueryAnalysis) string {
	if len(analysis.KeyConcepts) == 0 {
		return query
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(analysis.KeyConcepts, ", "))
}

// normalizeQuery lowercases and collapses whitespace for de-duplication.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
