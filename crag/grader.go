package crag

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GraderConfig configures the relevance grader.
type GraderConfig struct {
	// CoverageWeight and DensityWeight blend the two lexical signals.
	CoverageWeight float64 `json:"coverage_weight"`
	DensityWeight  float64 `json:"density_weight"`
	// ModelContentLimit caps the content passed to the model-backed scorer,
	// in characters.
	ModelContentLimit int `json:"model_content_limit"`
	// Concurrency bounds parallel grading within one document batch.
	// Values below 1 grade sequentially.
	Concurrency int `json:"concurrency"`
}

// DefaultGraderConfig returns the default grader configuration.
func DefaultGraderConfig() GraderConfig {
	return GraderConfig{
		CoverageWeight:    0.7,
		DensityWeight:     0.3,
		ModelContentLimit: 2000,
		Concurrency:       4,
	}
}

// queryTermPattern extracts word tokens of length >= 3.
var queryTermPattern = regexp.MustCompile(`[\p{L}\p{N}]{3,}`)

// RelevanceGrader scores candidate documents against a query using lexical
// overlap, optionally blended with a model-based score. Instances hold only
// configuration and are safe for concurrent use.
type RelevanceGrader struct {
	config GraderConfig
	scorer RelevanceScorer
	logger *zap.Logger
}

// NewRelevanceGrader creates a relevance grader. The scorer may be nil, in
// which case grading is purely lexical.
func NewRelevanceGrader(config GraderConfig, scorer RelevanceScorer, logger *zap.Logger) *RelevanceGrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelevanceGrader{
		config: config,
		scorer: scorer,
		logger: logger.With(zap.String("component", "relevance_grader")),
	}
}

// GradeDocuments grades every document and returns the results sorted by
// relevance score, descending. Documents within one batch are independent
// and are graded with bounded parallelism; ties keep input order.
func (g *RelevanceGrader) GradeDocuments(
	ctx context.Context,
	query string,
	docs []RawDocument,
	analysis *QueryAnalysis,
) []GradedDocument {
	graded := make([]GradedDocument, len(docs))

	if g.config.Concurrency > 1 && len(docs) > 1 {
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(g.config.Concurrency)
		for i, doc := range docs {
			eg.Go(func() error {
				graded[i] = g.GradeDocument(gctx, query, doc, analysis)
				return nil
			})
		}
		// Grading never returns an error; the group only bounds parallelism.
		_ = eg.Wait()
	} else {
		for i, doc := range docs {
			graded[i] = g.GradeDocument(ctx, query, doc, analysis)
		}
	}

	sort.SliceStable(graded, func(i, j int) bool {
		return graded[i].Score > graded[j].Score
	})

	return graded
}

// GradeDocument grades a single document. Missing content grades as empty
// text rather than failing; a model scorer error substitutes a neutral 0.5.
func (g *RelevanceGrader) GradeDocument(
	ctx context.Context,
	query string,
	doc RawDocument,
	analysis *QueryAnalysis,
) GradedDocument {
	content := doc.Content()
	score, matched := g.lexicalScore(query, content, analysis)

	if g.scorer != nil {
		modelScore, err := g.scorer.ScoreRelevance(ctx, query, truncateStr(content, g.config.ModelContentLimit))
		if err != nil {
			g.logger.Warn("model relevance scoring failed, substituting neutral score",
				zap.String("source", doc.Source()),
				zap.Error(err))
			modelScore = 0.5
		}
		score = (score + clamp01(modelScore)) / 2
	}

	score = clamp01(score)

	return GradedDocument{
		Content:      content,
		Source:       doc.Source(),
		Page:         doc.Page(),
		Grade:        GradeForScore(score),
		Score:        score,
		MatchedTerms: matched,
		Metadata:     doc.Meta(),
	}
}

// lexicalScore computes the coverage/density blend over the query terms.
// Query terms are the word tokens of the lowercased query unioned with the
// analysis key concepts and entities.
func (g *RelevanceGrader) lexicalScore(query, content string, analysis *QueryAnalysis) (float64, []string) {
	terms := make(map[string]bool)
	for _, term := range queryTermPattern.FindAllString(strings.ToLower(query), -1) {
		terms[term] = true
	}
	if analysis != nil {
		for _, concept := range analysis.KeyConcepts {
			terms[strings.ToLower(concept)] = true
		}
		for _, entity := range analysis.Entities {
			terms[strings.ToLower(entity)] = true
		}
	}

	if len(terms) == 0 {
		return 0, nil
	}

	lowerContent := strings.ToLower(content)
	var matched []string
	matchCount := 0
	for term := range terms {
		if n := strings.Count(lowerContent, term); n > 0 {
			matched = append(matched, term)
			matchCount += n
		}
	}
	sort.Strings(matched)

	coverage := float64(len(matched)) / float64(len(terms))

	density := 0.0
	if wordCount := len(strings.Fields(content)); wordCount > 0 {
		density = float64(matchCount) / (float64(wordCount) / 10)
		if density > 1 {
			density = 1
		}
	}

	return g.config.CoverageWeight*coverage + g.config.DensityWeight*density, matched
}
