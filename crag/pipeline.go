package crag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PipelineConfig configures the corrective retrieval loop and document
// selection.
type PipelineConfig struct {
	// MaxIterations bounds the retrieve→grade→correct loop.
	MaxIterations int `json:"max_iterations"`
	// MinRelevantDocs is the number of documents at or above
	// RelevanceThreshold required to stop correcting.
	MinRelevantDocs int `json:"min_relevant_docs"`
	// RelevanceThreshold is the score at or above which a document counts
	// as relevant for the loop exit condition.
	RelevanceThreshold float64 `json:"relevance_threshold"`
	// MinSelectionScore filters the final document selection.
	MinSelectionScore float64 `json:"min_selection_score"`
	// MaxSelectedDocs caps the final document selection.
	MaxSelectedDocs int `json:"max_selected_docs"`
	// MaxContextTokens truncates the assembled context by dropping the
	// lowest-scored documents. 0 disables truncation.
	MaxContextTokens int `json:"max_context_tokens"`
	// IterationPenalty is the confidence penalty per correction iteration.
	IterationPenalty float64 `json:"iteration_penalty"`
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxIterations:      3,
		MinRelevantDocs:    2,
		RelevanceThreshold: 0.5,
		MinSelectionScore:  0.3,
		MaxSelectedDocs:    30,
		MaxContextTokens:   0,
		IterationPenalty:   0.05,
	}
}

// Pipeline orchestrates a corrective RAG run: analyze once, iterate
// retrieve→grade→correct, select documents, generate, audit, assemble.
// A Pipeline holds no mutable state outside a single Run call and is safe
// for concurrent use when its collaborators are.
type Pipeline struct {
	config      PipelineConfig
	retriever   RetrieverFunc
	generator   GeneratorFunc
	webSearch   WebSearchFunc
	transformer *QueryTransformer
	grader      *RelevanceGrader
	detector    *HallucinationDetector
	lexicon     *Lexicon
	tokenizer   Tokenizer
	metrics     *Collector
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewPipeline creates a pipeline. The retriever and generator are required;
// webSearch may be nil. Nil transformer, grader, or detector are replaced by
// heuristic-only defaults sharing the given lexicon.
func NewPipeline(
	config PipelineConfig,
	retriever RetrieverFunc,
	generator GeneratorFunc,
	webSearch WebSearchFunc,
	transformer *QueryTransformer,
	grader *RelevanceGrader,
	detector *HallucinationDetector,
	lexicon *Lexicon,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if transformer == nil {
		transformer = NewQueryTransformer(DefaultTransformerConfig(), lexicon, nil, logger)
	}
	if grader == nil {
		grader = NewRelevanceGrader(DefaultGraderConfig(), nil, logger)
	}
	if detector == nil {
		detector = NewHallucinationDetector(DefaultDetectorConfig(), lexicon, nil, logger)
	}

	return &Pipeline{
		config:      config,
		retriever:   retriever,
		generator:   generator,
		webSearch:   webSearch,
		transformer: transformer,
		grader:      grader,
		detector:    detector,
		lexicon:     lexicon,
		tracer:      otel.Tracer("github.com/BaSui01/cragflow/crag"),
		logger:      logger.With(zap.String("component", "crag_pipeline")),
	}
}

// WithTokenizer sets the tokenizer used for context-budget truncation.
// Without one, MaxContextTokens uses the character-estimate tokenizer.
func (p *Pipeline) WithTokenizer(tok Tokenizer) *Pipeline {
	p.tokenizer = tok
	return p
}

// WithMetrics sets the Prometheus collector for run observations.
func (p *Pipeline) WithMetrics(m *Collector) *Pipeline {
	p.metrics = m
	return p
}

// Run executes one corrective RAG run. Retriever and generator errors
// propagate; model-backed collaborator failures degrade to heuristics inside
// the components. The generated answer always uses the original query text —
// the transformed query only steers retrieval.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "crag.run",
		trace.WithAttributes(
			attribute.String("crag.run_id", runID),
			attribute.String("crag.query", truncateStr(query, 120)),
		))
	defer span.End()

	analysis := p.transformer.Analyze(query)
	personal := isPersonalQuery(query, p.lexicon)

	p.logger.Info("starting corrective RAG run",
		zap.String("run_id", runID),
		zap.String("query", truncateStr(query, 80)),
		zap.String("query_type", string(analysis.Type)),
		zap.Strings("key_concepts", analysis.KeyConcepts))

	currentQuery := query
	iteration := 0
	var allGraded []GradedDocument
	var corrections []CorrectionAction
	queryTrail := []string{query}

	for iteration < p.config.MaxIterations {
		iteration++

		graded, err := p.retrieveAndGrade(ctx, currentQuery, analysis, iteration)
		if err != nil {
			p.observeRun("failed", iteration, nil, 0)
			return nil, err
		}
		allGraded = append(allGraded, graded...)

		relevantCount := countRelevant(graded, p.config.RelevanceThreshold)
		if relevantCount >= p.config.MinRelevantDocs {
			break
		}

		action := decideCorrection(correctionInput{
			relevantCount:   relevantCount,
			iteration:       iteration,
			maxIterations:   p.config.MaxIterations,
			minRelevantDocs: p.config.MinRelevantDocs,
			analysis:        analysis,
			isPersonal:      personal,
			webSearchable:   p.webSearch != nil,
		})
		corrections = append(corrections, action)

		p.logger.Debug("correction chosen",
			zap.String("run_id", runID),
			zap.Int("iteration", iteration),
			zap.Int("relevant", relevantCount),
			zap.String("action", string(action)))

		stop, err := p.applyCorrection(ctx, action, &currentQuery, analysis, &allGraded, &queryTrail)
		if err != nil {
			p.observeRun("failed", iteration, nil, 0)
			return nil, err
		}
		if stop {
			break
		}
	}

	used := p.selectDocuments(allGraded)
	contextText, used := p.assembleContext(used)

	answer, err := p.generator(ctx, query, contextText)
	if err != nil {
		p.observeRun("failed", iteration, nil, 0)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	risk, concerns := p.detector.CheckAnswer(ctx, answer, used, query)
	confidence := p.confidence(used, risk, iteration)

	result := &Result{
		Query:              query,
		FinalQuery:         currentQuery,
		Answer:             answer,
		AllDocuments:       allGraded,
		UsedDocuments:      used,
		CorrectionsApplied: corrections,
		Iterations:         iteration,
		HallucinationRisk:  risk,
		Concerns:           concerns,
		Confidence:         confidence,
		Citations:          buildCitations(used),
		Duration:           time.Since(start),
		Metadata: map[string]any{
			"run_id":      runID,
			"query_type":  string(analysis.Type),
			"query_trail": queryTrail,
			"ambiguity":   analysis.Ambiguity,
		},
	}

	span.SetAttributes(
		attribute.Int("crag.iterations", iteration),
		attribute.String("crag.risk", string(risk)),
		attribute.Float64("crag.confidence", confidence),
	)
	p.observeRun("completed", iteration, corrections, confidence)
	if p.metrics != nil {
		p.metrics.ObserveRisk(risk)
	}

	p.logger.Info("corrective RAG run completed",
		zap.String("run_id", runID),
		zap.Int("iterations", iteration),
		zap.Int("documents_used", len(used)),
		zap.String("risk", string(risk)),
		zap.Float64("confidence", confidence),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// retrieveAndGrade runs one retrieval and grades its results.
func (p *Pipeline) retrieveAndGrade(
	ctx context.Context,
	query string,
	analysis *QueryAnalysis,
	iteration int,
) ([]GradedDocument, error) {
	ctx, span := p.tracer.Start(ctx, "crag.retrieve",
		trace.WithAttributes(attribute.Int("crag.iteration", iteration)))
	defer span.End()

	docs, err := p.retriever(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return p.grader.GradeDocuments(ctx, query, docs, analysis), nil
}

// applyCorrection dispatches one correction action. It reports whether the
// loop should stop. Retriever errors during decomposition are fatal; a web
// search failure degrades to whatever context already exists.
func (p *Pipeline) applyCorrection(
	ctx context.Context,
	action CorrectionAction,
	currentQuery *string,
	analysis *QueryAnalysis,
	allGraded *[]GradedDocument,
	queryTrail *[]string,
) (stop bool, err error) {
	switch action {
	case ActionNone, ActionGiveUp, ActionUseGeneralKnowledge:
		return true, nil

	case ActionWebSearch:
		// Web search always targets the original query and ends the loop
		// whether or not a searcher is configured.
		if p.webSearch != nil {
			docs, searchErr := p.webSearch(ctx, analysis.Original)
			if searchErr != nil {
				p.logger.Warn("web search failed, continuing with existing context",
					zap.Error(searchErr))
			} else {
				*allGraded = append(*allGraded,
					p.grader.GradeDocuments(ctx, analysis.Original, docs, analysis)...)
			}
		}
		return true, nil

	case ActionReformulate:
		reformulated := p.transformer.Reformulate(ctx, *currentQuery, analysis, "low relevance")
		*currentQuery = reformulated.Reformulated
		*queryTrail = append(*queryTrail, *currentQuery)
		return false, nil

	case ActionDecompose:
		subQueries := p.transformer.Decompose(*currentQuery, analysis)
		for _, sub := range subQueries[1:] {
			graded, gradeErr := p.retrieveAndGrade(ctx, sub, analysis, 0)
			if gradeErr != nil {
				return false, gradeErr
			}
			*allGraded = append(*allGraded, graded...)
			*queryTrail = append(*queryTrail, sub)
		}
		return false, nil

	case ActionExpand:
		*currentQuery = p.transformer.Expand(*currentQuery, analysis)
		*queryTrail = append(*queryTrail, *currentQuery)
		return false, nil

	default:
		return true, nil
	}
}

// selectDocuments de-duplicates by content-prefix hash (first occurrence
// wins), sorts by score descending, filters by MinSelectionScore, and caps
// to MaxSelectedDocs.
func (p *Pipeline) selectDocuments(all []GradedDocument) []GradedDocument {
	seen := make(map[string]bool, len(all))
	unique := make([]GradedDocument, 0, len(all))
	for _, doc := range all {
		key := contentHash(doc.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, doc)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})

	selected := make([]GradedDocument, 0, p.config.MaxSelectedDocs)
	for _, doc := range unique {
		if doc.Score < p.config.MinSelectionScore {
			break
		}
		selected = append(selected, doc)
		if len(selected) >= p.config.MaxSelectedDocs {
			break
		}
	}
	return selected
}

// assembleContext joins the selected documents into the generation context.
// When a token budget is configured, the lowest-scored documents are dropped
// until the context fits; the returned slice reflects what was kept.
func (p *Pipeline) assembleContext(used []GradedDocument) (string, []GradedDocument) {
	build := func(docs []GradedDocument) string {
		entries := make([]string, len(docs))
		for i, doc := range docs {
			page := "?"
			if doc.Page > 0 {
				page = fmt.Sprintf("%d", doc.Page)
			}
			entries[i] = fmt.Sprintf("[Source: %s, Page: %s]\n%s", doc.Source, page, doc.Content)
		}
		return strings.Join(entries, "\n\n")
	}

	contextText := build(used)
	if p.config.MaxContextTokens <= 0 {
		return contextText, used
	}

	tok := p.tokenizer
	if tok == nil {
		tok = EstimatorTokenizer{}
	}
	for len(used) > 1 && tok.CountTokens(contextText) > p.config.MaxContextTokens {
		used = used[:len(used)-1]
		contextText = build(used)
	}
	return contextText, used
}

// confidence combines mean relevance with risk and iteration penalties.
func (p *Pipeline) confidence(used []GradedDocument, risk HallucinationRisk, iterations int) float64 {
	return clamp01(meanScore(used) - riskPenalty[risk] - p.config.IterationPenalty*float64(iterations-1))
}

// buildCitations emits one citation per used document, IDs starting at 1.
func buildCitations(used []GradedDocument) []Citation {
	citations := make([]Citation, len(used))
	for i, doc := range used {
		citations[i] = Citation{
			ID:             i + 1,
			Source:         doc.Source,
			Page:           doc.Page,
			RelevanceScore: doc.Score,
			Excerpt:        truncateStr(doc.Content, 200) + "...",
		}
	}
	return citations
}

// observeRun records run metrics when a collector is configured.
func (p *Pipeline) observeRun(outcome string, iterations int, corrections []CorrectionAction, confidence float64) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveRun(outcome, iterations, confidence)
	for _, action := range corrections {
		p.metrics.ObserveCorrection(action)
	}
}

// countRelevant counts documents at or above the threshold.
func countRelevant(docs []GradedDocument, threshold float64) int {
	count := 0
	for _, doc := range docs {
		if doc.Score >= threshold {
			count++
		}
	}
	return count
}

// contentHash hashes the first 500 characters of content for selection
// de-duplication.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(truncateStr(content, 500)))
	return hex.EncodeToString(sum[:])
}
