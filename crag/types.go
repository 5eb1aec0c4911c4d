package crag

import (
	"context"
	"time"
)

// ====== Query analysis ======

// QueryType classifies the intent of a user query.
type QueryType string

const (
	QueryFactual     QueryType = "factual"     // Fact lookup
	QueryAnalytical  QueryType = "analytical"  // Reasoning / explanation
	QueryComparative QueryType = "comparative" // Compare multiple items
	QueryAdvisory    QueryType = "advisory"    // Recommendation request
	QueryGeneral     QueryType = "general"     // No marker matched
)

// QueryAnalysis is the immutable result of analyzing one query.
// It is created once per pipeline run and never mutated.
type QueryAnalysis struct {
	Original    string    `json:"original"`
	Type        QueryType `json:"type"`
	KeyConcepts []string  `json:"key_concepts,omitempty"`
	Entities    []string  `json:"entities,omitempty"`
	Ambiguity   float64   `json:"ambiguity"`
}

// ReformulatedQuery is the result of reformulating a query after a weak
// retrieval, either by a model-backed Reformulator or by heuristics.
type ReformulatedQuery struct {
	Original       string   `json:"original"`
	Reformulated   string   `json:"reformulated"`
	Alternatives   []string `json:"alternatives,omitempty"`
	ExpansionTerms []string `json:"expansion_terms,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
}

// ====== Relevance grading ======

// RelevanceGrade is the categorical grade of a document's relevance score.
// Grades are only ever produced through GradeForScore so that a document's
// grade is always the deterministic image of its score.
type RelevanceGrade string

const (
	GradeHighlyRelevant    RelevanceGrade = "highly_relevant"    // score >= 0.8
	GradeRelevant          RelevanceGrade = "relevant"           // score >= 0.6
	GradePartiallyRelevant RelevanceGrade = "partially_relevant" // score >= 0.4
	GradeAmbiguous         RelevanceGrade = "ambiguous"          // score >= 0.2
	GradeNotRelevant       RelevanceGrade = "not_relevant"       // score < 0.2
)

// GradeForScore maps a relevance score in [0,1] to its categorical grade.
func GradeForScore(score float64) RelevanceGrade {
	switch {
	case score >= 0.8:
		return GradeHighlyRelevant
	case score >= 0.6:
		return GradeRelevant
	case score >= 0.4:
		return GradePartiallyRelevant
	case score >= 0.2:
		return GradeAmbiguous
	default:
		return GradeNotRelevant
	}
}

// GradedDocument is a candidate document after relevance scoring.
// Instances are immutable once created.
type GradedDocument struct {
	Content      string         `json:"content"`
	Source       string         `json:"source"`
	Page         int            `json:"page,omitempty"` // 0 means unknown
	Grade        RelevanceGrade `json:"grade"`
	Score        float64        `json:"score"`
	MatchedTerms []string       `json:"matched_terms,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ====== Correction actions ======

// CorrectionAction is the repair strategy chosen for one loop iteration in
// which the relevance threshold was not met.
type CorrectionAction string

const (
	ActionNone                CorrectionAction = "none"
	ActionReformulate         CorrectionAction = "reformulate"
	ActionDecompose           CorrectionAction = "decompose"
	ActionExpand              CorrectionAction = "expand"
	ActionWebSearch           CorrectionAction = "web_search"
	ActionUseGeneralKnowledge CorrectionAction = "use_general_knowledge"
	ActionGiveUp              CorrectionAction = "give_up"
)

// ====== Hallucination risk ======

// HallucinationRisk is the categorical risk level of a generated answer.
// Levels are only ever produced through RiskForScore.
type HallucinationRisk string

const (
	RiskLow      HallucinationRisk = "low"      // score < 0.3
	RiskMedium   HallucinationRisk = "medium"   // score >= 0.3
	RiskHigh     HallucinationRisk = "high"     // score >= 0.5
	RiskCritical HallucinationRisk = "critical" // score >= 0.7
)

// RiskForScore maps an aggregated risk score in [0,1] to its risk level.
func RiskForScore(score float64) HallucinationRisk {
	switch {
	case score >= 0.7:
		return RiskCritical
	case score >= 0.5:
		return RiskHigh
	case score >= 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// riskPenalty is the confidence penalty applied per risk level.
var riskPenalty = map[HallucinationRisk]float64{
	RiskLow:      0,
	RiskMedium:   0.15,
	RiskHigh:     0.35,
	RiskCritical: 0.6,
}

// ====== Result ======

// Citation is a structured pointer from the final answer back to one of the
// documents used to produce it.
type Citation struct {
	ID             int     `json:"id"`
	Source         string  `json:"source"`
	Page           int     `json:"page,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

// Result is the final output of one pipeline run. It is created exactly once
// at the end of a run and never mutated after construction.
type Result struct {
	Query              string             `json:"query"`
	FinalQuery         string             `json:"final_query"`
	Answer             string             `json:"answer"`
	AllDocuments       []GradedDocument   `json:"all_documents"`
	UsedDocuments      []GradedDocument   `json:"used_documents"`
	CorrectionsApplied []CorrectionAction `json:"corrections_applied"`
	Iterations         int                `json:"iterations"`
	HallucinationRisk  HallucinationRisk  `json:"hallucination_risk"`
	Concerns           []string           `json:"concerns,omitempty"`
	Confidence         float64            `json:"confidence"`
	Citations          []Citation         `json:"citations"`
	Duration           time.Duration      `json:"duration"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
}

// ====== Collaborator contracts ======

// RawDocument is a candidate document as returned by a retriever or web
// searcher. Content, source, and page may appear under several accepted
// field names; missing fields degrade to empty content / unknown source.
type RawDocument map[string]any

// contentKeys, sourceKeys, and pageKeys are the accepted field names, in
// lookup order.
var (
	contentKeys = []string{"content", "text", "page_content", "body"}
	sourceKeys  = []string{"source", "file_name", "url", "title"}
	pageKeys    = []string{"page", "page_number"}
)

// Content returns the document text, or "" when absent.
func (d RawDocument) Content() string {
	for _, key := range contentKeys {
		if v, ok := d[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Source returns the source identifier, or "unknown" when absent.
func (d RawDocument) Source() string {
	for _, key := range sourceKeys {
		if v, ok := d[key].(string); ok && v != "" {
			return v
		}
	}
	return "unknown"
}

// Page returns the page number, or 0 when absent.
func (d RawDocument) Page() int {
	for _, key := range pageKeys {
		switch v := d[key].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return 0
}

// Meta returns the passthrough metadata map, or nil when absent.
func (d RawDocument) Meta() map[string]any {
	if v, ok := d["metadata"].(map[string]any); ok {
		return v
	}
	return nil
}

// RetrieverFunc returns candidate documents for a query. Errors are fatal to
// the run and propagate to the caller.
type RetrieverFunc func(ctx context.Context, query string) ([]RawDocument, error)

// GeneratorFunc produces an answer from the original query and the assembled
// context text. Errors are fatal to the run and propagate to the caller.
type GeneratorFunc func(ctx context.Context, query, contextText string) (string, error)

// WebSearchFunc retrieves documents from a live web search. It is invoked at
// most once per run, only as the web_search correction.
type WebSearchFunc func(ctx context.Context, query string) ([]RawDocument, error)

// RelevanceScorer is an optional model-backed document scorer. On error the
// grader substitutes a neutral 0.5.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query, content string) (float64, error)
}

// ReformulationRequest carries the inputs of a model-backed reformulation.
type ReformulationRequest struct {
	Query     string    `json:"query"`
	QueryType QueryType `json:"query_type"`
	Concepts  []string  `json:"concepts,omitempty"`
	Feedback  string    `json:"feedback,omitempty"`
}

// Reformulator is an optional model-backed query reformulator. On error the
// transformer falls back to heuristic reformulation.
type Reformulator interface {
	Reformulate(ctx context.Context, req ReformulationRequest) (*ReformulatedQuery, error)
}

// AnswerAuditor is an optional model-backed answer checker. On error the
// detector skips the model audit with no penalty.
type AnswerAuditor interface {
	AuditAnswer(ctx context.Context, answer string, sources []string, query string) ([]string, error)
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateStr caps s to at most n runes.
func truncateStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
