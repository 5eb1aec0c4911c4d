package crag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// DetectorConfig configures the hallucination detector.
type DetectorConfig struct {
	// MinSentenceLength is the minimum sentence length, in characters,
	// considered for the unsupported-claim check.
	MinSentenceLength int `json:"min_sentence_length"`
	// SupportThreshold is the token-coverage ratio below which a sentence
	// counts as unsupported.
	SupportThreshold float64 `json:"support_threshold"`
	// MaxExampleSentences caps the example sentences quoted per concern.
	MaxExampleSentences int `json:"max_example_sentences"`
	// HedgeLimit is the hedge-word occurrence count above which the answer
	// is penalized.
	HedgeLimit int `json:"hedge_limit"`
}

// DefaultDetectorConfig returns the default detector configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinSentenceLength:   20,
		SupportThreshold:    0.3,
		MaxExampleSentences: 3,
		HedgeLimit:          3,
	}
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	claimToken    = regexp.MustCompile(`[\p{L}]{4,}`)
	numberToken   = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:%|percent|yüzde)?`)
)

// HallucinationDetector inspects a generated answer against the documents
// that were actually used and produces a risk level with concrete concerns.
// Instances hold only configuration and are safe for concurrent use.
type HallucinationDetector struct {
	config  DetectorConfig
	lexicon *Lexicon
	auditor AnswerAuditor
	logger  *zap.Logger
}

// NewHallucinationDetector creates a detector. The auditor may be nil; a nil
// lexicon uses DefaultLexicon.
func NewHallucinationDetector(
	config DetectorConfig,
	lexicon *Lexicon,
	auditor AnswerAuditor,
	logger *zap.Logger,
) *HallucinationDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &HallucinationDetector{
		config:  config,
		lexicon: lexicon,
		auditor: auditor,
		logger:  logger.With(zap.String("component", "hallucination_detector")),
	}
}

// CheckAnswer aggregates independent risk checks over the answer and maps
// the clamped total to a risk level. Each check may append a human-readable
// concern. A model auditor failure skips the model check with no penalty.
func (d *HallucinationDetector) CheckAnswer(
	ctx context.Context,
	answer string,
	usedDocs []GradedDocument,
	query string,
) (HallucinationRisk, []string) {
	risk := 0.0
	var concerns []string

	sourceText := combinedSourceText(usedDocs)
	lowerSource := strings.ToLower(sourceText)

	totalSourceLen := 0
	for _, doc := range usedDocs {
		totalSourceLen += len(doc.Content)
	}

	// Length disproportion.
	if float64(len(answer)) > 0.5*float64(totalSourceLen) && len(answer) > 500 {
		risk += 0.2
		concerns = append(concerns, "answer is longer than source material reasonably supports")
	}

	// Unsupported claims: one penalty per unsupported sentence, uncapped.
	unsupported := d.unsupportedSentences(answer, lowerSource)
	if len(unsupported) > 0 {
		risk += 0.1 * float64(len(unsupported))
		examples := unsupported
		if len(examples) > d.config.MaxExampleSentences {
			examples = examples[:d.config.MaxExampleSentences]
		}
		concerns = append(concerns, fmt.Sprintf(
			"%d statements lack clear source support, e.g.: %s",
			len(unsupported), strings.Join(examples, " | ")))
	}

	// Unverified numbers.
	if numbers := numberToken.FindAllString(answer, -1); len(numbers) > 0 {
		verified := 0
		for _, num := range numbers {
			bare := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(
				strings.TrimSuffix(strings.TrimSpace(num), "%"), "percent"), "yüzde"))
			bare = strings.TrimSpace(bare)
			if bare != "" && strings.Contains(sourceText, bare) {
				verified++
			}
		}
		if verified*2 < len(numbers) {
			risk += 0.3
			concerns = append(concerns, fmt.Sprintf(
				"%d of %d numeric claims could not be verified against the sources",
				len(numbers)-verified, len(numbers)))
		}
	}

	// Hedging language.
	lowerAnswer := strings.ToLower(answer)
	hedges := 0
	for _, hedge := range d.lexicon.HedgeWords {
		hedges += strings.Count(lowerAnswer, strings.ToLower(hedge))
	}
	if hedges > d.config.HedgeLimit {
		risk += 0.1
		concerns = append(concerns, fmt.Sprintf("answer hedges %d times, suggesting uncertainty", hedges))
	}

	// Source coverage. The two branches are mutually exclusive.
	if len(usedDocs) == 0 {
		risk += 0.5
		concerns = append(concerns, "answer was generated with no sources")
	} else if meanScore(usedDocs) < 0.4 {
		risk += 0.3
		concerns = append(concerns, "average relevance of the used sources is low")
	}

	// Optional model audit.
	if d.auditor != nil {
		sources := make([]string, len(usedDocs))
		for i, doc := range usedDocs {
			sources[i] = doc.Content
		}
		auditConcerns, err := d.auditor.AuditAnswer(ctx, answer, sources, query)
		if err != nil {
			d.logger.Warn("model answer audit failed, skipping", zap.Error(err))
		} else {
			concerns = append(concerns, auditConcerns...)
			risk += 0.1 * float64(len(auditConcerns))
		}
	}

	risk = clamp01(risk)
	level := RiskForScore(risk)

	d.logger.Debug("answer checked",
		zap.Float64("risk_score", risk),
		zap.String("risk", string(level)),
		zap.Int("concerns", len(concerns)))

	return level, concerns
}

// unsupportedSentences returns the sentences whose 4+-letter-token coverage
// against the source text falls below the support threshold.
func (d *HallucinationDetector) unsupportedSentences(answer, lowerSource string) []string {
	var unsupported []string

	for _, sentence := range sentenceSplit.Split(answer, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < d.config.MinSentenceLength {
			continue
		}

		tokens := claimToken.FindAllString(strings.ToLower(sentence), -1)
		if len(tokens) == 0 {
			continue
		}

		supported := 0
		for _, token := range tokens {
			if strings.Contains(lowerSource, token) {
				supported++
			}
		}
		if float64(supported)/float64(len(tokens)) < d.config.SupportThreshold {
			unsupported = append(unsupported, sentence)
		}
	}

	return unsupported
}

// combinedSourceText concatenates the content of the used documents.
func combinedSourceText(docs []GradedDocument) string {
	var b strings.Builder
	for _, doc := range docs {
		b.WriteString(doc.Content)
		b.WriteString(" ")
	}
	return b.String()
}

// meanScore averages the relevance scores, 0 for an empty set.
func meanScore(docs []GradedDocument) float64 {
	if len(docs) == 0 {
		return 0
	}
	sum := 0.0
	for _, doc := range docs {
		sum += doc.Score
	}
	return sum / float64(len(docs))
}
