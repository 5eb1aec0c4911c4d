package crag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Grade must always be the deterministic image of the score under the fixed
// threshold mapping.
func TestProperty_GradeScoreConsistency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		score := rapid.Float64Range(0, 1).Draw(rt, "score")
		grade := GradeForScore(score)

		switch {
		case score >= 0.8:
			assert.Equal(t, GradeHighlyRelevant, grade)
		case score >= 0.6:
			assert.Equal(t, GradeRelevant, grade)
		case score >= 0.4:
			assert.Equal(t, GradePartiallyRelevant, grade)
		case score >= 0.2:
			assert.Equal(t, GradeAmbiguous, grade)
		default:
			assert.Equal(t, GradeNotRelevant, grade)
		}
	})
}

// Scores stay in [0,1] for arbitrary queries and content, including empty
// strings, and the grade always matches the score.
func TestProperty_GradeScoreBounds(t *testing.T) {
	grader := NewRelevanceGrader(DefaultGraderConfig(), nil, nil)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		query := rapid.StringMatching(`[a-z ]{0,60}`).Draw(rt, "query")
		content := rapid.StringMatching(`[a-zA-Z .,]{0,200}`).Draw(rt, "content")

		graded := grader.GradeDocument(ctx, query, RawDocument{"content": content}, nil)
		require.GreaterOrEqual(t, graded.Score, 0.0)
		require.LessOrEqual(t, graded.Score, 1.0)
		require.Equal(t, GradeForScore(graded.Score), graded.Grade)
	})
}

// Heuristic grading is a pure function of its inputs.
func TestProperty_GradeDeterminism(t *testing.T) {
	grader := NewRelevanceGrader(DefaultGraderConfig(), nil, nil)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		query := rapid.StringMatching(`[a-z ]{1,60}`).Draw(rt, "query")
		content := rapid.StringMatching(`[a-z .,]{1,200}`).Draw(rt, "content")
		doc := RawDocument{"content": content, "source": "s"}

		first := grader.GradeDocument(ctx, query, doc, nil)
		second := grader.GradeDocument(ctx, query, doc, nil)
		require.Equal(t, first, second)
	})
}

// Risk levels mirror the fixed thresholds the same way grades do.
func TestProperty_RiskScoreConsistency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		score := rapid.Float64Range(0, 1).Draw(rt, "score")
		risk := RiskForScore(score)

		switch {
		case score >= 0.7:
			assert.Equal(t, RiskCritical, risk)
		case score >= 0.5:
			assert.Equal(t, RiskHigh, risk)
		case score >= 0.3:
			assert.Equal(t, RiskMedium, risk)
		default:
			assert.Equal(t, RiskLow, risk)
		}
	})
}
