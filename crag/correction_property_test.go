package crag

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_CorrectionDecision(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	queryTypes := []QueryType{QueryFactual, QueryAnalytical, QueryComparative, QueryAdvisory}

	genInput := gopter.CombineGens(
		gen.IntRange(0, 10),  // relevantCount
		gen.IntRange(1, 8),   // iteration
		gen.IntRange(1, 8),   // maxIterations
		gen.IntRange(1, 5),   // minRelevantDocs
		gen.IntRange(0, 3),   // query type index
		gen.Bool(),           // isPersonal
		gen.Bool(),           // webSearchable
	).Map(func(values []interface{}) correctionInput {
		return correctionInput{
			relevantCount:   values[0].(int),
			iteration:       values[1].(int),
			maxIterations:   values[2].(int),
			minRelevantDocs: values[3].(int),
			analysis:        &QueryAnalysis{Type: queryTypes[values[4].(int)]},
			isPersonal:      values[5].(bool),
			webSearchable:   values[6].(bool),
		}
	})

	properties.Property("exactly one defined action per input", prop.ForAll(
		func(in correctionInput) bool {
			switch decideCorrection(in) {
			case ActionNone, ActionReformulate, ActionDecompose, ActionExpand,
				ActionWebSearch, ActionUseGeneralKnowledge, ActionGiveUp:
				return true
			}
			return false
		},
		genInput,
	))

	properties.Property("enough relevant docs always stops correction", prop.ForAll(
		func(in correctionInput) bool {
			if in.relevantCount < in.minRelevantDocs {
				in.relevantCount = in.minRelevantDocs
			}
			return decideCorrection(in) == ActionNone
		},
		genInput,
	))

	properties.Property("exhausted budget never yields a retrieval action", prop.ForAll(
		func(in correctionInput) bool {
			if in.iteration < in.maxIterations {
				in.iteration = in.maxIterations
			}
			in.relevantCount = 0
			action := decideCorrection(in)
			if in.isPersonal {
				return action == ActionGiveUp
			}
			return action == ActionUseGeneralKnowledge
		},
		genInput,
	))

	properties.Property("decompose only triggers for comparative queries", prop.ForAll(
		func(in correctionInput) bool {
			if decideCorrection(in) != ActionDecompose {
				return true
			}
			return in.analysis.Type == QueryComparative && in.iteration == 2
		},
		genInput,
	))

	properties.Property("web search never fires when unavailable", prop.ForAll(
		func(in correctionInput) bool {
			in.webSearchable = false
			return decideCorrection(in) != ActionWebSearch
		},
		genInput,
	))

	properties.TestingRun(t)
}
