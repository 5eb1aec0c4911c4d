package crag

import "strings"

// correctionInput is the state the decision table operates on: the outcome
// of the current iteration plus the run-scoped analysis. Keeping the table a
// pure function of this input keeps it testable apart from the retrieval and
// generation side effects.
type correctionInput struct {
	relevantCount   int
	iteration       int
	maxIterations   int
	minRelevantDocs int
	analysis        *QueryAnalysis
	isPersonal      bool
	webSearchable   bool
}

// decideCorrection chooses exactly one correction action for an iteration.
//
// The schedule escalates: reformulate first, then decompose (comparative
// queries) or expand, then web search when available. Once the iteration
// budget is exhausted, queries about the caller's own data give up rather
// than answering from general knowledge.
func decideCorrection(in correctionInput) CorrectionAction {
	if in.relevantCount >= in.minRelevantDocs {
		return ActionNone
	}

	exhausted := ActionUseGeneralKnowledge
	if in.isPersonal {
		exhausted = ActionGiveUp
	}

	switch {
	case in.iteration >= in.maxIterations:
		return exhausted
	case in.iteration == 1:
		return ActionReformulate
	case in.iteration == 2:
		if in.analysis != nil && in.analysis.Type == QueryComparative {
			return ActionDecompose
		}
		return ActionExpand
	case in.webSearchable:
		return ActionWebSearch
	default:
		return exhausted
	}
}

// isPersonalQuery reports whether the query mentions the caller's own
// uploaded data, per the lexicon's personal-data indicators.
func isPersonalQuery(query string, lexicon *Lexicon) bool {
	lower := strings.ToLower(query)
	for _, indicator := range lexicon.PersonalIndicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}
