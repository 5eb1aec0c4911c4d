/*
Package crag implements a Corrective Retrieval-Augmented Generation (CRAG)
pipeline: retrieval results are graded for relevance, weak retrievals are
actively repaired (reformulation, decomposition, expansion, web fallback)
before an answer is generated, and the generated answer is audited for
unsupported claims.

# Core types

  - Pipeline — the orchestrator: bounded retrieve→grade→correct loop,
    document selection, generation, and post-hoc answer audit
  - QueryTransformer — query analysis, reformulation, decomposition, expansion
  - RelevanceGrader — lexical (optionally model-blended) relevance scoring
    with a fixed score→grade mapping
  - HallucinationDetector — risk scoring of a generated answer against the
    documents actually used

# Collaborators

The pipeline calls into injected collaborators and owns none of them:
RetrieverFunc and GeneratorFunc are required, WebSearchFunc is optional, and
the three model-backed collaborators (RelevanceScorer, Reformulator,
AnswerAuditor) are optional single-method interfaces. When a model-backed
collaborator is absent or fails, the component degrades to its built-in
heuristic; retriever and generator errors propagate to the caller.

All components are stateless apart from configuration and may be shared
across concurrent Run invocations.
*/
package crag
