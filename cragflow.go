// Package cragflow provides a top-level convenience entry point for running
// corrective RAG pipelines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/cragflow"
//
//	p := cragflow.New(retriever, generator)
//	result, err := p.Run(ctx, "What is photosynthesis?")
//
// This is a thin wrapper around [crag.NewPipeline] with default
// configuration; use the crag package directly when you need to tune the
// loop, plug in model-backed collaborators, or attach metrics.
package cragflow

import (
	"go.uber.org/zap"

	"github.com/BaSui01/cragflow/crag"
)

// New creates a [crag.Pipeline] with the default configuration and purely
// heuristic grading, transformation, and hallucination checking.
func New(retriever crag.RetrieverFunc, generator crag.GeneratorFunc) *crag.Pipeline {
	return crag.NewPipeline(crag.DefaultPipelineConfig(), retriever, generator,
		nil, nil, nil, nil, nil, nil)
}

// NewWithLogger is [New] with a custom zap logger.
func NewWithLogger(retriever crag.RetrieverFunc, generator crag.GeneratorFunc, logger *zap.Logger) *crag.Pipeline {
	return crag.NewPipeline(crag.DefaultPipelineConfig(), retriever, generator,
		nil, nil, nil, nil, nil, logger)
}

// NewWithWebSearch is [New] with a live web-search fallback for queries the
// document store cannot answer.
func NewWithWebSearch(retriever crag.RetrieverFunc, generator crag.GeneratorFunc, webSearch crag.WebSearchFunc) *crag.Pipeline {
	return crag.NewPipeline(crag.DefaultPipelineConfig(), retriever, generator,
		webSearch, nil, nil, nil, nil, nil)
}
