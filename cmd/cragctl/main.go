// Command cragctl runs one corrective RAG query against a directory of
// plain-text documents and prints the result as JSON. It uses a keyword
// retriever and an extractive generator, so it needs no model backend;
// it exists to exercise and demonstrate the pipeline end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/cragflow/config"
	"github.com/BaSui01/cragflow/crag"
	"github.com/BaSui01/cragflow/testutil"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		docsDir    = flag.String("dir", ".", "directory of .txt/.md documents to search")
		query      = flag.String("query", "", "query to run (required)")
		topK       = flag.Int("topk", 5, "documents returned per retrieval")
	)
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: cragctl -query \"...\" [-dir docs/] [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lexicon, err := cfg.Lexicon()
	if err != nil {
		logger.Fatal("load lexicon", zap.Error(err))
	}

	corpus, err := loadCorpus(*docsDir)
	if err != nil {
		logger.Fatal("load corpus", zap.Error(err))
	}
	logger.Info("corpus loaded", zap.String("dir", *docsDir), zap.Int("documents", len(corpus)))

	retriever := testutil.NewCorpusRetriever(corpus, *topK)

	var metrics *crag.Collector
	if cfg.MetricsNamespace != "" {
		metrics = crag.NewCollector(cfg.MetricsNamespace, nil)
	}

	pipeline := crag.NewPipeline(
		cfg.ToPipelineConfig(),
		retriever.Retrieve,
		testutil.ExtractiveGenerator(4),
		nil,
		crag.NewQueryTransformer(crag.DefaultTransformerConfig(), lexicon, nil, logger),
		crag.NewRelevanceGrader(cfg.ToGraderConfig(), nil, logger),
		crag.NewHallucinationDetector(crag.DefaultDetectorConfig(), lexicon, nil, logger),
		lexicon,
		logger,
	)
	if metrics != nil {
		pipeline = pipeline.WithMetrics(metrics)
	}

	result, err := pipeline.Run(context.Background(), *query)
	if err != nil {
		logger.Fatal("pipeline run failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("encode result", zap.Error(err))
	}
	fmt.Println(string(out))
}

// buildLogger creates a zap logger per the log configuration.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// loadCorpus reads every .txt and .md file under dir into a source->content
// map, keyed by path relative to dir.
func loadCorpus(dir string) (map[string]string, error) {
	corpus := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		corpus[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents found under %s", dir)
	}
	return corpus, nil
}
