package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cragflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultMatchesRuntimeDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 2, cfg.Pipeline.MinRelevantDocs)
	assert.Equal(t, 0.5, cfg.Pipeline.RelevanceThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := writeTempConfig(t, `
pipeline:
  max_iterations: 5
  relevance_threshold: 0.6
grader:
  concurrency: 8
log:
  level: debug
  development: true
metrics_namespace: cragflow
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 0.6, cfg.Pipeline.RelevanceThreshold)
	// untouched values keep their defaults
	assert.Equal(t, 2, cfg.Pipeline.MinRelevantDocs)
	assert.Equal(t, 8, cfg.Grader.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "cragflow", cfg.MetricsNamespace)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "pipeline:\n  max_iterations: 5\n")

	t.Setenv("CRAGFLOW_MAX_ITERATIONS", "2")
	t.Setenv("CRAGFLOW_RELEVANCE_THRESHOLD", "0.7")
	t.Setenv("CRAGFLOW_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 0.7, cfg.Pipeline.RelevanceThreshold)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero iterations", "pipeline:\n  max_iterations: 0\n"},
		{"zero min relevant docs", "pipeline:\n  min_relevant_docs: 0\n"},
		{"threshold above one", "pipeline:\n  relevance_threshold: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestToRuntimeConfigs(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxIterations = 4
	cfg.Grader.Concurrency = 1

	pipeline := cfg.ToPipelineConfig()
	assert.Equal(t, 4, pipeline.MaxIterations)
	// fields without a YAML mirror keep the runtime default
	assert.Equal(t, 0.05, pipeline.IterationPenalty)

	grader := cfg.ToGraderConfig()
	assert.Equal(t, 1, grader.Concurrency)
	assert.Equal(t, 0.7, grader.CoverageWeight)
}

func TestLexiconLoading(t *testing.T) {
	cfg := Default()

	lex, err := cfg.Lexicon()
	require.NoError(t, err)
	assert.NotEmpty(t, lex.StopWords)

	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hedge_words:\n  - allegedly\n"), 0o644))
	cfg.LexiconPath = path

	lex, err = cfg.Lexicon()
	require.NoError(t, err)
	assert.Equal(t, []string{"allegedly"}, lex.HedgeWords)
	// unset lists fall back to the defaults
	assert.NotEmpty(t, lex.StopWords)
}
