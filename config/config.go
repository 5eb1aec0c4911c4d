// Package config provides unified configuration loading for cragflow:
// defaults, then YAML file, then environment variable overrides with the
// CRAGFLOW_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/cragflow/crag"
)

// Config is the complete cragflow configuration.
type Config struct {
	// Pipeline controls the corrective retrieval loop.
	Pipeline PipelineConfig `yaml:"pipeline"`
	// Grader controls relevance scoring.
	Grader GraderConfig `yaml:"grader"`
	// LexiconPath points to a YAML lexicon override. Empty uses the
	// built-in English/Turkish lexicon.
	LexiconPath string `yaml:"lexicon_path"`
	// Log controls logging.
	Log LogConfig `yaml:"log"`
	// MetricsNamespace is the Prometheus namespace; empty disables metrics.
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// PipelineConfig mirrors crag.PipelineConfig with YAML tags.
type PipelineConfig struct {
	MaxIterations      int     `yaml:"max_iterations"`
	MinRelevantDocs    int     `yaml:"min_relevant_docs"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	MinSelectionScore  float64 `yaml:"min_selection_score"`
	MaxSelectedDocs    int     `yaml:"max_selected_docs"`
	MaxContextTokens   int     `yaml:"max_context_tokens"`
}

// GraderConfig mirrors crag.GraderConfig with YAML tags.
type GraderConfig struct {
	Concurrency       int `yaml:"concurrency"`
	ModelContentLimit int `yaml:"model_content_limit"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is a zap level string: debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Default returns the default configuration.
func Default() *Config {
	pipeline := crag.DefaultPipelineConfig()
	grader := crag.DefaultGraderConfig()
	return &Config{
		Pipeline: PipelineConfig{
			MaxIterations:      pipeline.MaxIterations,
			MinRelevantDocs:    pipeline.MinRelevantDocs,
			RelevanceThreshold: pipeline.RelevanceThreshold,
			MinSelectionScore:  pipeline.MinSelectionScore,
			MaxSelectedDocs:    pipeline.MaxSelectedDocs,
			MaxContextTokens:   pipeline.MaxContextTokens,
		},
		Grader: GraderConfig{
			Concurrency:       grader.Concurrency,
			ModelContentLimit: grader.ModelContentLimit,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, overlaid by the YAML file at
// path (skipped when path is empty), overlaid by environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides scalar settings from CRAGFLOW_* variables.
func (c *Config) applyEnv() {
	envInt("CRAGFLOW_MAX_ITERATIONS", &c.Pipeline.MaxIterations)
	envInt("CRAGFLOW_MIN_RELEVANT_DOCS", &c.Pipeline.MinRelevantDocs)
	envFloat("CRAGFLOW_RELEVANCE_THRESHOLD", &c.Pipeline.RelevanceThreshold)
	envInt("CRAGFLOW_MAX_CONTEXT_TOKENS", &c.Pipeline.MaxContextTokens)
	envStr("CRAGFLOW_LEXICON_PATH", &c.LexiconPath)
	envStr("CRAGFLOW_LOG_LEVEL", &c.Log.Level)
	envStr("CRAGFLOW_METRICS_NAMESPACE", &c.MetricsNamespace)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("pipeline.max_iterations must be >= 1, got %d", c.Pipeline.MaxIterations)
	}
	if c.Pipeline.MinRelevantDocs < 1 {
		return fmt.Errorf("pipeline.min_relevant_docs must be >= 1, got %d", c.Pipeline.MinRelevantDocs)
	}
	if c.Pipeline.RelevanceThreshold < 0 || c.Pipeline.RelevanceThreshold > 1 {
		return fmt.Errorf("pipeline.relevance_threshold must be in [0,1], got %v", c.Pipeline.RelevanceThreshold)
	}
	return nil
}

// ToPipelineConfig converts to the crag runtime configuration.
func (c *Config) ToPipelineConfig() crag.PipelineConfig {
	out := crag.DefaultPipelineConfig()
	out.MaxIterations = c.Pipeline.MaxIterations
	out.MinRelevantDocs = c.Pipeline.MinRelevantDocs
	out.RelevanceThreshold = c.Pipeline.RelevanceThreshold
	out.MinSelectionScore = c.Pipeline.MinSelectionScore
	out.MaxSelectedDocs = c.Pipeline.MaxSelectedDocs
	out.MaxContextTokens = c.Pipeline.MaxContextTokens
	return out
}

// ToGraderConfig converts to the crag runtime configuration.
func (c *Config) ToGraderConfig() crag.GraderConfig {
	out := crag.DefaultGraderConfig()
	out.Concurrency = c.Grader.Concurrency
	out.ModelContentLimit = c.Grader.ModelContentLimit
	return out
}

// Lexicon loads the configured lexicon, or the default when no path is set.
func (c *Config) Lexicon() (*crag.Lexicon, error) {
	if c.LexiconPath == "" {
		return crag.DefaultLexicon(), nil
	}
	return crag.LoadLexicon(c.LexiconPath)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
