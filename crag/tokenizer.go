package crag

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer counts tokens for context-budget truncation.
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenTokenizer counts tokens with a tiktoken encoding. Encoding errors
// fall back to the character estimate so truncation never fails a run.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
	logger   *zap.Logger
}

// NewTiktokenTokenizer creates a tokenizer for the given model name
// (e.g. "gpt-4o"). The encoding data may require a network download on
// first use; callers that cannot tolerate that should use
// EstimatorTokenizer instead.
func NewTiktokenTokenizer(model string, logger *zap.Logger) (*TiktokenTokenizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding for %s: %w", model, err)
	}
	return &TiktokenTokenizer{encoding: encoding, logger: logger}, nil
}

// CountTokens returns the token count of text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimatorTokenizer estimates tokens as len(text)/4, the usual rough
// average for English text. It needs no encoding data.
type EstimatorTokenizer struct{}

// CountTokens returns the estimated token count of text.
func (EstimatorTokenizer) CountTokens(text string) int {
	return len(text) / 4
}
