package crag

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the word lists used by the heuristic components. The mapping
// from "query mentions personal data" to give_up vs use_general_knowledge is
// a deployment policy, so the lists are configurable rather than fixed
// constants. DefaultLexicon carries mixed English/Turkish terms.
type Lexicon struct {
	StopWords          []string `yaml:"stop_words" json:"stop_words"`
	FactualMarkers     []string `yaml:"factual_markers" json:"factual_markers"`
	AnalyticalMarkers  []string `yaml:"analytical_markers" json:"analytical_markers"`
	ComparativeMarkers []string `yaml:"comparative_markers" json:"comparative_markers"`
	AdvisoryMarkers    []string `yaml:"advisory_markers" json:"advisory_markers"`
	Conjunctions       []string `yaml:"conjunctions" json:"conjunctions"`
	HedgeWords         []string `yaml:"hedge_words" json:"hedge_words"`
	PersonalIndicators []string `yaml:"personal_indicators" json:"personal_indicators"`
}

// DefaultLexicon returns the built-in English/Turkish lexicon.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		StopWords: []string{
			"a", "an", "the", "is", "are", "was", "were", "be", "been",
			"have", "has", "had", "do", "does", "did", "will", "would",
			"could", "should", "can", "may", "might", "must",
			"i", "you", "he", "she", "it", "we", "they",
			"what", "which", "who", "whom", "this", "that", "these", "those",
			"to", "of", "in", "for", "on", "with", "at", "by", "from",
			"and", "or", "but", "if", "then", "how", "why", "when", "where",
			"about", "please", "tell", "me", "my",
			"bir", "bu", "şu", "ve", "veya", "ile", "için", "gibi",
			"ne", "nedir", "mi", "mı", "mu", "mü", "da", "de",
		},
		FactualMarkers: []string{
			"what", "who", "when", "where", "which", "define", "definition",
			"ne", "nedir", "kim", "kimdir", "nerede", "ne zaman", "hangi",
		},
		AnalyticalMarkers: []string{
			"why", "how", "explain", "analyze", "analysis", "cause", "effect",
			"neden", "niçin", "nasıl", "açıkla", "analiz",
		},
		ComparativeMarkers: []string{
			"compare", "comparison", "versus", "vs", "difference", "better",
			"worse", "karşılaştır", "fark", "farkı", "hangisi", "daha iyi",
		},
		AdvisoryMarkers: []string{
			"should", "recommend", "recommendation", "advice", "suggest",
			"best way", "öner", "öneri", "tavsiye", "en iyi",
		},
		Conjunctions: []string{
			"and", "or", "as well as", "ve", "veya", "ile", "ayrıca",
		},
		HedgeWords: []string{
			"might", "possibly", "perhaps", "seems", "appears", "likely",
			"maybe", "belki", "muhtemelen", "olabilir", "galiba", "sanırım",
		},
		PersonalIndicators: []string{
			"my files", "my documents", "my notes", "my data", "uploaded",
			"i uploaded", "benim dosya", "dosyalarım", "notlarım",
			"belgelerim", "yüklediğim", "yüklediklerim",
		},
	}
}

// LoadLexicon reads a Lexicon from a YAML file. Empty lists fall back to the
// defaults so a deployment can override only the lists it cares about.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}

	lex := &Lexicon{}
	if err := yaml.Unmarshal(data, lex); err != nil {
		return nil, fmt.Errorf("parse lexicon file: %w", err)
	}

	def := DefaultLexicon()
	if len(lex.StopWords) == 0 {
		lex.StopWords = def.StopWords
	}
	if len(lex.FactualMarkers) == 0 {
		lex.FactualMarkers = def.FactualMarkers
	}
	if len(lex.AnalyticalMarkers) == 0 {
		lex.AnalyticalMarkers = def.AnalyticalMarkers
	}
	if len(lex.ComparativeMarkers) == 0 {
		lex.ComparativeMarkers = def.ComparativeMarkers
	}
	if len(lex.AdvisoryMarkers) == 0 {
		lex.AdvisoryMarkers = def.AdvisoryMarkers
	}
	if len(lex.Conjunctions) == 0 {
		lex.Conjunctions = def.Conjunctions
	}
	if len(lex.HedgeWords) == 0 {
		lex.HedgeWords = def.HedgeWords
	}
	if len(lex.PersonalIndicators) == 0 {
		lex.PersonalIndicators = def.PersonalIndicators
	}

	return lex, nil
}

// wordSet builds a lowercase membership set from a word list.
func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}
