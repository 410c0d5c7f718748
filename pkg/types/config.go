// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "term-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// NormalizeConfig selects the folding rules applied to terms before they
// are compared. The same rules are used for glossary keys, index queries,
// and ledger lookups.
type NormalizeConfig struct {
	// CaseFold applies Unicode case folding.
	CaseFold bool `json:"case_fold" yaml:"case_fold" mapstructure:"case_fold"`

	// CollapseWhitespace trims and collapses runs of whitespace to one space.
	CollapseWhitespace bool `json:"collapse_whitespace" yaml:"collapse_whitespace" mapstructure:"collapse_whitespace"`

	// FoldPlural reduces the final word of a term to its singular form.
	FoldPlural bool `json:"fold_plural" yaml:"fold_plural" mapstructure:"fold_plural"`

	// FoldHyphens treats hyphens as spaces ("fine-tuning" == "fine tuning").
	FoldHyphens bool `json:"fold_hyphens" yaml:"fold_hyphens" mapstructure:"fold_hyphens"`
}

// GlossaryConfig holds settings for the Glossary Store.
type GlossaryConfig struct {
	// Dir is the directory holding glossary files (one file per domain).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// DBPath is the SQLite database file backing the store.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// EmbeddingProvider identifies the embedding backend.
type EmbeddingProvider string

const (
	ProviderHash   EmbeddingProvider = "hash"
	ProviderOllama EmbeddingProvider = "ollama"
	ProviderOpenAI EmbeddingProvider = "openai"
)

// EmbeddingConfig holds settings for the embedding backend and index build.
type EmbeddingConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider selects hash (local), ollama, or openai.
	Provider EmbeddingProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the remote embedding model name. Ignored by the hash provider.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey authenticates against remote providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Dimensions is the vector size (hash provider default 512).
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`

	// IncludeDefinition embeds "term: definition" instead of the term alone.
	IncludeDefinition bool `json:"include_definition" yaml:"include_definition" mapstructure:"include_definition"`

	// BatchSize caps the number of texts per embedding request (default 64).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// Concurrency caps parallel embedding requests during a build (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// ResolverConfig holds the Term Resolver thresholds.
type ResolverConfig struct {
	// AcceptThreshold is the minimum cosine similarity for a glossary hit (default 0.85).
	AcceptThreshold float64 `json:"accept_threshold" yaml:"accept_threshold" mapstructure:"accept_threshold"`

	// TieMargin is the similarity band within which hits are ambiguous (default 0.02).
	TieMargin float64 `json:"tie_margin" yaml:"tie_margin" mapstructure:"tie_margin"`

	// TopK is the number of index candidates considered per span (default 5).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// MaxSpanWords is the longest n-gram tried when annotating a unit (default 4).
	MaxSpanWords int `json:"max_span_words" yaml:"max_span_words" mapstructure:"max_span_words"`

	// Workers is the number of concurrent annotation workers (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// ExtractionConfig holds settings for the Extraction Engine.
type ExtractionConfig struct {
	// MinFrequency is the minimum count for multi-word candidates (default 2).
	MinFrequency int `json:"min_frequency" yaml:"min_frequency" mapstructure:"min_frequency"`

	// MinUnigramFrequency is the minimum count for single-word candidates (default 4).
	MinUnigramFrequency int `json:"min_unigram_frequency" yaml:"min_unigram_frequency" mapstructure:"min_unigram_frequency"`

	// MinUnigramLength is the minimum rune length of single-word candidates (default 4).
	MinUnigramLength int `json:"min_unigram_length" yaml:"min_unigram_length" mapstructure:"min_unigram_length"`

	// MaxNGram is the longest phrase considered (default 3).
	MaxNGram int `json:"max_ngram" yaml:"max_ngram" mapstructure:"max_ngram"`

	// MaxCandidates truncates the ranked output; zero keeps everything.
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`

	// DocumentsDir is the directory of Markdown documents for batch extraction.
	DocumentsDir string `json:"documents_dir" yaml:"documents_dir" mapstructure:"documents_dir"`

	// OutputDir receives <doc>-candidates.yaml files.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// TranslationConfig holds settings for document-translation sessions.
type TranslationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// SourceLanguage names the language of the input (default "English").
	SourceLanguage string `json:"source_language" yaml:"source_language" mapstructure:"source_language"`

	// TargetLanguage names the output language (default "Traditional Chinese").
	TargetLanguage string `json:"target_language" yaml:"target_language" mapstructure:"target_language"`

	// Domains is the active domain set; empty means every domain.
	Domains []string `json:"domains" yaml:"domains" mapstructure:"domains"`

	// SessionTimeout bounds a whole document; zero means no limit.
	SessionTimeout time.Duration `json:"session_timeout" yaml:"session_timeout" mapstructure:"session_timeout"`

	// SynthesizeTerms translates extracted candidates that have no glossary
	// match before the document is translated.
	SynthesizeTerms bool `json:"synthesize_terms" yaml:"synthesize_terms" mapstructure:"synthesize_terms"`

	// OutputDir receives translated documents.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// Config groups all stage configurations.
type Config struct {
	Normalize   NormalizeConfig   `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	Glossary    GlossaryConfig    `json:"glossary" yaml:"glossary" mapstructure:"glossary"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Resolver    ResolverConfig    `json:"resolver" yaml:"resolver" mapstructure:"resolver"`
	Extraction  ExtractionConfig  `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Translation TranslationConfig `json:"translation" yaml:"translation" mapstructure:"translation"`
}

// DefaultConfig returns the configuration used when no file or flag overrides a value.
func DefaultConfig() Config {
	return Config{
		Normalize: NormalizeConfig{
			CaseFold:           true,
			CollapseWhitespace: true,
			FoldPlural:         true,
		},
		Glossary: GlossaryConfig{
			Dir:    "glossary",
			DBPath: "glossary/index/glossary.db",
		},
		Embedding: EmbeddingConfig{
			HTTPConfig:  HTTPConfig{Timeout: 60 * time.Second, UserAgent: "term-engine/0.1"},
			Provider:    ProviderHash,
			Dimensions:  512,
			BatchSize:   64,
			Concurrency: 4,
		},
		Resolver: ResolverConfig{
			AcceptThreshold: 0.85,
			TieMargin:       0.02,
			TopK:            5,
			MaxSpanWords:    4,
			Workers:         4,
		},
		Extraction: ExtractionConfig{
			MinFrequency:        2,
			MinUnigramFrequency: 4,
			MinUnigramLength:    4,
			MaxNGram:            3,
			DocumentsDir:        "documents",
			OutputDir:           "terms",
		},
		Translation: TranslationConfig{
			AIConfig: AIConfig{
				HTTPConfig: HTTPConfig{Timeout: 120 * time.Second, UserAgent: "term-engine/0.1"},
				Model:      "claude-sonnet-4-5-20250929",
				MaxRetries: 3,
			},
			SourceLanguage: "English",
			TargetLanguage: "Traditional Chinese",
			OutputDir:      "translations",
		},
	}
}

// WithDefaults fills zero-valued numeric settings from DefaultConfig. Boolean
// settings are left as given.
func (c ResolverConfig) WithDefaults() ResolverConfig {
	d := DefaultConfig().Resolver
	if c.AcceptThreshold <= 0 {
		c.AcceptThreshold = d.AcceptThreshold
	}
	if c.TieMargin <= 0 {
		c.TieMargin = d.TieMargin
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.MaxSpanWords <= 0 {
		c.MaxSpanWords = d.MaxSpanWords
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// WithDefaults fills zero-valued numeric settings from DefaultConfig.
func (c ExtractionConfig) WithDefaults() ExtractionConfig {
	d := DefaultConfig().Extraction
	if c.MinFrequency <= 0 {
		c.MinFrequency = d.MinFrequency
	}
	if c.MinUnigramFrequency <= 0 {
		c.MinUnigramFrequency = d.MinUnigramFrequency
	}
	if c.MinUnigramLength <= 0 {
		c.MinUnigramLength = d.MinUnigramLength
	}
	if c.MaxNGram <= 0 {
		c.MaxNGram = d.MaxNGram
	}
	return c
}
