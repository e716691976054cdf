package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RetrievalConfig holds the tunable knobs of the ingestion and retrieval
// pipeline. Threshold and top-K appear in several call sites historically
// with drifting literals; they are centralized here on purpose.
type RetrievalConfig struct {
	ChunkSize           int     `mapstructure:"chunkSize"`
	ChunkOverlap        int     `mapstructure:"chunkOverlap"`
	MinChunkLength      int     `mapstructure:"minChunkLength"`
	MaxChunksPerDoc     int     `mapstructure:"maxChunksPerDoc"`
	EmbeddingModel      string  `mapstructure:"embeddingModel"`
	EmbeddingDimensions int     `mapstructure:"embeddingDimensions"`
	EmbeddingBatchSize  int     `mapstructure:"embeddingBatchSize"`
	CompletionModel     string  `mapstructure:"completionModel"`
	ExtractionModel     string  `mapstructure:"extractionModel"`
	SimilarityThreshold float64 `mapstructure:"similarityThreshold"`
	TopK                int     `mapstructure:"topK"`
	MaxExtractionChars  int     `mapstructure:"maxExtractionChars"`
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		MinChunkLength:      50,
		MaxChunksPerDoc:     200,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		EmbeddingBatchSize:  20,
		CompletionModel:     "gpt-4o",
		ExtractionModel:     "gpt-4o-mini",
		SimilarityThreshold: 0.5,
		TopK:                5,
		MaxExtractionChars:  50000,
	}
}

// RetrievalConfigHolder serves the current retrieval config and hot-reloads
// it when the underlying file changes.
type RetrievalConfigHolder struct {
	current atomic.Value // holds RetrievalConfig
}

func NewRetrievalConfigHolder() (*RetrievalConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("retrieval")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/velocibid")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VELOCIBID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRetrievalConfig()
	v.SetDefault("retrieval", defaults)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg RetrievalConfig
	if err := v.UnmarshalKey("retrieval", &cfg); err != nil {
		return nil, err
	}
	applyRetrievalDefaults(&cfg, defaults)
	if err := validateRetrievalConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RetrievalConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RetrievalConfig
		if err := v.UnmarshalKey("retrieval", &updated); err != nil {
			log.Printf("[retrieval-config] reload failed: %v", err)
			return
		}
		applyRetrievalDefaults(&updated, defaults)
		if err := validateRetrievalConfig(updated); err != nil {
			log.Printf("[retrieval-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[retrieval-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RetrievalConfigHolder) Get() RetrievalConfig {
	return h.current.Load().(RetrievalConfig)
}

// NewStaticRetrievalConfigHolder returns a holder without file watching,
// used by tests.
func NewStaticRetrievalConfigHolder(cfg RetrievalConfig) *RetrievalConfigHolder {
	holder := &RetrievalConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func applyRetrievalDefaults(cfg *RetrievalConfig, defaults RetrievalConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = defaults.ChunkOverlap
	}
	if cfg.MinChunkLength == 0 {
		cfg.MinChunkLength = defaults.MinChunkLength
	}
	if cfg.MaxChunksPerDoc == 0 {
		cfg.MaxChunksPerDoc = defaults.MaxChunksPerDoc
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaults.EmbeddingModel
	}
	if cfg.EmbeddingDimensions == 0 {
		cfg.EmbeddingDimensions = defaults.EmbeddingDimensions
	}
	if cfg.EmbeddingBatchSize == 0 {
		cfg.EmbeddingBatchSize = defaults.EmbeddingBatchSize
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = defaults.CompletionModel
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = defaults.ExtractionModel
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if cfg.TopK == 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MaxExtractionChars == 0 {
		cfg.MaxExtractionChars = defaults.MaxExtractionChars
	}
}

func validateRetrievalConfig(cfg RetrievalConfig) error {
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return errors.New("retrieval.chunkOverlap must be smaller than retrieval.chunkSize")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return errors.New("retrieval.similarityThreshold must be within [0,1]")
	}
	if cfg.TopK <= 0 {
		return errors.New("retrieval.topK must be positive")
	}
	if cfg.EmbeddingDimensions <= 0 {
		return errors.New("retrieval.embeddingDimensions must be positive")
	}
	return nil
}
