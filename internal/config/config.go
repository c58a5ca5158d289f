package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/dgallion1/vecingest/internal/chunker"
	"github.com/dgallion1/vecingest/internal/embed"
	"github.com/dgallion1/vecingest/internal/ledger"
	"github.com/dgallion1/vecingest/internal/store/pinecone"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendBadger   = "badger"
	BackendPinecone = "pinecone"
	BackendPgvector = "pgvector"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Chunking
	ChunkMaxTokens    int    `mapstructure:"chunk_max_tokens"`
	ChunkOverlap      int    `mapstructure:"chunk_overlap"`
	TokenizerEncoding string `mapstructure:"tokenizer_encoding"`

	// Embedding
	EmbedProvider  string        `mapstructure:"embed_provider"`
	EmbedModel     string        `mapstructure:"embed_model"`
	EmbedDimension int           `mapstructure:"embed_dimension"`
	EmbedBaseURL   string        `mapstructure:"embed_base_url"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout"`
	OpenAIAPIKey   string        `mapstructure:"openai_api_key"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`

	// Vector store
	StoreBackend      string `mapstructure:"store_backend"`
	PineconeAPIKey    string `mapstructure:"pinecone_api_key"`
	PineconeIndexName string `mapstructure:"pinecone_index_name"`
	PineconeHost      string `mapstructure:"pinecone_host"`
	PineconeNamespace string `mapstructure:"pinecone_namespace"`
	PineconeCloud     string `mapstructure:"pinecone_cloud"`
	PineconeRegion    string `mapstructure:"pinecone_region"`
	DatabaseURL       string `mapstructure:"database_url"`
	PgvectorTable     string `mapstructure:"pgvector_table"`
	BadgerPath        string `mapstructure:"badger_path"`

	// Pipeline
	LedgerPath           string        `mapstructure:"ledger_path"`
	Concurrency          int           `mapstructure:"concurrency"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	StageTimeout         time.Duration `mapstructure:"stage_timeout"`
	PDFFallbackPdftotext bool          `mapstructure:"pdf_fallback_pdftotext"`

	// Serve mode
	Port           string        `mapstructure:"port"`
	APIKey         string        `mapstructure:"vecingest_api_key"`
	SpoolDir       string        `mapstructure:"spool_dir"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	WorkerCount    int           `mapstructure:"worker_count"`
	MaxQueueSize   int           `mapstructure:"max_queue_size"`
	JobTTL         time.Duration `mapstructure:"job_ttl"`
}

var defaults = map[string]any{
	"chunk_max_tokens":   500,
	"chunk_overlap":      50,
	"tokenizer_encoding": chunker.DefaultEncoding,

	"embed_provider":  embed.ProviderOpenAI,
	"embed_model":     "",
	"embed_dimension": embed.DefaultDimension,
	"embed_base_url":  "",
	"embed_timeout":   60 * time.Second,
	"openai_api_key":  "",
	"gemini_api_key":  "",

	"store_backend":       BackendBadger,
	"pinecone_api_key":    "",
	"pinecone_index_name": "",
	"pinecone_host":       "",
	"pinecone_namespace":  "",
	"pinecone_cloud":      "aws",
	"pinecone_region":     "us-east-1",
	"database_url":        "",
	"pgvector_table":      "chunks",
	"badger_path":         "vecingest.badger",

	"ledger_path":            ledger.DefaultPath,
	"concurrency":            1,
	"max_retries":            3,
	"retry_base_delay":       time.Second,
	"stage_timeout":          2 * time.Minute,
	"pdf_fallback_pdftotext": true,

	"port":              "8090",
	"vecingest_api_key": "",
	"spool_dir":         "spool",
	"max_upload_bytes":  int64(52428800), // 50MB
	"worker_count":      4,
	"max_queue_size":    100,
	"job_ttl":           time.Hour,
}

// Load reads .env, the environment and an optional config file (YAML, JSON
// or TOML by extension). Environment variables win over the file. A missing
// .env is ignored; a malformed one is an error.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.EmbedProvider = strings.ToLower(strings.TrimSpace(cfg.EmbedProvider))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, nil
}

// Validate checks the settings the ingest path needs.
func (c Config) Validate() error {
	if err := c.ChunkConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.EmbedDimension <= 0 {
		return fmt.Errorf("%w: EMBED_DIMENSION must be positive", ErrInvalid)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: CONCURRENCY must be at least 1", ErrInvalid)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: MAX_RETRIES must be at least 1", ErrInvalid)
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("%w: LEDGER_PATH is required", ErrInvalid)
	}

	switch c.EmbedProvider {
	case embed.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalid)
		}
	case embed.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown EMBED_PROVIDER %q", ErrInvalid, c.EmbedProvider)
	}

	return c.ValidateStore()
}

// ValidateStore checks only the vector store settings.
func (c Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("%w: BADGER_PATH is required", ErrInvalid)
		}
	case BackendPinecone:
		if c.PineconeAPIKey == "" {
			return fmt.Errorf("%w: PINECONE_API_KEY is required", ErrInvalid)
		}
		if c.PineconeIndexName == "" && c.PineconeHost == "" {
			return fmt.Errorf("%w: PINECONE_INDEX_NAME or PINECONE_HOST is required", ErrInvalid)
		}
	case BackendPgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrInvalid, c.StoreBackend)
	}
	return nil
}

// ValidateServe adds the checks serve mode needs on top of Validate.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: VECINGEST_API_KEY is required", ErrInvalid)
	}
	if c.SpoolDir == "" {
		return fmt.Errorf("%w: SPOOL_DIR is required", ErrInvalid)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrInvalid)
	}
	return nil
}

func (c Config) ChunkConfig() chunker.Config {
	return chunker.Config{MaxTokens: c.ChunkMaxTokens, Overlap: c.ChunkOverlap}
}

func (c Config) EmbedConfig() embed.Config {
	key := c.OpenAIAPIKey
	if c.EmbedProvider == embed.ProviderGemini {
		key = c.GeminiAPIKey
	}
	return embed.Config{
		Provider:  c.EmbedProvider,
		Model:     c.EmbedModel,
		Dimension: c.EmbedDimension,
		BaseURL:   c.EmbedBaseURL,
		APIKey:    key,
		Timeout:   c.EmbedTimeout,
	}
}

func (c Config) PineconeConfig() pinecone.Config {
	return pinecone.Config{
		APIKey:    c.PineconeAPIKey,
		IndexName: c.PineconeIndexName,
		Host:      c.PineconeHost,
		Namespace: c.PineconeNamespace,
		Cloud:     c.PineconeCloud,
		Region:    c.PineconeRegion,
		Timeout:   c.StageTimeout,
	}
}
