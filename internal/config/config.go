package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Vector store backends.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Allowed ranges for the tunable retrieval and chunking settings.
const (
	MinTopK        = 1
	MaxTopK        = 20
	MinChunkSize   = 200
	MaxChunkSize   = 2000
	MinOverlap     = 0
	MaxOverlap     = 600
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// Config holds all configuration for the application.
type Config struct {
	LLMProvider        string
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbedRateLimit     float64

	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Temperature  float64

	UploadDir string
	DBPath    string

	VectorBackend string
	ChromemPath   string
	QdrantURL     string
	Collection    string
	VectorSize    int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
	FAQPath   string
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	llmBaseURL := getEnv("LLM_BASE_URL", "http://localhost:11434")

	cfg := &Config{
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama)),
		LLMBaseURL:         llmBaseURL,
		LLMModelName:       getEnv("LLM_MODEL", "llama3.1"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", llmBaseURL),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		UploadDir:          getEnv("UPLOAD_DIR", "./data/uploads"),
		DBPath:             getEnv("DB_PATH", "./data/pdfrag.db"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", BackendChromem)),
		ChromemPath:        os.Getenv("CHROMEM_PATH"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		Collection:         getEnv("COLLECTION", "pdf_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		FAQPath:            os.Getenv("FAQ_PATH"),
	}
	if _, ok := os.LookupEnv("CHROMEM_PATH"); !ok {
		cfg.ChromemPath = "./data/chromem"
	}

	if cfg.TopK, err = getInt("TOP_K", 6); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", 800); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getInt("CHUNK_OVERLAP", 120); err != nil {
		return nil, err
	}
	if cfg.VectorSize, err = getInt("VECTOR_SIZE", 768); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getFloat("TEMPERATURE", 0.2); err != nil {
		return nil, err
	}
	if cfg.EmbedRateLimit, err = getFloat("EMBED_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.UploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that every setting is within its allowed range.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.LLMProvider)
	}
	switch c.VectorBackend {
	case BackendChromem, BackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendChromem, BackendQdrant, c.VectorBackend)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.TopK < MinTopK || c.TopK > MaxTopK {
		return fmt.Errorf("TOP_K must be between %d and %d", MinTopK, MaxTopK)
	}
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("CHUNK_SIZE must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	if c.ChunkOverlap < MinOverlap || c.ChunkOverlap > MaxOverlap {
		return fmt.Errorf("CHUNK_OVERLAP must be between %d and %d", MinOverlap, MaxOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("TEMPERATURE must be between %.1f and %.1f", MinTemperature, MaxTemperature)
	}
	if c.EmbedRateLimit < 0 {
		return fmt.Errorf("EMBED_RATE_LIMIT must not be negative")
	}
	if c.VectorBackend == BackendQdrant && c.VectorSize <= 0 {
		return fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("COLLECTION is required")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	return level, nil
}
