package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Embedding service (vector-convert-llm)
	EmbedServiceURL     string `envconfig:"EMBED_SERVICE_URL"`
	CallbackBaseURL     string `envconfig:"CALLBACK_BASE_URL"`
	EmbeddingProvider   string `envconfig:"EMBEDDING_PROVIDER" default:"vectorllm"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"sentence-transformers/all-distilroberta-v1"`
	EmbedTimeoutSeconds int    `envconfig:"EMBED_TIMEOUT_SECONDS" default:"30"`
	EmbedRateLimit      int    `envconfig:"EMBED_RATE_LIMIT" default:"10"`

	WorkerPollIntervalSeconds int `envconfig:"WORKER_POLL_INTERVAL_SECONDS" default:"5"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Optional raw-content archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docstore-archive"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCSTORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasEmbedService() bool {
	return c.EmbedServiceURL != ""
}

// ValidateChunkingConfig checks the settings the chunked-processing path
// depends on. Both URLs must be present; there is no production default.
func (c *Config) ValidateChunkingConfig() error {
	if c.EmbedServiceURL == "" {
		return fmt.Errorf("DOCSTORE_EMBED_SERVICE_URL is required for document processing")
	}
	if c.CallbackBaseURL == "" {
		return fmt.Errorf("DOCSTORE_CALLBACK_BASE_URL is required for document processing")
	}
	return nil
}
