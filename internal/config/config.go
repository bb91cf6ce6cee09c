package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration shared by the server and the worker.
type Config struct {
	// Server
	Port         int    `env:"PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	DefaultLimit int    `env:"DEFAULT_LIMIT" envDefault:"5"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"memory"` // "memory", "postgres", "qdrant" or "sqlite"
	Distance      string `env:"DISTANCE" envDefault:"cosine"`       // "cosine" or "euclidean"
	DBURL         string `env:"DB_URL"`
	PGTable       string `env:"PG_TABLE" envDefault:"few_shots"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"few-shots.db"`

	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"few_shots"`

	// Embeddings
	EmbeddingProvider   string `env:"EMBEDDING_PROVIDER" envDefault:"openai"`
	OpenAIKey           string `env:"OPENAI_API_KEY"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`

	// Embedding cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "redis" or "none"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "nats" or "none"
	QueueURL      string `env:"QUEUE_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
