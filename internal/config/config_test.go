package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "STORE_PROVIDER", "DISTANCE", "EMBEDDING_MODEL",
		"EMBEDDING_DIMENSIONS", "CACHE_PROVIDER", "CACHE_TTL", "QUEUE_PROVIDER", "DEFAULT_LIMIT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"StoreProvider", cfg.StoreProvider, "memory"},
		{"Distance", cfg.Distance, "cosine"},
		{"EmbeddingModel", cfg.EmbeddingModel, "text-embedding-3-small"},
		{"EmbeddingDimensions", cfg.EmbeddingDimensions, 1536},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"CacheTTL", cfg.CacheTTL, 24 * time.Hour},
		{"QueueProvider", cfg.QueueProvider, "none"},
		{"DefaultLimit", cfg.DefaultLimit, 5},
		{"QdrantPort", cfg.QdrantPort, 6334},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_PROVIDER", "qdrant")
	t.Setenv("CACHE_TTL", "90m")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.StoreProvider != "qdrant" {
		t.Errorf("expected store provider 'qdrant', got %s", cfg.StoreProvider)
	}
	if cfg.CacheTTL != 90*time.Minute {
		t.Errorf("expected cache ttl 90m, got %s", cfg.CacheTTL)
	}
}
