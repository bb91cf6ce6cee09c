package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"few-shots/internal/cache"
	"few-shots/internal/config"
	"few-shots/internal/embeddings"
	"few-shots/internal/fewshots"
	"few-shots/internal/logger"
	"few-shots/internal/queue"
	"few-shots/internal/store"
)

const setupTimeout = 30 * time.Second

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Store    store.Store
	Embedder embeddings.Embedder
	Cache    cache.Cache
	// Queue is nil when QUEUE_PROVIDER=none.
	Queue  queue.Queue
	Client *fewshots.Client

	closers []io.Closer
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return BuildFrom(cfg, logger.New(cfg.LogLevel))
}

// BuildFrom wires every component described by cfg.
func BuildFrom(cfg config.Config, log *slog.Logger) (Deps, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	deps := Deps{Config: cfg, Log: log}

	st, err := buildStore(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	deps.Store = st
	deps.track(st)

	c, err := buildCache(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.Cache = c
	deps.track(c)

	embedder, err := buildEmbedder(cfg, c, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	deps.Embedder = embedder

	q, nc, err := buildQueue(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps.Queue = q
	if nc != nil {
		deps.closers = append(deps.closers, closerFunc(func() error { return nc.Drain() }))
	}

	deps.Client = fewshots.New(embedder, st,
		fewshots.WithLogger(log),
		fewshots.WithDefaultLimit(cfg.DefaultLimit),
	)
	return deps, nil
}

// Close releases connections held by the store, cache and queue.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Deps) track(v any) {
	if c, ok := v.(io.Closer); ok {
		d.closers = append(d.closers, c)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "memory":
		distance, err := store.DistanceByName(cfg.Distance)
		if err != nil {
			return nil, err
		}
		log.Info("using in-memory store", "distance", cfg.Distance)
		return store.Synchronized(store.NewMemory(store.WithDistance(distance))), nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(ctx, cfg.DBURL, store.PostgresOptions{
			Table:      cfg.PGTable,
			Dimensions: cfg.EmbeddingDimensions,
			Distance:   cfg.Distance,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store", "table", cfg.PGTable)
		return db, nil
	case "qdrant":
		q, err := store.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.Distance)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant: %w", err)
		}
		if err := q.Setup(ctx, cfg.EmbeddingDimensions); err != nil {
			q.Close()
			return nil, fmt.Errorf("failed to set up Qdrant collection: %w", err)
		}
		log.Info("using Qdrant store", "host", cfg.QdrantHost, "collection", cfg.QdrantCollection)
		return q, nil
	case "sqlite":
		distance, err := store.DistanceByName(cfg.Distance)
		if err != nil {
			return nil, err
		}
		db, err := store.NewSQLite(cfg.SQLitePath, distance)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		log.Info("using SQLite store", "path", cfg.SQLitePath)
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: memory, postgres, qdrant, sqlite)", cfg.StoreProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis embedding cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return c, nil
	case "none", "":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, none)", cfg.CacheProvider)
	}
}

func buildEmbedder(cfg config.Config, c cache.Cache, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
		if _, noop := c.(*cache.NoOpCache); noop {
			return embedder, nil
		}
		return embeddings.NewCachedEmbedder(embedder, c, cfg.EmbeddingModel, cfg.CacheTTL, log), nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid option: openai)", cfg.EmbeddingProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, *nats.Conn, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nc, nil
	case "none", "":
		log.Info("queue disabled")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: nats, none)", cfg.QueueProvider)
	}
}
