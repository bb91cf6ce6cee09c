package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"few-shots/internal/app"
	"few-shots/internal/fewshots"
	"few-shots/internal/httputil"
	"few-shots/internal/logger"
	"few-shots/internal/queue"
	"few-shots/internal/retry"
	"few-shots/internal/store"
)

const (
	storeAttempts = 3
	storeBackoff  = 200 * time.Millisecond
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	if deps.Queue == nil {
		deps.Log.Error("worker requires a queue", "err", queue.ErrDisabled)
		os.Exit(1)
	}
	deps.Log.Info("ingest worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, deps); err != nil {
		deps.Log.Error("ingest worker stopped", "err", err)
	}
}

func run(ctx context.Context, deps app.Deps) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeAdd, taskHandler(deps, handleAdd))
	})
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeRemove, taskHandler(deps, handleRemove))
	})
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, deps.Config.Port, "worker")
	})

	return g.Wait()
}

type bodyHandler func(ctx context.Context, c *fewshots.Client, body fewshots.Body) (int, error)

// taskHandler decodes a task and applies it. Only transport failures are
// returned to the queue for redelivery; malformed tasks are logged and dropped.
func taskHandler(deps app.Deps, apply bodyHandler) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		log := deps.Log.With("task_id", task.ID, "type", task.Type, "attempt", task.Attempts)
		ctx = logger.NewContext(ctx, log)

		var body fewshots.Body
		if err := json.Unmarshal(task.Payload, &body); err != nil {
			log.Error("dropping undecodable task", "err", err)
			return nil
		}

		var count int
		err := retry.Do(ctx, storeAttempts, storeBackoff, store.IsRetryable, func(ctx context.Context) error {
			n, err := apply(ctx, deps.Client, body)
			count = n
			return err
		})
		switch {
		case err == nil:
			log.Info("task applied", "namespace", body.Namespace, "count", count)
			return nil
		case store.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			log.Error("dropping task", "err", err)
			return nil
		}
	}
}

func handleAdd(ctx context.Context, c *fewshots.Client, body fewshots.Body) (int, error) {
	req, err := body.AddRequest()
	if err != nil {
		return 0, err
	}
	ids, err := c.AddRequest(ctx, req, body.Options()...)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	logger.FromContext(ctx).Debug("shots added", "ids", ids)
	return len(ids), nil
}

func handleRemove(ctx context.Context, c *fewshots.Client, body fewshots.Body) (int, error) {
	req, err := body.RemoveRequest()
	if err != nil {
		return 0, err
	}
	if err := c.RemoveRequest(ctx, req, body.Options()...); err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	return req.Len(), nil
}
