package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"few-shots/internal/app"
	"few-shots/internal/fewshots"
	"few-shots/internal/httputil"
	"few-shots/internal/prompt"
	"few-shots/internal/queue"
	"few-shots/internal/shot"
)

type searchRequest struct {
	Namespace string `json:"namespace"`
	Inputs    any    `json:"inputs" validate:"required"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type lookupRequest struct {
	Namespace string   `json:"namespace"`
	Inputs    any      `json:"inputs" validate:"required_without=IDs"`
	IDs       []string `json:"ids" validate:"omitempty,dive,required"`
	ID        string   `json:"id"`
}

type promptRequest struct {
	Namespace string `json:"namespace"`
	Inputs    any    `json:"inputs" validate:"required"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=100"`
	System    string `json:"system"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("server listening", "addr", srv.Addr, "store", deps.Config.StoreProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("server stopped", "err", err)
	}
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/shots", addHandler(deps))
	r.Post("/api/shots/remove", removeHandler(deps))
	r.Post("/api/shots/search", searchHandler(deps))
	r.Post("/api/shots/lookup", lookupHandler(deps))
	r.Post("/api/prompt", promptHandler(deps))
	r.Delete("/api/namespaces/{namespace}", clearHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	return r
}

func addHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body fewshots.Body
		if !httputil.DecodeJSON(deps.Log, w, r, &body) {
			return
		}
		req, err := body.AddRequest()
		if err != nil {
			httputil.FailErr(deps.Log, w, "invalid shots", err)
			return
		}
		if isAsync(r) {
			enqueue(deps, w, r, queue.TaskTypeAdd, body, req.Len())
			return
		}

		ids, err := deps.Client.AddRequest(r.Context(), req, body.Options()...)
		if err != nil {
			httputil.FailErr(deps.Log, w, "failed to add shots", err)
			return
		}
		if req.Kind() == fewshots.KindSingle {
			httputil.WriteJSON(w, http.StatusCreated, map[string]any{"id": ids[0]})
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]any{"ids": ids})
	}
}

func removeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body fewshots.Body
		if !httputil.DecodeJSON(deps.Log, w, r, &body) {
			return
		}
		req, err := body.RemoveRequest()
		if err != nil {
			httputil.FailErr(deps.Log, w, "invalid shots", err)
			return
		}
		if isAsync(r) {
			enqueue(deps, w, r, queue.TaskTypeRemove, body, req.Len())
			return
		}

		if err := deps.Client.RemoveRequest(r.Context(), req, body.Options()...); err != nil {
			httputil.FailErr(deps.Log, w, "failed to remove shots", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"removed": req.Len()})
	}
}

func searchHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !httputil.DecodeJSON(deps.Log, w, r, &req) {
			return
		}
		inputs, err := shot.ValueOf(req.Inputs)
		if err != nil {
			httputil.FailErr(deps.Log, w, "invalid inputs", err)
			return
		}

		results, err := deps.Client.List(r.Context(), inputs, searchOptions(req.Namespace, req.Limit)...)
		if err != nil {
			httputil.FailErr(deps.Log, w, "search failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func lookupHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lookupRequest
		if !httputil.DecodeJSON(deps.Log, w, r, &req) {
			return
		}
		opts := []fewshots.Option{fewshots.WithNamespace(req.Namespace)}

		if len(req.IDs) > 0 {
			shots, err := deps.Client.GetIDs(r.Context(), req.IDs, opts...)
			if err != nil {
				httputil.FailErr(deps.Log, w, "lookup failed", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"shots": shots})
			return
		}

		inputs, err := shot.ValueOf(req.Inputs)
		if err != nil {
			httputil.FailErr(deps.Log, w, "invalid inputs", err)
			return
		}
		if req.ID != "" {
			opts = append(opts, fewshots.WithID(req.ID))
		}
		found, err := deps.Client.Get(r.Context(), inputs, opts...)
		if err != nil {
			httputil.FailErr(deps.Log, w, "lookup failed", err)
			return
		}
		if found == nil {
			httputil.Fail(deps.Log, w, "shot not found", nil, http.StatusNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"shot": found})
	}
}

func promptHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promptRequest
		if !httputil.DecodeJSON(deps.Log, w, r, &req) {
			return
		}
		inputs, err := shot.ValueOf(req.Inputs)
		if err != nil {
			httputil.FailErr(deps.Log, w, "invalid inputs", err)
			return
		}

		results, err := deps.Client.List(r.Context(), inputs, searchOptions(req.Namespace, req.Limit)...)
		if err != nil {
			httputil.FailErr(deps.Log, w, "search failed", err)
			return
		}
		msgs := prompt.Build(req.System, prompt.FromScored(results), inputs)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"messages": msgs,
			"shots":    len(results),
		})
	}
}

func clearHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		namespace := chi.URLParam(r, "namespace")
		if err := deps.Client.Clear(r.Context(), fewshots.WithNamespace(namespace)); err != nil {
			httputil.FailErr(deps.Log, w, "failed to clear namespace", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func isAsync(r *http.Request) bool {
	return r.URL.Query().Get("async") == "true"
}

// enqueue hands an already classified body to the ingest worker.
func enqueue(deps app.Deps, w http.ResponseWriter, r *http.Request, taskType queue.TaskType, body fewshots.Body, count int) {
	if deps.Queue == nil {
		httputil.Fail(deps.Log, w, "async ingest is disabled", queue.ErrDisabled, http.StatusServiceUnavailable)
		return
	}
	task, err := queue.NewTask(taskType, body)
	if err != nil {
		httputil.Fail(deps.Log, w, "failed to encode task", err, http.StatusInternalServerError)
		return
	}
	if err := queue.EnqueueWithRetry(r.Context(), deps.Queue, task, 3, 200*time.Millisecond); err != nil {
		httputil.Fail(deps.Log, w, "failed to enqueue task; please retry", err, http.StatusServiceUnavailable)
		return
	}
	deps.Log.Info("task enqueued", "id", task.ID, "type", taskType, "count", count)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"task_id": task.ID.String(),
		"status":  "queued",
	})
}

func searchOptions(namespace string, limit int) []fewshots.Option {
	opts := []fewshots.Option{fewshots.WithNamespace(namespace)}
	if limit > 0 {
		opts = append(opts, fewshots.WithLimit(limit))
	}
	return opts
}
