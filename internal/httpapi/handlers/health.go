package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sdbooth/internal/httpkit"
)

const version = "0.1.0"

// Health reports liveness. With ?deep=true it also probes every dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":      "ok",
		"service":     h.serviceName,
		"version":     version,
		"connections": h.registry.Len(),
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if check["status"] == "error" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	return map[string]map[string]any{
		"postgres": h.checkPostgres(ctx),
		"redis":    h.checkRedis(ctx),
		"storage":  h.checkStorage(ctx),
		"comfy":    h.checkComfy(ctx),
	}
}

// probe runs fn with a timeout and records status and latency.
func probe(ctx context.Context, fn func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := fn(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func disabled() map[string]any {
	return map[string]any{"status": "disabled"}
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	if h.db == nil {
		return disabled()
	}
	result := probe(ctx, h.db.Ping)
	if pool, ok := h.db.(*pgxpool.Pool); ok && result["status"] == "ok" {
		stats := pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
		result["acquired_conns"] = stats.AcquiredConns()
	}
	return result
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	if h.rdb == nil {
		return disabled()
	}
	return probe(ctx, func(ctx context.Context) error {
		return h.rdb.Ping(ctx).Err()
	})
}

func (h *Handler) checkStorage(ctx context.Context) map[string]any {
	if h.sp == nil {
		return disabled()
	}
	result := probe(ctx, h.sp.Ping)
	result["provider"] = h.sp.Provider()
	return result
}

func (h *Handler) checkComfy(ctx context.Context) map[string]any {
	if h.comfy == nil {
		return disabled()
	}
	return probe(ctx, h.comfy.Ping)
}
