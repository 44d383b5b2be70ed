package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"sdbooth/internal/httpkit"
	"sdbooth/internal/models"
	"sdbooth/internal/pkg/errors"
)

// ListJobs returns the newest render jobs, optionally filtered by status.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) error {
	status := models.JobStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", models.StatusPending, models.StatusSuccessful, models.StatusFailed:
	default:
		return errors.ValidationField("status", "status must be Pending, Successful or Failed")
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			return errors.ValidationField("limit", "limit must be between 1 and 200")
		}
		limit = v
	}

	jobs, err := h.queue.List(r.Context(), status, limit)
	if err != nil {
		return errors.Wrap(err, "http.jobs", "cannot list render jobs")
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"items": jobs,
		"count": len(jobs),
	})
	return nil
}
