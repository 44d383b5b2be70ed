package handlers

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sdbooth/internal/archive"
	"sdbooth/internal/httpkit"
)

// ArchiveContent streams an archived artifact. It backs the public URLs the
// localfs provider hands out.
func (h *Handler) ArchiveContent(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "artifact not found", nil)
		return
	}

	rc, ct, size, err := h.sp.GetObject(r.Context(), key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.FromContext(r.Context()).Warn("archive read failed", "key", key, "error", err.Error())
		}
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "artifact not found", map[string]any{"key": key})
		return
	}
	defer rc.Close()

	if ct == "" {
		ct = archive.ContentTypeFor(key)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(key, `"`, "")+`"`)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	_, _ = io.Copy(w, rc)
}
