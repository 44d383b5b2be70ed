package handlers

import (
	"net/http"
	"strings"

	"sdbooth/internal/httpkit"
	"sdbooth/internal/pkg/errors"
)

const maxUploadBytes = 32 << 20

// UploadImage forwards the multipart field "file" to ComfyUI and relays the
// upstream status and body.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return errors.ValidationField("file", "No file provided.")
	}

	file, hdr, err := r.FormFile("file")
	if err != nil || hdr.Size == 0 {
		return errors.ValidationField("file", "No file provided.")
	}
	defer file.Close()

	status, body, err := h.comfy.UploadImage(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), file)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		h.log.FromContext(r.Context()).Warn("comfy rejected upload", "status", status, "filename", hdr.Filename)
		httpkit.WriteErr(w, status, string(errors.CodeUpstream), "ComfyUI error: "+string(body), nil)
		return nil
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"message":       "Image uploaded to ComfyUI successfully.",
		"comfyResponse": string(body),
	})
	return nil
}

// Process queues one render per template of the requested gender.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	userImageName := strings.TrimSpace(q.Get("userImageName"))
	gender := strings.TrimSpace(q.Get("gender"))
	if userImageName == "" || gender == "" {
		return errors.Validation("Missing required parameters.").
			WithField("required", []string{"userImageName", "gender"})
	}

	res, err := h.submission.Process(r.Context(), userImageName, gender)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Templates processed successfully.",
		"queued":  res.Queued,
		"skipped": res.Skipped,
	})
	return nil
}

// ClearQueue drops every job record. Safe to repeat.
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) error {
	n, err := h.submission.ClearQueue(r.Context())
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Render queue cleared successfully.",
		"removed": n,
	})
	return nil
}
