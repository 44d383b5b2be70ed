// Package comfy talks to the ComfyUI render service.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"sdbooth/internal/pkg/errors"
)

// PromptResponse is what /prompt answers for a queued workflow.
type PromptResponse struct {
	PromptID string `json:"prompt_id"`
	Number   int    `json:"number"`
}

// Client is the subset of the render service the booth uses.
type Client interface {
	GetHistory(ctx context.Context, promptID string) (History, error)
	DownloadArtifact(ctx context.Context, filename string) ([]byte, error)
	QueuePrompt(ctx context.Context, wf Workflow) (PromptResponse, error)
	UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (int, []byte, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetHistory fetches history/{promptID}. The body is returned unparsed.
func (c *HTTPClient) GetHistory(ctx context.Context, promptID string) (History, error) {
	body, err := c.get(ctx, "comfy.history", "/history/"+url.PathEscape(promptID))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New(errors.CodeMalformed, "history is not valid json").
			WithField("prompt_id", promptID)
	}
	return History(body), nil
}

// DownloadArtifact fetches the bytes of a finished image via /view.
func (c *HTTPClient) DownloadArtifact(ctx context.Context, filename string) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", filename)
	return c.get(ctx, "comfy.view", "/view?"+q.Encode())
}

// QueuePrompt submits a workflow and returns the assigned prompt id.
func (c *HTTPClient) QueuePrompt(ctx context.Context, wf Workflow) (PromptResponse, error) {
	var out PromptResponse

	if err := wf.Validate(); err != nil {
		return out, err
	}
	body, err := json.Marshal(PromptRequest{Prompt: wf})
	if err != nil {
		return out, errors.Wrap(err, "comfy.prompt", "encode workflow")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return out, errors.Wrap(err, "comfy.prompt", "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.do(req, "comfy.prompt")
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return out, errors.WrapWithCode(err, errors.CodeMalformed, "comfy.prompt", "decode prompt response")
	}
	if out.PromptID == "" {
		return out, errors.New(errors.CodeMalformed, "prompt response has no prompt_id")
	}
	return out, nil
}

// UploadImage forwards an image as the multipart field "image" to
// /upload/image. The upstream status and body are returned as-is so the
// caller can relay them; err is set only when the service is unreachable.
func (c *HTTPClient) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (int, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return 0, nil, errors.Wrap(err, "comfy.upload", "create form part")
	}
	if _, err := io.Copy(part, r); err != nil {
		return 0, nil, errors.Wrap(err, "comfy.upload", "copy image")
	}
	if err := mw.Close(); err != nil {
		return 0, nil, errors.Wrap(err, "comfy.upload", "close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return 0, nil, errors.Wrap(err, "comfy.upload", "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, errors.WrapWithCode(err, errors.CodeUpstream, "comfy.upload", "render service unreachable")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, errors.WrapWithCode(err, errors.CodeUpstream, "comfy.upload", "read response")
	}
	return res.StatusCode, body, nil
}

// Ping checks that the render service answers at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "comfy.ping", "/system_stats")
	return err
}

func (c *HTTPClient) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, op, "build request")
	}
	return c.do(req, op)
}

func (c *HTTPClient) do(req *http.Request, op string) ([]byte, error) {
	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUpstream, op, "render service unreachable")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUpstream, op, "read response")
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Newf(errors.CodeUpstream, "render service http %d", res.StatusCode).
			WithField("status", res.StatusCode)
	}
	return body, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
