package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
)

const userAgent = "slidecast/0.1.0"

// Client talks to the slideshow backend REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// New constructs a client from application configuration.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	return NewWithBaseURL(cfg.Backend.BaseURL, cfg.Backend.APIToken, cfg.RequestTimeout(), logger)
}

// NewWithBaseURL constructs a client against an explicit base URL. Used by
// tests to point at a fake backend.
func NewWithBaseURL(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.WithComponent(logger, "backend"),
	}
}

// FetchProject returns the project's scalar settings.
func (c *Client) FetchProject(ctx context.Context, id int64) (*Project, error) {
	var project Project
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d/", id), "fetch project", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FetchSegments returns the project's segments ordered by sequence index.
func (c *Client) FetchSegments(ctx context.Context, projectID int64) ([]Segment, error) {
	var segments []Segment
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d/segments/", projectID), "fetch segments", &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// FetchSegment returns a single segment by id.
func (c *Client) FetchSegment(ctx context.Context, id int64) (*Segment, error) {
	var segment Segment
	if err := c.getJSON(ctx, fmt.Sprintf("/segments/%d/", id), "fetch segment", &segment); err != nil {
		return nil, err
	}
	return &segment, nil
}

// UpdateSegment applies a partial update and returns the authoritative record.
func (c *Client) UpdateSegment(ctx context.Context, id int64, patch SegmentPatch) (*Segment, error) {
	var segment Segment
	if err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/segments/%d/", id), "update segment", patch, &segment); err != nil {
		return nil, err
	}
	return &segment, nil
}

// UpdateProject applies a partial settings update and returns the authoritative record.
func (c *Client) UpdateProject(ctx context.Context, id int64, patch ProjectPatch) (*Project, error) {
	var project Project
	if err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/projects/%d/", id), "update project", patch, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteSegment removes a segment and its stored assets.
func (c *Client) DeleteSegment(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/segments/%d/", id), "delete segment", nil, nil)
}

// UploadImage attaches an image file to a segment.
func (c *Client) UploadImage(ctx context.Context, segmentID int64, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/segments/%d/upload-image/", segmentID), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, "upload image", nil)
}

// RemoveImage detaches and deletes a segment's image.
func (c *Client) RemoveImage(ctx context.Context, segmentID int64) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/segments/%d/remove-image/", segmentID), "remove image", nil, nil)
}

// ReorderSegments persists a new segment ordering for a project.
func (c *Client) ReorderSegments(ctx context.Context, projectID int64, segmentIDs []int64) error {
	payload := struct {
		SegmentIDs []int64 `json:"segment_ids"`
	}{SegmentIDs: segmentIDs}
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/reorder/", projectID), "reorder segments", payload, nil)
}

// StartAudioJob starts narration synthesis for one segment.
func (c *Client) StartAudioJob(ctx context.Context, segmentID int64) (*AudioJob, error) {
	var job AudioJob
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/segments/%d/generate-audio/", segmentID), "start audio job", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StartBulkAudioJob starts narration synthesis covering every unlocked segment
// of a project.
func (c *Client) StartBulkAudioJob(ctx context.Context, projectID int64) (*AudioJob, error) {
	var job AudioJob
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/generate-all-audio/", projectID), "start bulk audio job", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// TaskStatus polls an audio generation job.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/tasks/%s/", taskID), "poll task", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartRender starts a full-project video render.
func (c *Client) StartRender(ctx context.Context, projectID int64) (*RenderStart, error) {
	var start RenderStart
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/render/", projectID), "start render", nil, &start); err != nil {
		return nil, err
	}
	return &start, nil
}

// RenderStatus polls a project's active render.
func (c *Client) RenderStatus(ctx context.Context, projectID int64) (*RenderStatus, error) {
	var status RenderStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d/render-status/", projectID), "poll render", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelRender asks the backend to abort a render. Best-effort: callers treat
// the item as cancelled regardless of the outcome here.
func (c *Client) CancelRender(ctx context.Context, projectID int64) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/cancel-render/", projectID), "cancel render", nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path, operation string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, operation, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path, operation string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, operation, out)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrTransient, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		if resp.StatusCode >= 500 {
			c.logger.Debug("backend server error",
				logging.String("operation", operation),
				logging.Int("status_code", resp.StatusCode),
			)
		}
		return classify(resp.StatusCode, operation, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %s", ErrTransient, operation, err)
	}
	return nil
}

// readErrorDetail pulls a message from common backend error body shapes.
func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, candidate := range []string{payload.Error, payload.Detail, payload.Message} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	return strings.TrimSpace(string(data))
}
