package jimeng

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
)

const (
	generatePath = "/images/generations"
	tasksPath    = "/tasks/"
)

// Generator is the provider-facing half of a generation invocation.
type Generator interface {
	GenerateImages(ctx context.Context, req models.GenerationRequest) (*Result, error)
	WaitForResult(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (*Result, error)
}

var _ Generator = (*Client)(nil)

type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	model      string
	userAgent  string
	httpClient *http.Client

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithClock replaces the wall clock and the poll sleep, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

func NewClient(baseURL, accessKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		secretKey: secretKey,
		model:     "jimeng-v4",
		userAgent: "Jimeng4-Image-Generator",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateImages submits a generation request. Transport failures come back
// as *TransportError, rejected or unreadable responses as *APIError.
func (c *Client) GenerateImages(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("jimeng").With("size", req.Size, "count", req.Count, "seed", req.Seed)
	log.Info("requesting image generation")

	signed, err := c.BuildRequest(http.MethodPost, generatePath, newPayload(c.model, req))
	if err != nil {
		return nil, err
	}

	result, err := c.do(ctx, "generate images", signed)
	if err != nil {
		return nil, err
	}

	log.Info("image generation responded", "status", result.Status, "images", len(result.Data))
	return result, nil
}

// GetTask fetches the current state of an asynchronous task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Result, error) {
	signed, err := c.BuildRequest(http.MethodGet, tasksPath+taskID, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "get task", signed)
}

// WaitForResult polls the task until it succeeds or fails, giving up once
// timeout elapses. Each poll is bounded by the time left. Poll errors are
// logged and polling continues at the same interval; on deadline a synthetic
// timeout result is returned without an error.
func (c *Client) WaitForResult(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (*Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("jimeng").With("task_id", taskID)
	start := c.now()

	for attempt := 1; c.now().Sub(start) < timeout; attempt++ {
		result, err := c.poll(ctx, taskID, timeout-c.now().Sub(start))
		switch {
		case err != nil:
			log.Warn("task poll failed", "attempt", attempt, "error", err)
		case result.Status == StatusSucceeded:
			log.Info("task succeeded", "attempt", attempt, "images", len(result.Data))
			return result, nil
		case result.Status == StatusFailed:
			log.Error("task failed", "attempt", attempt, "error", result.ErrorMessage())
			return result, nil
		default:
			log.Debug("task pending", "attempt", attempt, "status", result.Status)
		}

		if err := c.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}

	log.Warn("task timed out", "timeout", timeout)
	return timeoutResult(), nil
}

func (c *Client) poll(ctx context.Context, taskID string, remaining time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	return c.GetTask(ctx, taskID)
}

func (c *Client) do(ctx context.Context, op string, signed *SignedRequest) (*Result, error) {
	var body io.Reader
	if signed.Body != "" {
		body = strings.NewReader(signed.Body)
	}

	req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range signed.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Message:    fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	return &result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
