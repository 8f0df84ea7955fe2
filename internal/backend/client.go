// Package backend talks to the telemetry backend: it fetches snapshots and triggers resets.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

const (
	SnapshotPath = "/api/get_data"
	ResetPath    = "/api/put_reset"
)

// ErrInvalidResponse is returned when the backend answers with a body that is not JSON.
var ErrInvalidResponse = errors.New("backend: response is not valid JSON")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend: %d: %s", e.StatusCode, e.Message)
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	http *resty.Client
}

func New(opts Options) *Client {
	r := resty.New()
	r.SetBaseURL(opts.BaseURL)
	r.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		r.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Timeout > 0 {
		r.SetTimeout(opts.Timeout)
	}
	return &Client{http: r}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// FetchSnapshot performs GET /api/get_data.
func (c *Client) FetchSnapshot(ctx context.Context) (types.Snapshot, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(SnapshotPath)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("get %s: %w", SnapshotPath, err)
	}

	if !resp.IsSuccess() {
		return types.Snapshot{}, apiError(resp.StatusCode(), resp.Body())
	}

	var snap types.Snapshot
	if err := json.Unmarshal(resp.Body(), &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return snap, nil
}

// ResetResult is the parsed answer to PUT /api/put_reset.
type ResetResult struct {
	StatusCode     int    `json:"-"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	LastPwrTrigger int64  `json:"last_pwr_trigger,omitempty"`
	ReadableTime   string `json:"readable_time,omitempty"`
}

// TriggerReset performs PUT /api/put_reset. A nil credentials pointer sends no body at all; a
// non-nil one sends {"credentials": ...}. A non-2xx answer with a JSON body returns the parsed
// result together with an *APIError.
func (c *Client) TriggerReset(ctx context.Context, credentials *string) (ResetResult, error) {
	req := c.http.R().SetContext(ctx)
	if credentials != nil {
		req.SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"credentials": *credentials})
	}

	resp, err := req.Put(ResetPath)
	if err != nil {
		return ResetResult{}, fmt.Errorf("put %s: %w", ResetPath, err)
	}

	var out ResetResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return ResetResult{StatusCode: resp.StatusCode()}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	out.StatusCode = resp.StatusCode()

	if !resp.IsSuccess() {
		return out, &APIError{StatusCode: out.StatusCode, Status: out.Status, Message: out.Message}
	}
	return out, nil
}

func apiError(code int, body []byte) error {
	e := &APIError{StatusCode: code}
	var raw struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &raw) == nil {
		e.Status = raw.Status
		e.Message = raw.Message
	}
	return e
}
