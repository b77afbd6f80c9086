// Package client is a typed Go client for the exeio control plane,
// mirroring the HTTP surface exposed by internal/server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/exeio/internal/entry"
	"github.com/loykin/exeio/internal/logio"
)

// Client talks to a running exeio supervisor over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns sane defaults for talking to a local supervisor.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8080",
		Timeout: 10 * time.Second,
	}
}

// New creates a client from config, filling in defaults for zero values.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8080"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable reports whether the supervisor responds to /info.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("supervisor unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Info fetches the supervisor's version and uptime.
func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	var info InfoResponse
	err := c.doJSON(ctx, http.MethodGet, "/info", nil, &info)
	return info, err
}

// Add registers and starts a new entry.
func (c *Client) Add(ctx context.Context, spec entry.Spec) (entry.Snapshot, error) {
	var snap entry.Snapshot
	body, err := json.Marshal(spec)
	if err != nil {
		return snap, fmt.Errorf("client: marshal spec: %w", err)
	}
	err = c.doJSON(ctx, http.MethodPost, "/add", body, &snap)
	return snap, err
}

// Restart asks the supervisor to restart id and returns its new snapshot.
func (c *Client) Restart(ctx context.Context, id string) (entry.Snapshot, error) {
	var snap entry.Snapshot
	err := c.doJSON(ctx, http.MethodPost, "/restart/"+id, nil, &snap)
	return snap, err
}

// Stop asks the supervisor to stop id and returns its new snapshot.
func (c *Client) Stop(ctx context.Context, id string) (entry.Snapshot, error) {
	var snap entry.Snapshot
	err := c.doJSON(ctx, http.MethodPost, "/stop/"+id, nil, &snap)
	return snap, err
}

// Remove stops id (if live) and forgets it entirely.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/remove/"+id, nil, nil)
}

// List returns every entry's current snapshot.
func (c *Client) List(ctx context.Context) ([]entry.Snapshot, error) {
	var snaps []entry.Snapshot
	err := c.doJSON(ctx, http.MethodGet, "/list", nil, &snaps)
	return snaps, err
}

// Logs fetches one page of id's log.
func (c *Client) Logs(ctx context.Context, id string, page, pageSize int) (logio.Page, error) {
	var pg logio.Page
	path := fmt.Sprintf("/logs/%s?page=%d&page_size=%d", id, page, pageSize)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &pg)
	return pg, err
}

// inputReq mirrors internal/server's /input/{id} body.
type inputReq struct {
	Input string `json:"input"`
}

// Input delivers data to id's child process stdin.
func (c *Client) Input(ctx context.Context, id string, data []byte) error {
	body, err := json.Marshal(inputReq{Input: string(data)})
	if err != nil {
		return fmt.Errorf("client: marshal input: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, "/input/"+id, body, nil)
}

// ClearLog truncates id's log file.
func (c *Client) ClearLog(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/clear-log/"+id, nil, nil)
}

// RestartAll restarts every entry and returns the per-id failures, if any.
func (c *Client) RestartAll(ctx context.Context) (BatchResult, error) {
	return c.doBatch(ctx, "/restart-all")
}

// StopAll stops every entry and returns the per-id failures, if any.
func (c *Client) StopAll(ctx context.Context) (BatchResult, error) {
	return c.doBatch(ctx, "/stop-all")
}

// Shutdown stops every entry and asks the supervisor process to exit. The
// returned BatchResult reflects the stop phase; the process exits shortly
// after replying regardless of partial failures.
func (c *Client) Shutdown(ctx context.Context) (BatchResult, error) {
	return c.doBatch(ctx, "/shutdown")
}

// doBatch posts to a fan-out endpoint that replies 200 when every entry
// succeeded or 207 Multi-Status when some failed or timed out; both are
// treated as a successful call, with the distinction carried in the body.
func (c *Client) doBatch(ctx context.Context, path string) (BatchResult, error) {
	var result BatchResult
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return result, fmt.Errorf("client: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("exeio-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", http.MethodPost, "path", path, "error", err)
		return result, fmt.Errorf("client: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		var errResp ErrorResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&errResp); decErr != nil || errResp.Error == "" {
			return result, fmt.Errorf("client: http %d", resp.StatusCode)
		}
		return result, fmt.Errorf("client: %s", errResp.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("client: decode response: %w", err)
	}
	return result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	return c.doRequest(ctx, method, path, body, "application/json", out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("exeio-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("client: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&errResp); decErr != nil || errResp.Error == "" {
			return fmt.Errorf("client: http %d", resp.StatusCode)
		}
		return fmt.Errorf("client: %s", errResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
