// ABOUTME: HTTP client for the warren gateway REST API with bearer auth
// ABOUTME: All calls share a 10s timeout; reads are best-effort, writes propagate errors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/2389/warren/internal/models"
)

// requestTimeout bounds every API call.
const requestTimeout = 10 * time.Second

// APIError is returned when the gateway answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
}

// Client is a stateless wrapper around the gateway HTTP API. It is safe
// for concurrent use; SetConfig takes effect on the next call and never
// interrupts calls already in flight.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	token   string

	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the gateway at baseURL. Pass an empty token for
// unauthenticated gateways and nil logger for the default.
func New(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "api"),
	}
}

// SetConfig replaces the base URL and auth token used for subsequent calls.
func (c *Client) SetConfig(baseURL, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	c.token = token
}

// config returns the current base URL and token.
func (c *Client) config() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.token
}

// do issues one request against the API prefix and decodes a JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	base, token := c.config()
	if base == "" {
		return fmt.Errorf("no server URL configured")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+"/api"+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Health probes GET /health. Transport failures are absorbed here: the
// probe is only ever used as a best-effort connectivity signal.
func (c *Client) Health(ctx context.Context) bool {
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		c.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}

// ListAgents fetches all agents. A transport failure is logged and
// returned as an empty roster so cold start never crashes on an offline
// gateway.
func (c *Client) ListAgents(ctx context.Context) []models.Agent {
	var agents []models.Agent
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &agents); err != nil {
		c.logger.Warn("listing agents failed", "error", err)
		return nil
	}
	return agents
}

// GetAgent fetches one agent descriptor.
func (c *Client) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var agent models.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// History fetches one page of session history for an agent, oldest first.
// Zero limit and offset are omitted from the query.
func (c *Client) History(ctx context.Context, agentID string, limit, offset int) (*models.HistoryPage, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/history"
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page models.HistoryPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendMessage submits a command for an agent. Failures propagate to the
// caller for explicit handling.
func (c *Client) SendMessage(ctx context.Context, agentID, message string) error {
	body := map[string]string{"message": message}
	return c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/message", body, nil)
}

// UpdateAgent applies a partial descriptor update and returns the updated
// descriptor.
func (c *Client) UpdateAgent(ctx context.Context, id string, patch models.AgentPatch) (*models.Agent, error) {
	var agent models.Agent
	if err := c.do(ctx, http.MethodPatch, "/agents/"+url.PathEscape(id), patch, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent removes an agent.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/agents/"+url.PathEscape(id), nil, nil)
}
