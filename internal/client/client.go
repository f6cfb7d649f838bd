/*
Package client talks to a running tooldb server. Agents use it to publish
the tools they offer and to look up which agent should handle a task.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khanglvm/tooldb/internal/registry"
)

// DefaultServer is the address of a locally running server.
const DefaultServer = "http://127.0.0.1:5000"

// ErrNotFound is returned by MatchTool when no registered tool matches.
var ErrNotFound = errors.New("no matching tool")

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Client is a tooldb HTTP client.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a client for the server at addr. A bare host:port is
// accepted and treated as http.
func New(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		addr = DefaultServer
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: missing host", addr)
	}

	c := &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// AddTool registers tool and returns the tool as echoed by the server.
func (c *Client) AddTool(ctx context.Context, tool registry.Tool) (registry.Tool, error) {
	if tool.Commands == nil {
		tool.Commands = []string{}
	}
	payload, err := json.Marshal(struct {
		Tool registry.Tool `json:"tool"`
	}{tool})
	if err != nil {
		return registry.Tool{}, fmt.Errorf("failed to encode tool: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/tool/add", nil), bytes.NewReader(payload))
	if err != nil {
		return registry.Tool{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Tool registry.Tool `json:"tool"`
	}
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return registry.Tool{}, err
	}
	return out.Tool, nil
}

// MatchTool returns the name of the tool best suited to task. It returns
// ErrNotFound when the server reports no match.
func (c *Client) MatchTool(ctx context.Context, task string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/tool/match", url.Values{"task": {task}}), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	var out struct {
		Name string `json:"name"`
	}
	err = c.do(req, http.StatusOK, &out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return out.Name, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends req and decodes the body into out when the status is want.
func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
