package clocklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Clockline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 60 * time.Second,
	}
}

// ActionResult is the API's answer to an enter/leave call.
type ActionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HistoryEntry is one row of the action history.
type HistoryEntry struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	BaseDate string `json:"base_date"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Actor    string `json:"actor,omitempty"`
	At       string `json:"at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	u := strings.TrimRight(c.BaseURL, "/") + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Body: string(data)}
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// Health checks process liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// Enter records a check-in; baseDate may be empty for today.
func (c *Client) Enter(ctx context.Context, baseDate string) (ActionResult, error) {
	return c.action(ctx, "/enter", baseDate)
}

// Leave records a check-out; baseDate may be empty for today.
func (c *Client) Leave(ctx context.Context, baseDate string) (ActionResult, error) {
	return c.action(ctx, "/leave", baseDate)
}

func (c *Client) action(ctx context.Context, p, baseDate string) (ActionResult, error) {
	query := url.Values{}
	if baseDate != "" {
		query.Set("base_date", baseDate)
	}
	var result ActionResult
	err := c.do(ctx, http.MethodPost, p, query, nil, &result)
	return result, err
}

// History returns recent action outcomes, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Items []HistoryEntry `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/history", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
