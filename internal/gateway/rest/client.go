// Package rest is the JSON-over-HTTP plumbing shared by the brokerage,
// market data and alternate price adapters.
package rest

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

	"exalted/internal/pkg/retry"
)

const maxErrorBody = 4096

// APIError is a non-2xx answer from a REST collaborator.
type APIError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s %s: status %d", e.Service, e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.Path, e.Status, e.Body)
}

// Transient marks rate limiting and server-side failures as retryable.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client issues requests against one base URL with fixed headers. Every
// call runs through the retrier when one is set.
type Client struct {
	service    string
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
	retrier    *retry.Retrier
}

func NewClient(service, baseURL string, timeout time.Duration, retrier *retry.Retrier) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("%s: base url cannot be empty", service)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", service, err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		service:    service,
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		headers:    make(http.Header),
		retrier:    retrier,
	}, nil
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Service() string { return c.service }

// Do performs method on path (which may carry a query string) and returns the
// response body of a 2xx answer.
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var buf []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		buf = b
	}
	name := c.service + " " + method + " " + stripQuery(path)
	if c.retrier == nil {
		return c.once(ctx, method, path, buf)
	}
	return retry.Call(ctx, c.retrier, name, func(ctx context.Context) ([]byte, error) {
		return c.once(ctx, method, path, buf)
	})
}

// DoJSON is Do followed by decoding the body into out.
func (c *Client) DoJSON(ctx context.Context, method, path string, payload, out any) error {
	body, err := c.Do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", c.service, stripQuery(path), err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.service, err)
	}
	for k, vals := range c.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: call %s: %w", c.service, stripQuery(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Service: c.service,
			Method:  method,
			Path:    stripQuery(path),
			Status:  resp.StatusCode,
			Body:    strings.TrimSpace(string(data)),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", c.service, stripQuery(path), err)
	}
	return data, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("%s: base url not set", c.service)
	}
	trimmed := strings.TrimSpace(path)
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}

func stripQuery(path string) string {
	if idx := strings.Index(path, "?"); idx >= 0 {
		return path[:idx]
	}
	return path
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
