package odin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/parambridge-core/internal/schema"
)

// acceptMetadata asks the server to include type and writability metadata
// on every leaf instead of bare values.
const acceptMetadata = "application/json;metadata=true"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the HTTP facade over one remote control server.
//
// One client serves all adapters of a server; it is safe for concurrent
// use by the per-adapter poll loops.
type Client struct {
	baseURL   string
	apiPrefix string
	http      *http.Client
	logger    Logger
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:8888", speaking the API version named by apiPrefix,
// e.g. "api/0.1". Timeout bounds each individual request.
func NewClient(baseURL, apiPrefix string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiPrefix: strings.Trim(apiPrefix, "/"),
		http:      &http.Client{Timeout: timeout},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// url joins the base URL, API prefix and path segments.
func (c *Client) url(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/")
	b.WriteString(c.apiPrefix)
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(strings.Trim(part, "/"))
	}
	return b.String()
}

// FetchAdapters lists the adapter names the server exposes.
func (c *Client) FetchAdapters(ctx context.Context) ([]string, error) {
	url := c.url("adapters")
	doc, err := c.getJSON(ctx, "fetch adapters", url, "")
	if err != nil {
		return nil, err
	}

	raw, ok := doc["adapters"].([]any)
	if !ok {
		return nil, &TransportError{
			Op: "fetch adapters", URL: url,
			Err: fmt.Errorf("response has no adapters list"),
		}
	}

	adapters := make([]string, 0, len(raw))
	for _, el := range raw {
		if name, isStr := el.(string); isStr && name != "" {
			adapters = append(adapters, name)
		}
	}
	return adapters, nil
}

// FetchTree retrieves the full metadata tree of one adapter.
// The returned document is raw; callers hand it to schema.Parse.
func (c *Client) FetchTree(ctx context.Context, adapter string) (map[string]any, error) {
	return c.getJSON(ctx, "fetch tree", c.url(adapter), acceptMetadata)
}

// GetValue reads a single parameter's current value. The server wraps the
// value in an object keyed by the final path segment.
func (c *Client) GetValue(ctx context.Context, adapter, path string) (any, error) {
	url := c.url(adapter, path)
	doc, err := c.getJSON(ctx, "get value", url, "")
	if err != nil {
		return nil, err
	}

	value, ok := doc[lastSegment(path)]
	if !ok {
		return nil, &TransportError{
			Op: "get value", URL: url,
			Err: fmt.Errorf("response missing key %q", lastSegment(path)),
		}
	}
	return value, nil
}

// PutValue writes one parameter. The server expects the value wrapped in
// an object keyed by the final path segment, addressed to the parent path.
// A response body containing an "error" key means the server rejected the
// write even though the HTTP exchange succeeded.
func (c *Client) PutValue(ctx context.Context, adapter, path string, value any) error {
	parent, last := splitPath(path)
	url := c.url(adapter, parent)

	body, err := json.Marshal(map[string]any{last: value})
	if err != nil {
		return &TransportError{Op: "put", URL: url, Err: fmt.Errorf("encoding body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "put", URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "put", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Op: "put", URL: url, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status"),
		}
	}

	doc, err := schema.DecodeDocument(resp.Body)
	if err != nil {
		// An empty or non-object 2xx body still counts as accepted.
		c.logger.Debug("put response not decodable", "url", url, "error", err)
		return nil
	}
	if msg, rejected := doc["error"]; rejected {
		return &WriteRejectedError{Path: adapter + "/" + path, Message: fmt.Sprint(msg)}
	}
	return nil
}

// getJSON performs a GET and decodes the JSON object response.
func (c *Client) getJSON(ctx context.Context, op, url, accept string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{
			Op: op, URL: url, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status"),
		}
	}

	doc, err := schema.DecodeDocument(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return doc, nil
}

// splitPath splits a slash path into parent and final segment.
func splitPath(path string) (parent, last string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func lastSegment(path string) string {
	_, last := splitPath(path)
	return last
}
