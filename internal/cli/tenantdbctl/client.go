package tenantdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	projectID string
}

// requestError marks failures of the API call itself, as opposed to usage
// mistakes.
type requestError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *requestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *requestError) Unwrap() error {
	return e.Err
}

func (c *client) projectPath(suffix string) (string, error) {
	if c.projectID == "" {
		return "", fmt.Errorf("--project is required")
	}
	return "/v1/projects/" + url.PathEscape(c.projectID) + "/database" + suffix, nil
}

// open sends a request and returns the response body for streaming. Error
// responses are consumed and returned as *requestError.
func (c *client) open(ctx context.Context, method, path string, body io.Reader, contentType string) (io.ReadCloser, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &requestError{Err: err}
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, nil, decodeError(resp.StatusCode, raw)
	}
	return resp.Body, resp.Header, nil
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	stream, _, err := c.open(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, &requestError{Err: err}
	}
	return raw, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *client) sendJSON(ctx context.Context, method, path string, payload any, out any) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	raw, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if out != nil {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(out); err != nil {
			return nil, &requestError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return raw, nil
}

func decodeError(status int, raw []byte) error {
	var envelope struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.ErrorCode != "" {
		return &requestError{Status: status, Code: envelope.ErrorCode, Message: envelope.Message}
	}
	return &requestError{Status: status, Message: strings.TrimSpace(string(raw))}
}
