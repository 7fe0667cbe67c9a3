package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Client talks to the pathstore key/value API that published quizzes are
// written to.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RetryableError wraps failures that may succeed on a later attempt:
// transport errors, 429 and 5xx responses.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NodeRequest is the body for PUT /kv/{key}. Source tags the writer so a
// document's nodes can be traced back to the ingest that produced them.
type NodeRequest struct {
	Value  any    `json:"value"`
	Source string `json:"source,omitempty"`
}

// Node is a stored value. Keys come back in the store's dotted form.
type Node struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

// PutNode stores or replaces the node at key.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	_, err := c.send(ctx, http.MethodPut, key, nil, req, nil, http.StatusOK, http.StatusCreated)
	return err
}

// GetNode retrieves a node by key. A missing node is reported as nil, nil.
func (c *Client) GetNode(ctx context.Context, key string) (*Node, error) {
	var node Node
	found, err := c.send(ctx, http.MethodGet, key, nil, nil, &node, http.StatusOK)
	if err != nil || !found {
		return nil, err
	}
	return &node, nil
}

// DeleteNode deletes a node and, when recursive, everything below it.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	var q url.Values
	if recursive {
		q = url.Values{"children": {"true"}}
	}
	_, err := c.send(ctx, http.MethodDelete, key, q, nil, nil, http.StatusOK, http.StatusNoContent)
	return err
}

// ListChildren does a prefix scan under key. The store does not promise any
// order.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]Node, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var result struct {
		Nodes []Node `json:"nodes"`
	}
	if _, err := c.send(ctx, http.MethodGet, key+"/*", q, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// send performs one request against /kv/{key}. body, when non-nil, is sent
// as JSON and out, when non-nil, receives the decoded response. A 404 on GET
// is reported as found == false rather than an error.
func (c *Client) send(ctx context.Context, method, key string, query url.Values, body, out any, ok ...int) (bool, error) {
	op := strings.ToLower(method) + " " + key

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("%s: marshal: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	u := c.baseURL + "/kv/" + key
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return false, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &RetryableError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	defer resp.Body.Close()

	if method == http.MethodGet && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if !slices.Contains(ok, resp.StatusCode) {
		return false, statusError(op, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return true, nil
}

func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(respBody)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{Err: err}
	}
	return err
}
