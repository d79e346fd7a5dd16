// Package client talks to the confession API over HTTP. *Client satisfies
// feed.Source, so the feed engine can run against a remote server.
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
	"strconv"
	"strings"
	"time"

	"github.com/sujalbistaa/confessly/internal/models"
)

const defaultTimeout = 15 * time.Second

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client is a REST client for one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// WebsocketURL returns the server's change stream endpoint.
func (c *Client) WebsocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListConfessions(ctx context.Context, q models.ConfessionQuery) ([]models.Confession, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", string(q.Category))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Before != nil {
		params.Set("before", q.Before.CreatedAt.UTC().Format(time.RFC3339Nano))
		params.Set("before_id", q.Before.ID)
	}
	if q.After != nil {
		params.Set("after", q.After.CreatedAt.UTC().Format(time.RFC3339Nano))
		params.Set("after_id", q.After.ID)
	}
	path := "/api/confessions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out []models.Confession
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConfession(ctx context.Context, id string) (models.Confession, error) {
	var out models.Confession
	err := c.do(ctx, http.MethodGet, "/api/confessions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) ListComments(ctx context.Context, confessionID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/confessions/"+url.PathEscape(confessionID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateConfession(ctx context.Context, draft models.ConfessionDraft) (models.Confession, error) {
	var out models.Confession
	err := c.do(ctx, http.MethodPost, "/api/confessions", draft, &out)
	return out, err
}

func (c *Client) CreateComment(ctx context.Context, confessionID string, draft models.CommentDraft) (models.Comment, error) {
	var out models.Comment
	err := c.do(ctx, http.MethodPost, "/api/confessions/"+url.PathEscape(confessionID)+"/comments", draft, &out)
	return out, err
}

func (c *Client) IncrementLike(ctx context.Context, confessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/confessions/"+url.PathEscape(confessionID)+"/like", nil, nil)
}
