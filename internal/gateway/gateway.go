package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/idilsaglam/tada-sync/internal/model"
)

// DefaultBaseURL is used when New is given an empty base address.
const DefaultBaseURL = "https://rag-pipeline-91ct.vercel.app"

// APIKeyHeader carries the credential on mutating requests.
const APIKeyHeader = "X-API-Key"

// Failure kinds. Every error returned by Client matches exactly one of them
// with errors.Is.
var (
	ErrFetch  = errors.New("fetch failed")
	ErrCreate = errors.New("create failed")
	ErrUpdate = errors.New("update failed")
	ErrDelete = errors.New("delete failed")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Kind   error
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s %s returned %d", e.Kind, e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// record is the wire shape of a todo. Nothing outside this package sees it.
type record struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func (r record) item() model.Item {
	return model.Item{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type createRequest struct {
	Title string `json:"title"`
}

type completedPatch struct {
	Completed bool `json:"completed"`
}

type titlePatch struct {
	Title string `json:"title"`
}

// Client talks to the remote todo API. It keeps no state between calls and
// makes exactly one attempt per call.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

type Option func(*Client)

// WithAPIKey sets the credential attached to mutating requests.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured API address.
func (c *Client) BaseURL() string { return c.baseURL }

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// FetchAll reads the whole collection. An empty collection is not an error.
func (c *Client) FetchAll(ctx context.Context) ([]model.Item, error) {
	var recs []record
	if err := c.call(ctx, ErrFetch, http.MethodGet, "/api/todos/", nil, false, &recs); err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(recs))
	for _, r := range recs {
		items = append(items, r.item())
	}
	return items, nil
}

// Create submits a new item with only a title; the server fills the rest.
func (c *Client) Create(ctx context.Context, title string) (model.Item, error) {
	var rec record
	if err := c.call(ctx, ErrCreate, http.MethodPost, "/api/todos/", createRequest{Title: title}, true, &rec); err != nil {
		return model.Item{}, err
	}
	return rec.item(), nil
}

// Fetch reads a single record.
func (c *Client) Fetch(ctx context.Context, id int64) (model.Item, error) {
	var rec record
	if err := c.call(ctx, ErrFetch, http.MethodGet, itemPath(id), nil, false, &rec); err != nil {
		return model.Item{}, err
	}
	return rec.item(), nil
}

// ToggleCompleted reads the record, then writes the negation of the value it
// just read. There is no compare-and-swap: another writer may change the
// record between the two requests.
func (c *Client) ToggleCompleted(ctx context.Context, id int64) (model.Item, error) {
	cur, err := c.Fetch(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	var rec record
	if err := c.call(ctx, ErrUpdate, http.MethodPatch, itemPath(id), completedPatch{Completed: !cur.Completed}, true, &rec); err != nil {
		return model.Item{}, err
	}
	return rec.item(), nil
}

func (c *Client) UpdateTitle(ctx context.Context, id int64, title string) (model.Item, error) {
	var rec record
	if err := c.call(ctx, ErrUpdate, http.MethodPatch, itemPath(id), titlePatch{Title: title}, true, &rec); err != nil {
		return model.Item{}, err
	}
	return rec.item(), nil
}

// Delete removes a record. The response body is ignored.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.call(ctx, ErrDelete, http.MethodDelete, itemPath(id), nil, true, nil)
}

// ValidateKey asks the server whether the configured credential is accepted.
// It is false without a credential and on any failure.
func (c *Client) ValidateKey(ctx context.Context) bool {
	if c.apiKey == "" {
		return false
	}
	err := c.call(ctx, ErrFetch, http.MethodGet, "/api/settings/validate-key", nil, true, nil)
	if err != nil {
		c.log.Debug("validate key", "err", err)
		return false
	}
	return true
}

// ---------------------------------------------------
// transport
// ---------------------------------------------------

func itemPath(id int64) string {
	return "/api/todos/" + strconv.FormatInt(id, 10)
}

// call performs one request. Success is decided by the status code only;
// the body is decoded into out after that.
func (c *Client) call(ctx context.Context, kind error, method, path string, body any, withKey bool, out any) error {
	req, err := c.newRequest(ctx, method, path, body, withKey)
	if err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	reqID := req.Header.Get("X-Request-ID")
	log := c.log.With("method", method, "path", path, "request_id", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("request failed", "err", err, "took", time.Since(start))
		return fmt.Errorf("%w: %s %s: %w", kind, method, path, err)
	}
	defer resp.Body.Close()
	log.Debug("request done", "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Kind: kind, Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", kind, method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, withKey bool) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("json marshal: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if withKey && c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}
