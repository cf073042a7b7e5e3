// Package rest implements the backend client contract against the
// versioned Classhub REST API. Its native wire shape uses camelCase
// field names and symbolic string enums, and bulk reads come back in a
// page envelope with a total count and navigation flag.
package rest

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

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// Client talks to a Classhub REST service at /api/v1/<entity>.
type Client struct {
	baseURL string
	apiKey  string
	role    entity.Role
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the X-API-Key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRole sets the X-Role header; the server filters role-gated reads.
func WithRole(role entity.Role) Option {
	return func(c *Client) { c.role = role }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a REST backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the uniform response shape of the REST API.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Errors    []string        `json:"errors"`
	Timestamp string          `json:"timestamp"`
}

// pageData is the envelope payload of a bulk read.
type pageData struct {
	Items       []backend.Doc `json:"items"`
	PageNumber  int           `json:"pageNumber"`
	PageSize    int           `json:"pageSize"`
	TotalCount  int           `json:"totalCount"`
	HasNextPage bool          `json:"hasNextPage"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fault.Wrap(fault.Validation, err, "encode request")
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fault.Wrap(fault.Transport, err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.role != "" {
		req.Header.Set("X-Role", string(c.role))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.Transport, err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "decode response from %s", path)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return nil, classifyStatus(resp.StatusCode, &env, path)
	}
	return &env, nil
}

// classifyStatus maps an HTTP failure onto the fault taxonomy, carrying
// the server's message for the kinds shown verbatim to users.
func classifyStatus(status int, env *envelope, path string) error {
	msg := env.Message
	if msg == "" && len(env.Errors) > 0 {
		msg = strings.Join(env.Errors, "; ")
	}
	if msg == "" {
		msg = fmt.Sprintf("request to %s failed with status %d", path, status)
	}

	switch {
	case status == http.StatusNotFound:
		return fault.New(fault.NotFound, "%s", msg)
	case status == http.StatusConflict:
		return fault.New(fault.Conflict, "%s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fault.New(fault.Authorization, "%s", msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fault.New(fault.Validation, "%s", msg)
	default:
		return fault.New(fault.Transport, "%s", msg)
	}
}

func kindPath(kind entity.Kind) string {
	return "/api/v1/" + string(kind)
}

// List fetches one page. The server bounds pageSize to 1..100.
func (c *Client) List(ctx context.Context, kind entity.Kind, page backend.Page) (*backend.ListResult, error) {
	page = page.Clamp()
	q := url.Values{
		"pageNumber": {strconv.Itoa(page.Number)},
		"pageSize":   {strconv.Itoa(page.Size)},
	}

	env, err := c.do(ctx, http.MethodGet, kindPath(kind), q, nil)
	if err != nil {
		return nil, err
	}

	var pd pageData
	if err := json.Unmarshal(env.Data, &pd); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "decode %s page", kind)
	}
	return &backend.ListResult{Items: pd.Items, Total: pd.TotalCount, HasNext: pd.HasNextPage}, nil
}

// Get fetches one entity by id.
func (c *Client) Get(ctx context.Context, kind entity.Kind, id string) (backend.Doc, error) {
	env, err := c.do(ctx, http.MethodGet, kindPath(kind)+"/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeDoc(env.Data, kind)
}

// Create posts a new entity and returns the stored wire doc.
func (c *Client) Create(ctx context.Context, kind entity.Kind, doc backend.Doc) (backend.Doc, error) {
	env, err := c.do(ctx, http.MethodPost, kindPath(kind), nil, doc)
	if err != nil {
		return nil, err
	}
	return decodeDoc(env.Data, kind)
}

// Update patches an entity and returns the stored wire doc.
func (c *Client) Update(ctx context.Context, kind entity.Kind, id string, doc backend.Doc) (backend.Doc, error) {
	env, err := c.do(ctx, http.MethodPatch, kindPath(kind)+"/"+id, nil, doc)
	if err != nil {
		return nil, err
	}
	return decodeDoc(env.Data, kind)
}

// Delete removes an entity by id.
func (c *Client) Delete(ctx context.Context, kind entity.Kind, id string) error {
	_, err := c.do(ctx, http.MethodDelete, kindPath(kind)+"/"+id, nil, nil)
	return err
}

func decodeDoc(raw json.RawMessage, kind entity.Kind) (backend.Doc, error) {
	var doc backend.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.Wrap(fault.Transport, err, "decode %s", kind)
	}
	return doc, nil
}
