// Package client talks to the SupplyChainX REST API. Remote implements the
// record-store contract over HTTP so the cache and coordinator can run in a
// separate process from the store.
package client

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

	"github.com/Abdul07in/supplychainx/internal/domain"
)

const apiPrefix = "/api/v1"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *StatusError) StatusCode() int { return e.Status }

// Unwrap maps the status onto the domain error taxonomy.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case e.Status >= 500, e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return domain.ErrTransient
	}
	return nil
}

// Client is a thin JSON-over-HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Overview returns the record count of every collection.
func (c *Client) Overview(ctx context.Context) (map[domain.Collection]int, error) {
	var out struct {
		Counts map[domain.Collection]int `json:"counts"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/dashboard/overview", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Counts, nil
}

// InventoryReport returns the products below the server's stock threshold.
func (c *Client) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	var out domain.InventoryReport
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/reports/inventory", nil, nil, &out); err != nil {
		return domain.InventoryReport{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	target := c.baseURL + p
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.Transient(fmt.Errorf("%s %s: %w", method, p, err))
	}
	defer resp.Body.Close()

	// Read limited response body, like the webhook deliverer does.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Transient(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Method: method, Path: p, Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func path(c domain.Collection, parts ...string) string {
	p := apiPrefix + "/" + string(c)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func listQuery(p domain.ListParams) url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sort_order", p.SortOrder)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}
