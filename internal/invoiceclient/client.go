// Package invoiceclient talks to the invoice API and keeps a local,
// id-keyed copy of the invoice list.
package invoiceclient

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
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/invoicer/internal/invoices"
)

// DefaultTimeout bounds each HTTP round trip.
const DefaultTimeout = 15 * time.Second

// ErrNotFound matches API errors with status 404.
var ErrNotFound = errors.New("invoiceclient: not found")

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("invoiceclient: %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// Client calls the invoice API. The cached list is refreshed wholesale after
// create and delete; status updates patch the cached entry in place.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	lists   singleflight.Group

	mu    sync.RWMutex
	byID  map[string]invoices.Invoice
	order []string
}

// New builds a Client for the API rooted at baseURL (including any base path).
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
		byID:    make(map[string]invoices.Invoice),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success  bool               `json:"success"`
	Error    string             `json:"error"`
	Invoice  *invoices.Invoice  `json:"invoice"`
	Invoices []invoices.Invoice `json:"invoices"`
}

// List fetches every invoice and replaces the cache. Concurrent calls share
// one request.
func (c *Client) List(ctx context.Context) ([]invoices.Invoice, error) {
	ch := c.lists.DoChan("list", func() (interface{}, error) {
		var env envelope
		if err := c.do(context.WithoutCancel(ctx), http.MethodGet, "/invoices", nil, &env); err != nil {
			return nil, err
		}
		c.replace(env.Invoices)
		return env.Invoices, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneAll(res.Val.([]invoices.Invoice)), nil
	}
}

// ListByStatus fetches invoices with one status. The cache is not touched.
func (c *Client) ListByStatus(ctx context.Context, status invoices.Status) ([]invoices.Invoice, error) {
	var env envelope
	path := "/invoices?status=" + url.QueryEscape(string(status))
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Invoices, nil
}

// Create submits a draft, then refreshes the cached list.
func (c *Client) Create(ctx context.Context, draft invoices.Invoice) (*invoices.Invoice, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/invoices", draft, &env); err != nil {
		return nil, err
	}
	if env.Invoice == nil {
		return nil, errors.New("invoiceclient: create: response without invoice")
	}
	if _, err := c.List(ctx); err != nil {
		return env.Invoice, fmt.Errorf("invoiceclient: refresh after create: %w", err)
	}
	return env.Invoice, nil
}

// Get fetches one invoice from the API.
func (c *Client) Get(ctx context.Context, id string) (*invoices.Invoice, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	return env.Invoice, nil
}

// Update sends a partial patch and patches the cached entry.
func (c *Client) Update(ctx context.Context, id string, patch invoices.Patch) (*invoices.Invoice, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPut, "/invoices/"+url.PathEscape(id), patch, &env); err != nil {
		return nil, err
	}
	if env.Invoice == nil {
		return nil, errors.New("invoiceclient: update: response without invoice")
	}
	c.patch(*env.Invoice)
	return env.Invoice, nil
}

// UpdateStatus changes only the status.
func (c *Client) UpdateStatus(ctx context.Context, id string, status invoices.Status) (*invoices.Invoice, error) {
	return c.Update(ctx, id, invoices.StatusPatch(status))
}

// Delete removes an invoice, then refreshes the cached list.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/invoices/"+url.PathEscape(id), nil, &envelope{}); err != nil {
		return err
	}
	if _, err := c.List(ctx); err != nil {
		return fmt.Errorf("invoiceclient: refresh after delete: %w", err)
	}
	return nil
}

// Cached returns the cached list in server order.
func (c *Client) Cached() []invoices.Invoice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]invoices.Invoice, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return cloneAll(out)
}

// Lookup returns a cached invoice.
func (c *Client) Lookup(id string) (invoices.Invoice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inv, ok := c.byID[id]
	return inv, ok
}

func (c *Client) replace(items []invoices.Invoice) {
	byID := make(map[string]invoices.Invoice, len(items))
	order := make([]string, 0, len(items))
	for _, inv := range items {
		byID[inv.ID] = inv
		order = append(order, inv.ID)
	}
	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()
}

func (c *Client) patch(inv invoices.Invoice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[inv.ID]; ok {
		c.byID[inv.ID] = inv
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out *envelope) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("invoiceclient: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("invoiceclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("invoiceclient: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return fmt.Errorf("invoiceclient: decode response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return &APIError{StatusCode: res.StatusCode, Message: msg}
	}
	if out != nil {
		*out = env
	}
	return nil
}

func cloneAll(items []invoices.Invoice) []invoices.Invoice {
	out := make([]invoices.Invoice, len(items))
	for i, inv := range items {
		inv.LineItems = append([]invoices.LineItem(nil), inv.LineItems...)
		out[i] = inv
	}
	return out
}
