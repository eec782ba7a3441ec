// Package client is an HTTP client for the listings API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aluiziolira/go-scrape-listings/api"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("listings api: status %d", e.Status)
	}
	return fmt.Sprintf("listings api: status %d: %s", e.Status, e.Message)
}

// Client calls a listings server.
type Client struct {
	http *resty.Client
}

// Option customises a Client.
type Option func(*resty.Client)

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

// WithTimeout bounds each request. Batch requests can take minutes, so the
// default is generous.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		c.SetTimeout(d)
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := resty.New()
	c.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	c.SetHeader("Accept", "application/json")
	c.SetTimeout(30 * time.Minute)
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// Resolve looks up the identifier of a complex name. A miss is not an error;
// it is reported through OK and a nil Identifier.
func (c *Client) Resolve(ctx context.Context, name string) (api.ResolveResponse, error) {
	var out api.ResolveResponse
	err := c.get(ctx, api.PathResolve, map[string]string{"name": name}, &out)
	return out, err
}

// Listings fetches listing stats. category accepts the server's names and
// aliases.
func (c *Client) Listings(ctx context.Context, id, category string, size int) (models.ListingStats, error) {
	var out models.ListingStats
	err := c.get(ctx, api.PathListings, map[string]string{
		"identifier": id,
		"category":   category,
		"size":       strconv.Itoa(size),
	}, &out)
	return out, err
}

// Info fetches the descriptive metadata of a complex.
func (c *Client) Info(ctx context.Context, id string) (models.EntityInfo, error) {
	var out models.EntityInfo
	err := c.get(ctx, api.PathInfo, map[string]string{"identifier": id}, &out)
	return out, err
}

// Summary fetches the summary of one complex and size bracket.
func (c *Client) Summary(ctx context.Context, name string, size int) (models.EntitySummary, error) {
	var out models.EntitySummary
	err := c.get(ctx, api.PathSummary, map[string]string{
		"name": name,
		"size": strconv.Itoa(size),
	}, &out)
	return out, err
}

// Batch fetches the summaries of every configured target.
func (c *Client) Batch(ctx context.Context) (models.BatchResult, error) {
	out := models.BatchResult{}
	err := c.get(ctx, api.PathBatch, nil, &out)
	return out, err
}

// Health reports server and browser status.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.get(ctx, api.PathHealth, nil, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	var apiErr api.ErrorResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	if res.IsError() {
		return &APIError{Status: res.StatusCode(), Message: apiErr.Error}
	}
	return nil
}
