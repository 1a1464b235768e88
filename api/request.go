package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// CallOption adjusts a single call made through one of the verb helpers
type CallOption func(*Request)

// Retries overrides the number of retries for one call
func Retries(n int) CallOption {
	return func(r *Request) {
		r.MaxRetries = n
	}
}

// Timeout overrides the per attempt timeout for one call
func Timeout(d time.Duration) CallOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// Header adds a header to one call
func Header(key, value string) CallOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Add(key, value)
	}
}

// Get requests endpoint with query encoded in the URL
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, endpoint, query, nil, opts)
}

// Post sends body as JSON to endpoint
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.callJSON(ctx, http.MethodPost, endpoint, body, opts)
}

// Put sends body as JSON to endpoint
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.callJSON(ctx, http.MethodPut, endpoint, body, opts)
}

// Patch sends body as JSON to endpoint
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.callJSON(ctx, http.MethodPatch, endpoint, body, opts)
}

// Delete requests the deletion of endpoint
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, endpoint, nil, nil, opts)
}

// GetJSON requests endpoint and decodes the response into T
func GetJSON[T any](ctx context.Context, c *Client, endpoint string, query url.Values, opts ...CallOption) (T, error) {
	var v T
	resp, err := c.Get(ctx, endpoint, query, opts...)
	if err != nil {
		return v, err
	}
	if err := resp.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *Client) callJSON(ctx context.Context, method, endpoint string, body any, opts []CallOption) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request body")
	}
	opts = append([]CallOption{Header("Content-Type", "application/json")}, opts...)

	return c.call(ctx, method, endpoint, nil, data, opts)
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, body []byte, opts []CallOption) (*Response, error) {
	req := Request{
		Method:     method,
		Body:       body,
		Timeout:    c.timeout,
		MaxRetries: c.retries,
		RetryDelay: c.retryDelay,
	}
	for _, opt := range opts {
		opt(&req)
	}

	return c.FetchWithTimeout(ctx, c.buildURL(endpoint, query), req)
}
