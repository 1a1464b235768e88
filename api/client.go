package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds a single attempt
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of retries after the first attempt
	DefaultRetries = 1
	// DefaultRetryDelay is the pause between attempts
	DefaultRetryDelay = 500 * time.Millisecond

	requestIDHeader = "X-Request-Id"
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying http client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout overrides the per attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries overrides the default number of retries
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithRetryDelay overrides the pause between attempts
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithHeaders adds headers sent with every request
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// NewClient returns a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("no base URL provided")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URL")
	}

	c := &Client{
		baseURL:    u,
		http:       &http.Client{},
		headers:    make(http.Header),
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Client issues requests with a per attempt timeout and bounded retries
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	headers    http.Header
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

// Request describes a single call. It is not modified by the client.
// A zero Timeout or RetryDelay takes the client setting; a zero MaxRetries
// means a single attempt.
type Request struct {
	Method     string
	Header     http.Header
	Body       []byte
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// FetchWithTimeout performs req against rawURL, making up to MaxRetries+1 attempts.
// Every failure is retried the same way: transport errors, non-2xx responses,
// unreadable bodies and attempt timeouts. Cancelling ctx stops immediately.
func (c *Client) FetchWithTimeout(ctx context.Context, rawURL string, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}
	if req.RetryDelay <= 0 {
		req.RetryDelay = c.retryDelay
	}
	if req.MaxRetries < 0 {
		req.MaxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, rawURL, req, attempt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "request cancelled")
		}

		if attempt >= req.MaxRetries {
			if isAttemptTimeout(err) {
				return nil, ErrTimeout
			}
			if err.Error() == "" {
				return nil, ErrUnknown
			}
			return nil, err
		}

		log.WithFields(log.Fields{
			"method":  req.Method,
			"url":     rawURL,
			"attempt": attempt + 1,
		}).Debugf("request failed, retrying in %s: %s", req.RetryDelay, err)
		if err := sleep(ctx, req.RetryDelay); err != nil {
			return nil, errors.Wrap(err, "request cancelled")
		}
	}
}

// do runs a single attempt with its own timer
func (c *Client) do(ctx context.Context, rawURL string, req Request, attempt int) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(actx, req.Method, rawURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header = c.headers.Clone()
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)

	log.WithFields(log.Fields{
		"method":     req.Method,
		"url":        rawURL,
		"attempt":    attempt + 1,
		"request_id": requestID,
	}).Debug("sending request")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classify(actx, ctx, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, classify(actx, ctx, errors.Wrap(err, "failed to read response body"))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: res.StatusCode,
			Status:     statusText(res),
			Body:       data,
		}
	}

	return newResponse(res.StatusCode, res.Header.Get("Content-Type"), data)
}

// statusText returns the reason phrase sent by the server
func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		return http.StatusText(res.StatusCode)
	}
	return text
}

// classify marks err as an attempt timeout when the attempt timer fired
// while the caller context is still alive
func classify(attemptCtx, callerCtx context.Context, err error) error {
	if callerCtx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &attemptTimeout{err: err}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildURL joins endpoint to the base URL path
func (c *Client) buildURL(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}
