package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c, srv
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(" ")
	assert.Error(t, err)
	_, err = NewClient("://bad")
	assert.Error(t, err)
}

func TestTimeoutIsRetriedThenReported(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := c.FetchWithTimeout(context.Background(), srv.URL+"/slow", Request{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	assert.Equal(ErrTimeout, err)
	assert.EqualValues(3, atomic.LoadInt32(&calls))
}

func TestServerErrorsAreRetried(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":3,"title":"The Dark Knight"}`)
	}, WithRetryDelay(time.Millisecond))

	resp, err := c.FetchWithTimeout(context.Background(), srv.URL, Request{MaxRetries: 2})
	require.NoError(t, err)
	assert.EqualValues(3, atomic.LoadInt32(&calls))
	assert.True(resp.JSON)
	assert.Equal(map[string]any{"id": float64(3), "title": "The Dark Knight"}, resp.Value())
}

func TestLastErrorIsReturned(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "no such movie")
	}, WithRetryDelay(time.Millisecond))

	_, err := c.Get(context.Background(), "/movies/99", nil)
	assert.EqualValues(1+DefaultRetries, atomic.LoadInt32(&calls))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(http.StatusNotFound, httpErr.StatusCode)
	assert.Equal("Error 404: Not Found\nno such movie", err.Error())

	atomic.StoreInt32(&calls, 0)
	_, err = c.Get(context.Background(), "/movies/99", nil, Retries(0))
	assert.Error(err)
	assert.EqualValues(1, atomic.LoadInt32(&calls))
}

func TestReasonPhraseIsKept(t *testing.T) {
	assert := assert.New(t)

	res := &http.Response{StatusCode: 418, Status: "418 Out of Coffee"}
	assert.Equal("Out of Coffee", statusText(res))

	res = &http.Response{StatusCode: 503}
	assert.Equal("Service Unavailable", statusText(res))
}

func TestRequestInheritsRetryDelay(t *testing.T) {
	assert := assert.New(t)
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetryDelay(50*time.Millisecond))

	start := time.Now()
	_, err := c.FetchWithTimeout(context.Background(), srv.URL, Request{MaxRetries: 1})
	assert.Error(err)
	assert.GreaterOrEqual(time.Since(start), 50*time.Millisecond)
}

func TestTextResponse(t *testing.T) {
	assert := assert.New(t)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "pong")
	})

	resp, err := c.Get(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.False(resp.JSON)
	assert.Equal("pong", resp.Value())
	assert.Equal("pong", resp.Text())
	assert.Error(resp.Decode(&struct{}{}))
}

func TestInvalidJSONIsRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, "{")
	}, WithRetryDelay(0))

	_, err := c.Get(context.Background(), "movies", nil)
	assert.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetBuildsURL(t *testing.T) {
	assert := assert.New(t)
	var got *url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL
		assert.NotEmpty(r.Header.Get(requestIDHeader))
		assert.Equal("yes", r.Header.Get("X-App"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/", WithHeaders(http.Header{"X-App": {"yes"}}))
	require.NoError(t, err)

	movies, err := GetJSON[[]map[string]any](context.Background(), c, "/movies", url.Values{"search": {"dark knight"}})
	require.NoError(t, err)
	assert.Empty(movies)
	assert.Equal("/api/movies", got.Path)
	assert.Equal("search=dark+knight", got.RawQuery)
}

func TestJSONVerbs(t *testing.T) {
	assert := assert.New(t)
	type seen struct {
		method, contentType string
		body                map[string]any
	}
	var last seen
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		last = seen{method: r.Method, contentType: r.Header.Get("Content-Type")}
		json.NewDecoder(r.Body).Decode(&last.body)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()
	body := map[string]any{"title": "Heat"}

	for method, call := range map[string]func() (*Response, error){
		http.MethodPost:  func() (*Response, error) { return c.Post(ctx, "movies", body) },
		http.MethodPut:   func() (*Response, error) { return c.Put(ctx, "movies/1", body) },
		http.MethodPatch: func() (*Response, error) { return c.Patch(ctx, "movies/1", body) },
	} {
		resp, err := call()
		require.NoError(t, err, method)
		assert.Equal(http.StatusNoContent, resp.StatusCode)
		assert.Equal(method, last.method)
		assert.Equal("application/json", last.contentType)
		assert.Equal(body, last.body)
	}

	_, err := c.Delete(ctx, "movies/1")
	assert.NoError(err)
	assert.Equal(http.MethodDelete, last.method)
	assert.Empty(last.contentType)

	_, err = c.Post(ctx, "movies", make(chan int))
	assert.Error(err)
}

func TestCallerCancellationStopsRetries(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := c.FetchWithTimeout(ctx, srv.URL, Request{MaxRetries: 5, RetryDelay: time.Second})

	assert.True(errors.Is(err, context.Canceled))
	assert.NotEqual(ErrTimeout, err)
	assert.EqualValues(1, atomic.LoadInt32(&calls))
}
