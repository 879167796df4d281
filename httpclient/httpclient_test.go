package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smallagents/config"
	"smallagents/types"
)

func testAgent(baseURL string, retries int) *Agent {
	return NewAgent(config.APIConfig{
		BaseURL:    baseURL,
		Timeout:    config.Seconds(5 * time.Second),
		MaxRetries: retries,
	})
}

func TestTransportRetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := New(Options{Timeout: 5 * time.Second, Policy: Policy{MaxRetries: 3}})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransportReturnsLastResponseWhenRetriesRunOut(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Options{Policy: Policy{MaxRetries: 2}})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(Options{Policy: Policy{MaxRetries: 3}})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransportReplaysPostBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(Options{Policy: Policy{MaxRetries: 1}})
	resp, err := client.Post(srv.URL, "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"a":1}`, `{"a":1}`}, bodies)
}

func TestClientSetsDefaultHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := New(Options{Headers: http.Header{"X-Api-Key": {"k"}}})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Accept", "text/plain")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "k", got.Get("X-Api-Key"))
	assert.Equal(t, "text/plain", got.Get("Accept"), "caller headers win")
}

func TestDoJSONClassifiesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
		case "/garbage":
			_, _ = io.WriteString(w, "not json")
		default:
			_, _ = io.WriteString(w, `{"url":"x"}`)
		}
	}))
	defer srv.Close()
	client := New(Options{})

	var out struct{ URL string }
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/bad", nil)
	err := DoJSON(client, req, "test", &out)
	assert.ErrorIs(t, err, types.ErrNetwork)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/garbage", nil)
	err = DoJSON(client, req, "test", &out)
	assert.ErrorIs(t, err, types.ErrParse)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	require.NoError(t, DoJSON(client, req, "test", &out))
	assert.Equal(t, "x", out.URL)
}

func TestAgentGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message":"success"}`)
	}))
	defer srv.Close()

	a := testAgent(srv.URL, 0)
	res := a.Get(context.Background(), "/test", url.Values{"page": {"2"}})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "success", res.Data.(map[string]any)["message"])
	assert.Equal(t, "application/json", res.Headers["Content-Type"])
}

func TestAgentGetFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := testAgent(srv.URL, 0).Get(context.Background(), "/test", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "404")
	assert.Equal(t, "http_error", res.ErrorType)
}

func TestAgentPostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"data":"test"}`, string(b))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"created":true}`)
	}))
	defer srv.Close()

	res := testAgent(srv.URL, 0).Post(context.Background(), "/test", map[string]string{"data": "test"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, true, res.Data.(map[string]any)["created"])
}

func TestAgentConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	res := testAgent(srv.URL, 0).Get(context.Background(), "/x", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "connection_error", res.ErrorType)
}

func TestAgentRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"method":"`+r.Method+`"}`)
	}))
	defer srv.Close()
	a := testAgent(srv.URL, 0)

	res, err := a.Run(context.Background(), "get", "/test", RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "GET", res.Method)
	assert.Equal(t, "/test", res.Endpoint)
	assert.Greater(t, res.ExecutionTime, time.Duration(0))

	res, err = a.Run(context.Background(), "POST", "/test", RunOptions{Data: map[string]string{"key": "value"}})
	require.NoError(t, err)
	assert.Equal(t, "POST", res.Data.(map[string]any)["method"])
}

func TestAgentRunRejectsBadMethodWithoutCalling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	a := testAgent(srv.URL, 0)

	_, err := a.Run(context.Background(), "INVALID", "/test", RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Contains(t, err.Error(), "unsupported HTTP method")

	_, err = a.Run(context.Background(), " ", "/test", RunOptions{})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestAgentCloseIsIdempotent(t *testing.T) {
	a := testAgent("", 0)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestAgentCloseReleasesConnections(t *testing.T) {
	var closed int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":1}`)
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateClosed {
			atomic.AddInt32(&closed, 1)
		}
	}
	srv.Start()
	defer srv.Close()

	a := testAgent(srv.URL, 1)
	res, err := a.Run(context.Background(), "GET", "/posts/1", RunOptions{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Zero(t, atomic.LoadInt32(&closed), "connection should be idle, not closed")

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestClientsDoNotShareIdleConnections(t *testing.T) {
	var closed int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateClosed {
			atomic.AddInt32(&closed, 1)
		}
	}
	srv.Start()
	defer srv.Close()

	first, second := New(Options{}), New(Options{})
	for _, c := range []*http.Client{first, second} {
		resp, err := c.Get(srv.URL)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	first.CloseIdleConnections()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 1 },
		2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closed))

	second.CloseIdleConnections()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestAgentInfo(t *testing.T) {
	info := testAgent("https://api.example.com", 3).Info()
	assert.Equal(t, "APIAgent", info.Name)
	assert.Equal(t, "https://api.example.com", info.Config.(config.APIConfig).BaseURL)
}
